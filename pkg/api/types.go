package api

import (
	"github.com/jwhyun/limitbook/pkg/engine/book"
)

// ==============================
// Requests
// ==============================

// PlaceOrderRequest submits a signed limit order. Side is "buy"/"sell",
// TIF is "GTC"/"IOC" (default GTC). Signature covers the EIP-712
// PlaceOrder message with the given nonce.
type PlaceOrderRequest struct {
	PairID    string `json:"pairId"`
	Side      string `json:"side"`
	TIF       string `json:"tif"`
	Price     int64  `json:"price"`
	Amount    int64  `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
}

type CancelOrderRequest struct {
	OrderID   uint64 `json:"orderId"`
	Nonce     uint64 `json:"nonce"`
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
}

type WithdrawRequest struct {
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
}

// AddPairRequest registers a pair. Admin-signed: Signature covers the
// EIP-712 AddPair message.
type AddPairRequest struct {
	Base          string `json:"base"`
	Quote         string `json:"quote"`
	BaseDecimals  uint8  `json:"baseDecimals"`
	QuoteDecimals uint8  `json:"quoteDecimals"`
	Nonce         uint64 `json:"nonce"`
	Owner         string `json:"owner"`
	Signature     string `json:"signature"`
}

// RemovePairRequest deletes an empty pair. Admin-signed.
type RemovePairRequest struct {
	PairID    string `json:"pairId"`
	Nonce     uint64 `json:"nonce"`
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
}

type FaucetRequest struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

type SetFeeRatesRequest struct {
	MakerBps  int64  `json:"makerBps"`
	TakerBps  int64  `json:"takerBps"`
	Nonce     uint64 `json:"nonce"`
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
}

type WithdrawFeesRequest struct {
	Asset     string `json:"asset"`
	Nonce     uint64 `json:"nonce"`
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
}

// ==============================
// Responses
// ==============================

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type PairInfo struct {
	ID            string `json:"id"`
	Base          string `json:"base"`
	Quote         string `json:"quote"`
	BaseDecimals  uint8  `json:"baseDecimals"`
	QuoteDecimals uint8  `json:"quoteDecimals"`
}

type BookSnapshot struct {
	PairID    string       `json:"pairId"`
	Bids      []book.Depth `json:"bids"`
	Asks      []book.Depth `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

type BestPrices struct {
	PairID string `json:"pairId"`
	Bid    *int64 `json:"bid"`
	Ask    *int64 `json:"ask"`
}

type PlaceOrderResponse struct {
	OrderID   uint64     `json:"orderId"`
	Fills     []FillInfo `json:"fills"`
	Remaining int64      `json:"remaining"`
	Rested    bool       `json:"rested"`
}

type FillInfo struct {
	MakerOrderID uint64 `json:"makerOrderId"`
	Price        int64  `json:"price"`
	Amount       int64  `json:"amount"`
}

type BalancesResponse struct {
	Address  string           `json:"address"`
	Balances map[string]int64 `json:"balances"`
}

type NonceResponse struct {
	Address string `json:"address"`
	// Next is the nonce the next signed message must carry.
	Next uint64 `json:"next"`
}

type FeeRatesResponse struct {
	MakerBps int64 `json:"makerBps"`
	TakerBps int64 `json:"takerBps"`
}

type AccruedFeesResponse struct {
	Asset string `json:"asset"`
	Maker int64  `json:"maker"`
	Taker int64  `json:"taker"`
	Total int64  `json:"total"`
}

type StatusResponse struct {
	Pairs    int    `json:"pairs"`
	LastSeq  uint64 `json:"lastSeq"`
	MakerBps int64  `json:"makerBps"`
	TakerBps int64  `json:"takerBps"`
}

// WSSubscribeRequest is the client -> server control message.
// Channels: "events", "trades:<pairId>", "book:<pairId>".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}
