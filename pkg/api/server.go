// Package api serves the REST and WebSocket surface of the node. Mutating
// endpoints carry EIP-712 signatures with per-account nonces; reads are
// open.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/jwhyun/limitbook/pkg/crypto"
	"github.com/jwhyun/limitbook/pkg/engine"
	"github.com/jwhyun/limitbook/pkg/engine/book"
	"github.com/jwhyun/limitbook/pkg/events"
	"github.com/jwhyun/limitbook/pkg/faucet"
)

// Server exposes the engine over HTTP. It also implements events.Sink and
// fans live events out to WebSocket subscribers.
type Server struct {
	eng    *engine.Engine
	signer *crypto.TypedSigner
	faucet *faucet.Faucet
	router *mux.Router
	hub    *Hub
	nonces *nonceStore
	log    *zap.SugaredLogger

	// pair ids queued for a depth broadcast; drained by bookPusher
	bookPushes chan common.Hash

	allowedOrigins []string
}

// NewServer wires routes. faucet may be nil to disable the faucet
// endpoint.
func NewServer(eng *engine.Engine, signer *crypto.TypedSigner, f *faucet.Faucet, allowedOrigins []string, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		eng:            eng,
		signer:         signer,
		faucet:         f,
		router:         mux.NewRouter(),
		hub:            NewHub(log),
		nonces:         newNonceStore(),
		log:            log,
		bookPushes:     make(chan common.Hash, 256),
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	go s.bookPusher()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// pairs
	api.HandleFunc("/pairs", s.handleListPairs).Methods("GET")
	api.HandleFunc("/pairs", s.handleAddPair).Methods("POST")
	api.HandleFunc("/pairs/remove", s.handleRemovePair).Methods("POST")
	api.HandleFunc("/pairs/{id}", s.handleGetPair).Methods("GET")
	api.HandleFunc("/pairs/{id}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/pairs/{id}/best", s.handleGetBest).Methods("GET")

	// orders
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	// accounts
	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/accounts/{address}/orders", s.handleGetOpenOrders).Methods("GET")
	api.HandleFunc("/accounts/{address}/nonce", s.handleGetNonce).Methods("GET")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")

	// fees
	api.HandleFunc("/fees", s.handleGetFeeRates).Methods("GET")
	api.HandleFunc("/fees/accrued/{asset}", s.handleGetAccruedFees).Methods("GET")
	api.HandleFunc("/admin/fees", s.handleSetFeeRates).Methods("POST")
	api.HandleFunc("/admin/fees/withdraw", s.handleWithdrawFees).Methods("POST")

	if s.faucet != nil {
		api.HandleFunc("/faucet", s.handleFaucet).Methods("POST")
	}

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Publish implements events.Sink: every committed event goes to the
// "events" channel, trades additionally to "trades:<pairId>", and book-
// shaping events trigger a depth push on "book:<pairId>".
//
// Publish runs under the engine lock, so it must never call back into
// the engine; depth reads happen on the bookPusher goroutine.
func (s *Server) Publish(e events.Event) error {
	s.hub.BroadcastToChannel("events", e)

	switch e.Kind {
	case events.KindTrade:
		if d, err := events.Decode[events.Trade](e); err == nil {
			s.hub.BroadcastToChannel("trades:"+d.PairID.Hex(), e)
			s.pushBook(d.PairID)
		}
	case events.KindOrderPlaced:
		if d, err := events.Decode[events.OrderPlaced](e); err == nil {
			s.pushBook(d.PairID)
		}
	case events.KindOrderCancelled:
		if d, err := events.Decode[events.OrderCancelled](e); err == nil {
			s.pushBook(d.PairID)
		}
	}
	return nil
}

// pushBook queues a depth broadcast without blocking; a full queue drops
// the push, which is fine because a later event will refresh the book.
func (s *Server) pushBook(pairID common.Hash) {
	select {
	case s.bookPushes <- pairID:
	default:
	}
}

func (s *Server) bookPusher() {
	for pairID := range s.bookPushes {
		bids, err := s.eng.Depth(pairID, book.Buy, 0, 50)
		if err != nil {
			continue
		}
		asks, _ := s.eng.Depth(pairID, book.Sell, 0, 50)
		s.hub.BroadcastToChannel("book:"+pairID.Hex(), BookSnapshot{
			PairID:    pairID.Hex(),
			Bids:      bids,
			Asks:      asks,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}

// ==============================
// Pair handlers
// ==============================

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	pairs := s.eng.ListPairs(offset, limit)

	out := make([]PairInfo, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, PairInfo{
			ID:            p.ID.Hex(),
			Base:          p.Base.Hex(),
			Quote:         p.Quote.Hex(),
			BaseDecimals:  p.BaseDecimals,
			QuoteDecimals: p.QuoteDecimals,
		})
	}
	respondJSON(w, out)
}

func (s *Server) handleAddPair(w http.ResponseWriter, r *http.Request) {
	var req AddPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	base, err := parseAddress(req.Base)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid base asset", err.Error())
		return
	}
	quote, err := parseAddress(req.Quote)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quote asset", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner", err.Error())
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}

	msg := &crypto.AddPairMsg{
		Base:          base,
		Quote:         quote,
		BaseDecimals:  req.BaseDecimals,
		QuoteDecimals: req.QuoteDecimals,
		Nonce:         req.Nonce,
		Owner:         owner,
	}
	recovered, err := s.signer.RecoverAddPair(msg, sig)
	if err != nil || recovered != owner {
		respondError(w, http.StatusUnauthorized, "signature mismatch", "")
		return
	}
	if !s.nonces.consume(owner, req.Nonce) {
		respondError(w, http.StatusConflict, "bad nonce", fmt.Sprintf("want %d", s.nonces.next(owner)))
		return
	}

	p, err := s.eng.AddPair(owner, base, quote, req.BaseDecimals, req.QuoteDecimals)
	if err != nil {
		s.nonces.unconsume(owner)
		respondEngineError(w, err)
		return
	}
	respondJSON(w, PairInfo{
		ID:            p.ID.Hex(),
		Base:          p.Base.Hex(),
		Quote:         p.Quote.Hex(),
		BaseDecimals:  p.BaseDecimals,
		QuoteDecimals: p.QuoteDecimals,
	})
}

func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id", err.Error())
		return
	}
	p, err := s.eng.GetPair(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, PairInfo{
		ID:            p.ID.Hex(),
		Base:          p.Base.Hex(),
		Quote:         p.Quote.Hex(),
		BaseDecimals:  p.BaseDecimals,
		QuoteDecimals: p.QuoteDecimals,
	})
}

func (s *Server) handleRemovePair(w http.ResponseWriter, r *http.Request) {
	var req RemovePairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	id, err := parseHash(req.PairID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner", err.Error())
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}

	msg := &crypto.RemovePairMsg{PairID: id, Nonce: req.Nonce, Owner: owner}
	recovered, err := s.signer.RecoverRemovePair(msg, sig)
	if err != nil || recovered != owner {
		respondError(w, http.StatusUnauthorized, "signature mismatch", "")
		return
	}
	if !s.nonces.consume(owner, req.Nonce) {
		respondError(w, http.StatusConflict, "bad nonce", fmt.Sprintf("want %d", s.nonces.next(owner)))
		return
	}

	if err := s.eng.RemovePair(owner, id); err != nil {
		s.nonces.unconsume(owner)
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "removed"})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id", err.Error())
		return
	}
	offset, limit := pageParams(r)
	if limit == 0 {
		limit = 50
	}

	bids, err := s.eng.Depth(id, book.Buy, offset, limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	asks, _ := s.eng.Depth(id, book.Sell, offset, limit)

	respondJSON(w, BookSnapshot{
		PairID:    id.Hex(),
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetBest(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id", err.Error())
		return
	}

	out := BestPrices{PairID: id.Hex()}
	bid, ok, err := s.eng.BestPrice(id, book.Buy)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if ok {
		out.Bid = &bid
	}
	if ask, ok, _ := s.eng.BestPrice(id, book.Sell); ok {
		out.Ask = &ask
	}
	respondJSON(w, out)
}

// ==============================
// Order handlers
// ==============================

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	owner, err := parseAddress(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner", err.Error())
		return
	}
	pairID, err := parseHash(req.PairID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id", err.Error())
		return
	}
	side, err := book.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}
	tif, err := book.ParseTimeInForce(req.TIF)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tif", err.Error())
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}

	msg := &crypto.PlaceOrderMsg{
		PairID: pairID,
		Side:   uint8(side),
		TIF:    uint8(tif),
		Price:  req.Price,
		Amount: req.Amount,
		Nonce:  req.Nonce,
		Owner:  owner,
	}
	recovered, err := s.signer.RecoverPlaceOrder(msg, sig)
	if err != nil || recovered != owner {
		respondError(w, http.StatusUnauthorized, "signature mismatch", "")
		return
	}
	if !s.nonces.consume(owner, req.Nonce) {
		respondError(w, http.StatusConflict, "bad nonce", fmt.Sprintf("want %d", s.nonces.next(owner)))
		return
	}

	res, err := s.eng.PlaceOrder(engine.PlaceRequest{
		Owner:  owner,
		PairID: pairID,
		Side:   side,
		TIF:    tif,
		Price:  req.Price,
		Amount: req.Amount,
	})
	if err != nil {
		s.nonces.unconsume(owner)
		respondEngineError(w, err)
		return
	}

	fills := make([]FillInfo, 0, len(res.Fills))
	for _, f := range res.Fills {
		fills = append(fills, FillInfo{MakerOrderID: f.MakerOrderID, Price: f.Price, Amount: f.Amount})
	}
	respondJSON(w, PlaceOrderResponse{
		OrderID:   res.OrderID,
		Fills:     fills,
		Remaining: res.Remaining,
		Rested:    res.Rested,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner", err.Error())
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}

	msg := &crypto.CancelOrderMsg{OrderID: req.OrderID, Nonce: req.Nonce, Owner: owner}
	recovered, err := s.signer.RecoverCancelOrder(msg, sig)
	if err != nil || recovered != owner {
		respondError(w, http.StatusUnauthorized, "signature mismatch", "")
		return
	}
	if !s.nonces.consume(owner, req.Nonce) {
		respondError(w, http.StatusConflict, "bad nonce", fmt.Sprintf("want %d", s.nonces.next(owner)))
		return
	}

	if err := s.eng.CancelOrder(owner, req.OrderID); err != nil {
		s.nonces.unconsume(owner)
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]any{"status": "cancelled", "orderId": req.OrderID})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	o, err := s.eng.GetOrder(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, o)
}

// ==============================
// Account handlers
// ==============================

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	balances := s.eng.Vault().Balances(addr)
	out := make(map[string]int64, len(balances))
	for asset, amount := range balances {
		out[asset.Hex()] = amount
	}
	respondJSON(w, BalancesResponse{Address: addr.Hex(), Balances: out})
}

func (s *Server) handleGetOpenOrders(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}
	offset, limit := pageParams(r)
	respondJSON(w, s.eng.OpenOrders(addr, offset, limit))
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}
	respondJSON(w, NonceResponse{Address: addr.Hex(), Next: s.nonces.next(addr)})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner", err.Error())
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}

	msg := &crypto.WithdrawMsg{Asset: asset, Amount: req.Amount, Nonce: req.Nonce, Owner: owner}
	recovered, err := s.signer.RecoverWithdraw(msg, sig)
	if err != nil || recovered != owner {
		respondError(w, http.StatusUnauthorized, "signature mismatch", "")
		return
	}
	if !s.nonces.consume(owner, req.Nonce) {
		respondError(w, http.StatusConflict, "bad nonce", fmt.Sprintf("want %d", s.nonces.next(owner)))
		return
	}

	if err := s.eng.Withdraw(owner, asset, req.Amount); err != nil {
		s.nonces.unconsume(owner)
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "withdrawn"})
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user", err.Error())
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}

	if err := s.faucet.Drip(user, asset, req.Amount); err != nil {
		switch {
		case errors.Is(err, faucet.ErrCooldown):
			respondError(w, http.StatusTooManyRequests, "cooldown", "")
		case errors.Is(err, faucet.ErrOverLimit):
			respondError(w, http.StatusBadRequest, "over limit", "")
		default:
			respondEngineError(w, err)
		}
		return
	}
	respondJSON(w, map[string]string{"status": "funded"})
}

// ==============================
// Fee handlers
// ==============================

func (s *Server) handleGetFeeRates(w http.ResponseWriter, r *http.Request) {
	maker, taker := s.eng.FeeRates()
	respondJSON(w, FeeRatesResponse{MakerBps: maker, TakerBps: taker})
}

func (s *Server) handleGetAccruedFees(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(mux.Vars(r)["asset"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}
	acc := s.eng.Vault().AccruedFees(asset)
	respondJSON(w, AccruedFeesResponse{
		Asset: asset.Hex(),
		Maker: acc.Maker,
		Taker: acc.Taker,
		Total: acc.Total(),
	})
}

func (s *Server) handleSetFeeRates(w http.ResponseWriter, r *http.Request) {
	var req SetFeeRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner", err.Error())
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}

	msg := &crypto.SetFeeRatesMsg{MakerBps: req.MakerBps, TakerBps: req.TakerBps, Nonce: req.Nonce, Owner: owner}
	recovered, err := s.signer.RecoverSetFeeRates(msg, sig)
	if err != nil || recovered != owner {
		respondError(w, http.StatusUnauthorized, "signature mismatch", "")
		return
	}
	if !s.nonces.consume(owner, req.Nonce) {
		respondError(w, http.StatusConflict, "bad nonce", fmt.Sprintf("want %d", s.nonces.next(owner)))
		return
	}

	if err := s.eng.SetFeeRates(owner, req.MakerBps, req.TakerBps); err != nil {
		s.nonces.unconsume(owner)
		respondEngineError(w, err)
		return
	}
	respondJSON(w, FeeRatesResponse{MakerBps: req.MakerBps, TakerBps: req.TakerBps})
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req WithdrawFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner", err.Error())
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}

	msg := &crypto.WithdrawFeesMsg{Asset: asset, Nonce: req.Nonce, Owner: owner}
	recovered, err := s.signer.RecoverWithdrawFees(msg, sig)
	if err != nil || recovered != owner {
		respondError(w, http.StatusUnauthorized, "signature mismatch", "")
		return
	}
	if !s.nonces.consume(owner, req.Nonce) {
		respondError(w, http.StatusConflict, "bad nonce", fmt.Sprintf("want %d", s.nonces.next(owner)))
		return
	}

	amount, err := s.eng.WithdrawFees(owner, asset)
	if err != nil {
		s.nonces.unconsume(owner)
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]any{"status": "withdrawn", "amount": amount})
}

// ==============================
// Misc handlers
// ==============================

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	maker, taker := s.eng.FeeRates()
	respondJSON(w, StatusResponse{
		Pairs:    s.eng.PairCount(),
		LastSeq:  s.eng.LastSeq(),
		MakerBps: maker,
		TakerBps: taker,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Nonce tracking
// ==============================

// nonceStore enforces strictly increasing nonces per account. A signed
// message must carry exactly last+1. State is per-process: after a restart
// accounts start again from 1, which is safe because the signing domain
// pins messages to this deployment and duplicates are rejected within a
// run.
type nonceStore struct {
	mu   sync.Mutex
	last map[common.Address]uint64
}

func newNonceStore() *nonceStore {
	return &nonceStore{last: make(map[common.Address]uint64)}
}

func (n *nonceStore) next(owner common.Address) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last[owner] + 1
}

func (n *nonceStore) consume(owner common.Address, nonce uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if nonce != n.last[owner]+1 {
		return false
	}
	n.last[owner] = nonce
	return true
}

// unconsume rolls back the last consume after the underlying operation was
// rejected, so the client can retry with the same nonce.
func (n *nonceStore) unconsume(owner common.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last[owner] > 0 {
		n.last[owner]--
	}
}

// ==============================
// Helpers
// ==============================

func pageParams(r *http.Request) (offset, limit int) {
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return offset, limit
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a hex address: %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	h := strings.TrimPrefix(s, "0x")
	if len(h) != 64 {
		return common.Hash{}, fmt.Errorf("not a 32-byte hex hash: %q", s)
	}
	if _, err := hex.DecodeString(h); err != nil {
		return common.Hash{}, fmt.Errorf("not a 32-byte hex hash: %q", s)
	}
	return common.HexToHash(s), nil
}

func parseSignature(s string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	return sig, nil
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errKind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errKind, Message: message})
}

func respondEngineError(w http.ResponseWriter, err error) {
	kind := engine.Kind(err)
	status := http.StatusBadRequest
	switch kind {
	case "PairNotFound", "OrderNotFound":
		status = http.StatusNotFound
	case "Unauthorized", "NotOrderOwner":
		status = http.StatusForbidden
	case "PairExists":
		status = http.StatusConflict
	case "internal":
		status = http.StatusInternalServerError
	}
	respondError(w, status, kind, err.Error())
}

var _ events.Sink = (*Server)(nil)
