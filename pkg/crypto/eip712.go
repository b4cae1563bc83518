package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the EIP-712 domain separator. It scopes signatures to one
// deployment so they cannot be replayed against another.
type Domain struct {
	Name    string
	Version string
	ChainID *big.Int
}

// DefaultDomain is what the node and the signing CLI agree on out of the
// box.
func DefaultDomain() Domain {
	return Domain{Name: "LimitBook", Version: "1", ChainID: big.NewInt(1337)}
}

// PlaceOrderMsg is the typed message a user signs to place an order.
// Every numeric field rides as uint256 in the typed data; Nonce must be
// exactly one above the owner's last accepted nonce.
type PlaceOrderMsg struct {
	PairID common.Hash
	Side   uint8 // 0 = buy, 1 = sell
	TIF    uint8 // 0 = GTC, 1 = IOC
	Price  int64
	Amount int64
	Nonce  uint64
	Owner  common.Address
}

// CancelOrderMsg is the typed message to cancel a resting order.
type CancelOrderMsg struct {
	OrderID uint64
	Nonce   uint64
	Owner   common.Address
}

// WithdrawMsg is the typed message to withdraw available balance.
type WithdrawMsg struct {
	Asset  common.Address
	Amount int64
	Nonce  uint64
	Owner  common.Address
}

// SetFeeRatesMsg is the admin typed message to change fee rates.
type SetFeeRatesMsg struct {
	MakerBps int64
	TakerBps int64
	Nonce    uint64
	Owner    common.Address
}

// WithdrawFeesMsg is the admin typed message to collect accrued fees.
type WithdrawFeesMsg struct {
	Asset common.Address
	Nonce uint64
	Owner common.Address
}

// AddPairMsg is the admin typed message to register a trading pair.
type AddPairMsg struct {
	Base          common.Address
	Quote         common.Address
	BaseDecimals  uint8
	QuoteDecimals uint8
	Nonce         uint64
	Owner         common.Address
}

// RemovePairMsg is the admin typed message to delete an empty pair.
type RemovePairMsg struct {
	PairID common.Hash
	Nonce  uint64
	Owner  common.Address
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
}

var (
	placeOrderType = []apitypes.Type{
		{Name: "pairId", Type: "bytes32"},
		{Name: "side", Type: "uint8"},
		{Name: "tif", Type: "uint8"},
		{Name: "price", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "owner", Type: "address"},
	}
	cancelOrderType = []apitypes.Type{
		{Name: "orderId", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "owner", Type: "address"},
	}
	withdrawType = []apitypes.Type{
		{Name: "asset", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "owner", Type: "address"},
	}
	setFeeRatesType = []apitypes.Type{
		{Name: "makerBps", Type: "uint256"},
		{Name: "takerBps", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "owner", Type: "address"},
	}
	withdrawFeesType = []apitypes.Type{
		{Name: "asset", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "owner", Type: "address"},
	}
	addPairType = []apitypes.Type{
		{Name: "base", Type: "address"},
		{Name: "quote", Type: "address"},
		{Name: "baseDecimals", Type: "uint8"},
		{Name: "quoteDecimals", Type: "uint8"},
		{Name: "nonce", Type: "uint256"},
		{Name: "owner", Type: "address"},
	}
	removePairType = []apitypes.Type{
		{Name: "pairId", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
		{Name: "owner", Type: "address"},
	}
)

// TypedSigner hashes and verifies the exchange's typed messages under one
// domain.
type TypedSigner struct {
	domain Domain
}

func NewTypedSigner(domain Domain) *TypedSigner {
	return &TypedSigner{domain: domain}
}

func (ts *TypedSigner) digest(primary string, fields []apitypes.Type, msg apitypes.TypedDataMessage) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			primary:        fields,
		},
		PrimaryType: primary,
		Domain: apitypes.TypedDataDomain{
			Name:    ts.domain.Name,
			Version: ts.domain.Version,
			ChainId: (*math.HexOrDecimal256)(ts.domain.ChainID),
		},
		Message: msg,
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(primary, msg)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", primary, err)
	}

	// digest = keccak256("\x19\x01" || domainSeparator || messageHash)
	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

// HashPlaceOrder returns the digest a user signs to place an order.
func (ts *TypedSigner) HashPlaceOrder(m *PlaceOrderMsg) ([]byte, error) {
	return ts.digest("PlaceOrder", placeOrderType, apitypes.TypedDataMessage{
		"pairId": m.PairID.Hex(),
		"side":   fmt.Sprintf("%d", m.Side),
		"tif":    fmt.Sprintf("%d", m.TIF),
		"price":  new(big.Int).SetInt64(m.Price).String(),
		"amount": new(big.Int).SetInt64(m.Amount).String(),
		"nonce":  new(big.Int).SetUint64(m.Nonce).String(),
		"owner":  m.Owner.Hex(),
	})
}

// HashCancelOrder returns the digest a user signs to cancel an order.
func (ts *TypedSigner) HashCancelOrder(m *CancelOrderMsg) ([]byte, error) {
	return ts.digest("CancelOrder", cancelOrderType, apitypes.TypedDataMessage{
		"orderId": new(big.Int).SetUint64(m.OrderID).String(),
		"nonce":   new(big.Int).SetUint64(m.Nonce).String(),
		"owner":   m.Owner.Hex(),
	})
}

// HashWithdraw returns the digest a user signs to withdraw balance.
func (ts *TypedSigner) HashWithdraw(m *WithdrawMsg) ([]byte, error) {
	return ts.digest("Withdraw", withdrawType, apitypes.TypedDataMessage{
		"asset":  m.Asset.Hex(),
		"amount": new(big.Int).SetInt64(m.Amount).String(),
		"nonce":  new(big.Int).SetUint64(m.Nonce).String(),
		"owner":  m.Owner.Hex(),
	})
}

// HashSetFeeRates returns the digest the admin signs to change fee rates.
func (ts *TypedSigner) HashSetFeeRates(m *SetFeeRatesMsg) ([]byte, error) {
	return ts.digest("SetFeeRates", setFeeRatesType, apitypes.TypedDataMessage{
		"makerBps": new(big.Int).SetInt64(m.MakerBps).String(),
		"takerBps": new(big.Int).SetInt64(m.TakerBps).String(),
		"nonce":    new(big.Int).SetUint64(m.Nonce).String(),
		"owner":    m.Owner.Hex(),
	})
}

// HashWithdrawFees returns the digest the admin signs to collect fees.
func (ts *TypedSigner) HashWithdrawFees(m *WithdrawFeesMsg) ([]byte, error) {
	return ts.digest("WithdrawFees", withdrawFeesType, apitypes.TypedDataMessage{
		"asset": m.Asset.Hex(),
		"nonce": new(big.Int).SetUint64(m.Nonce).String(),
		"owner": m.Owner.Hex(),
	})
}

// HashAddPair returns the digest the admin signs to register a pair.
func (ts *TypedSigner) HashAddPair(m *AddPairMsg) ([]byte, error) {
	return ts.digest("AddPair", addPairType, apitypes.TypedDataMessage{
		"base":          m.Base.Hex(),
		"quote":         m.Quote.Hex(),
		"baseDecimals":  fmt.Sprintf("%d", m.BaseDecimals),
		"quoteDecimals": fmt.Sprintf("%d", m.QuoteDecimals),
		"nonce":         new(big.Int).SetUint64(m.Nonce).String(),
		"owner":         m.Owner.Hex(),
	})
}

// HashRemovePair returns the digest the admin signs to delete a pair.
func (ts *TypedSigner) HashRemovePair(m *RemovePairMsg) ([]byte, error) {
	return ts.digest("RemovePair", removePairType, apitypes.TypedDataMessage{
		"pairId": m.PairID.Hex(),
		"nonce":  new(big.Int).SetUint64(m.Nonce).String(),
		"owner":  m.Owner.Hex(),
	})
}

// RecoverPlaceOrder returns the address that signed a place-order message.
func (ts *TypedSigner) RecoverPlaceOrder(m *PlaceOrderMsg, signature []byte) (common.Address, error) {
	digest, err := ts.HashPlaceOrder(m)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}

// RecoverCancelOrder returns the address that signed a cancel message.
func (ts *TypedSigner) RecoverCancelOrder(m *CancelOrderMsg, signature []byte) (common.Address, error) {
	digest, err := ts.HashCancelOrder(m)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}

// RecoverWithdraw returns the address that signed a withdraw message.
func (ts *TypedSigner) RecoverWithdraw(m *WithdrawMsg, signature []byte) (common.Address, error) {
	digest, err := ts.HashWithdraw(m)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}

// RecoverSetFeeRates returns the address that signed a fee-rate change.
func (ts *TypedSigner) RecoverSetFeeRates(m *SetFeeRatesMsg, signature []byte) (common.Address, error) {
	digest, err := ts.HashSetFeeRates(m)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}

// RecoverWithdrawFees returns the address that signed a fee collection.
func (ts *TypedSigner) RecoverWithdrawFees(m *WithdrawFeesMsg, signature []byte) (common.Address, error) {
	digest, err := ts.HashWithdrawFees(m)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}

// RecoverAddPair returns the address that signed a pair registration.
func (ts *TypedSigner) RecoverAddPair(m *AddPairMsg, signature []byte) (common.Address, error) {
	digest, err := ts.HashAddPair(m)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}

// RecoverRemovePair returns the address that signed a pair removal.
func (ts *TypedSigner) RecoverRemovePair(m *RemovePairMsg, signature []byte) (common.Address, error) {
	digest, err := ts.HashRemovePair(m)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}
