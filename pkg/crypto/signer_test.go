package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecover(t *testing.T) {
	s, err := GenerateKey()
	require.NoError(t, err)

	digest := make([]byte, 32)
	copy(digest, "limitbook test digest")

	sig, err := s.Sign(digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recovered, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	assert.True(t, VerifySignature(s.Address(), digest, sig))
	other, _ := GenerateKey()
	assert.False(t, VerifySignature(other.Address(), digest, sig))
}

func TestSignRejectsBadDigest(t *testing.T) {
	s, err := GenerateKey()
	require.NoError(t, err)

	_, err = s.Sign([]byte("short"))
	assert.Error(t, err)
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	s, err := GenerateKey()
	require.NoError(t, err)

	restored, err := FromPrivateKeyHex(s.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, s.Address(), restored.Address())

	prefixed, err := FromPrivateKeyHex("0x" + s.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, s.Address(), prefixed.Address())
}

func TestTypedPlaceOrderSignature(t *testing.T) {
	s, err := GenerateKey()
	require.NoError(t, err)
	ts := NewTypedSigner(DefaultDomain())

	msg := &PlaceOrderMsg{
		PairID: common.HexToHash("0xabc123"),
		Side:   0,
		TIF:    0,
		Price:  100,
		Amount: 10,
		Nonce:  1,
		Owner:  s.Address(),
	}
	digest, err := ts.HashPlaceOrder(msg)
	require.NoError(t, err)
	sig, err := s.Sign(digest)
	require.NoError(t, err)

	recovered, err := ts.RecoverPlaceOrder(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	// any field change breaks the signature
	tampered := *msg
	tampered.Price = 101
	recovered, err = ts.RecoverPlaceOrder(&tampered, sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), recovered)
}

func TestTypedSignatureDomainSeparation(t *testing.T) {
	s, err := GenerateKey()
	require.NoError(t, err)

	msg := &CancelOrderMsg{OrderID: 7, Nonce: 3, Owner: s.Address()}

	a := NewTypedSigner(DefaultDomain())
	other := DefaultDomain()
	other.ChainID = other.ChainID.Add(other.ChainID, other.ChainID)
	b := NewTypedSigner(other)

	digestA, err := a.HashCancelOrder(msg)
	require.NoError(t, err)
	digestB, err := b.HashCancelOrder(msg)
	require.NoError(t, err)
	assert.NotEqual(t, digestA, digestB)

	sig, err := s.Sign(digestA)
	require.NoError(t, err)
	recovered, err := b.RecoverCancelOrder(msg, sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), recovered)
}

func TestTypedWithdrawAndAdminMessages(t *testing.T) {
	s, err := GenerateKey()
	require.NoError(t, err)
	ts := NewTypedSigner(DefaultDomain())

	w := &WithdrawMsg{Asset: common.HexToAddress("0x01"), Amount: 500, Nonce: 2, Owner: s.Address()}
	digest, err := ts.HashWithdraw(w)
	require.NoError(t, err)
	sig, err := s.Sign(digest)
	require.NoError(t, err)
	recovered, err := ts.RecoverWithdraw(w, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	f := &SetFeeRatesMsg{MakerBps: 25, TakerBps: 50, Nonce: 4, Owner: s.Address()}
	digest, err = ts.HashSetFeeRates(f)
	require.NoError(t, err)
	sig, err = s.Sign(digest)
	require.NoError(t, err)
	recovered, err = ts.RecoverSetFeeRates(f, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)
}

func TestTypedPairManagementMessages(t *testing.T) {
	s, err := GenerateKey()
	require.NoError(t, err)
	ts := NewTypedSigner(DefaultDomain())

	a := &AddPairMsg{
		Base:          common.HexToAddress("0x01"),
		Quote:         common.HexToAddress("0x02"),
		BaseDecimals:  8,
		QuoteDecimals: 6,
		Nonce:         1,
		Owner:         s.Address(),
	}
	digest, err := ts.HashAddPair(a)
	require.NoError(t, err)
	sig, err := s.Sign(digest)
	require.NoError(t, err)
	recovered, err := ts.RecoverAddPair(a, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	// a tampered decimal breaks recovery
	tampered := *a
	tampered.QuoteDecimals = 7
	recovered, err = ts.RecoverAddPair(&tampered, sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), recovered)

	rm := &RemovePairMsg{PairID: common.HexToHash("0xdead"), Nonce: 2, Owner: s.Address()}
	digest, err = ts.HashRemovePair(rm)
	require.NoError(t, err)
	sig, err = s.Sign(digest)
	require.NoError(t, err)
	recovered, err = ts.RecoverRemovePair(rm, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)
}
