package pair

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	assetA = common.HexToAddress("0x1000000000000000000000000000000000000001")
	assetB = common.HexToAddress("0x2000000000000000000000000000000000000002")
	assetC = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func TestDeriveIDOrderIndependent(t *testing.T) {
	assert.Equal(t, DeriveID(assetA, assetB), DeriveID(assetB, assetA))
	assert.NotEqual(t, DeriveID(assetA, assetB), DeriveID(assetA, assetC))
}

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry()

	p, err := r.Add(assetA, assetB, 18, 6)
	require.NoError(t, err)
	assert.Equal(t, DeriveID(assetA, assetB), p.ID)
	assert.Equal(t, assetA, p.Base)
	assert.Equal(t, assetB, p.Quote)
	assert.EqualValues(t, 18, p.BaseDecimals)
	assert.EqualValues(t, 6, p.QuoteDecimals)

	// same pair in either orientation is a duplicate
	_, err = r.Add(assetB, assetA, 6, 18)
	assert.ErrorIs(t, err, ErrExists)
}

func TestRegistryRejectsInvalidAssets(t *testing.T) {
	r := NewRegistry()

	_, err := r.Add(common.Address{}, assetB, 18, 6)
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = r.Add(assetA, common.Address{}, 18, 6)
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = r.Add(assetA, assetA, 18, 18)
	assert.ErrorIs(t, err, ErrInvalidAsset)
}

func TestRegistryLookupAndRemove(t *testing.T) {
	r := NewRegistry()
	p, err := r.Add(assetA, assetB, 18, 6)
	require.NoError(t, err)

	got, err := r.Lookup(assetB, assetA)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.NoError(t, r.Remove(p.ID))
	assert.ErrorIs(t, r.Remove(p.ID), ErrNotFound)

	_, err = r.Get(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryListPagination(t *testing.T) {
	r := NewRegistry()
	_, err := r.Add(assetA, assetB, 18, 6)
	require.NoError(t, err)
	_, err = r.Add(assetA, assetC, 18, 8)
	require.NoError(t, err)
	_, err = r.Add(assetB, assetC, 6, 8)
	require.NoError(t, err)

	all := r.List(0, 0)
	require.Len(t, all, 3)

	page := r.List(1, 1)
	require.Len(t, page, 1)
	assert.Equal(t, all[1], page[0])

	assert.Empty(t, r.List(5, 10))
	assert.Equal(t, 3, r.Count())
}
