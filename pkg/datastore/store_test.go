package datastore

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedAccessors(t *testing.T) {
	s := New(NewMemDB())

	t.Run("DecimalRoundTrip", func(t *testing.T) {
		key := PoolAmountKey("ETH-USD", "WETH")
		v, err := s.GetDec(key)
		require.NoError(t, err)
		assert.True(t, v.IsZero(), "missing key reads as zero")

		want := decimal.RequireFromString("1234.000000000000000000000000000005")
		require.NoError(t, s.SetDec(key, want))
		got, err := s.GetDec(key)
		require.NoError(t, err)
		assert.True(t, got.Equal(want))
	})

	t.Run("Int64RoundTrip", func(t *testing.T) {
		key := FundingUpdatedAtKey("ETH-USD")
		require.NoError(t, s.SetInt64(key, 1700000000))
		got, err := s.GetInt64(key)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000), got)
	})

	t.Run("BoolRoundTrip", func(t *testing.T) {
		key := hashKey("TEST_FLAG")
		got, err := s.GetBool(key)
		require.NoError(t, err)
		assert.False(t, got)

		require.NoError(t, s.SetBool(key, true))
		got, err = s.GetBool(key)
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("DeleteAndHas", func(t *testing.T) {
		key := hashKey("TEST_DELETE")
		require.NoError(t, s.SetString(key, "x"))
		ok, err := s.Has(key)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, s.Delete(key))
		ok, err = s.Has(key)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestListOperations(t *testing.T) {
	s := New(NewMemDB())
	key := AccountPositionListKey("acct1")

	require.NoError(t, s.ListAdd(key, "pos-a"))
	require.NoError(t, s.ListAdd(key, "pos-b"))
	require.NoError(t, s.ListAdd(key, "pos-a")) // duplicate is a no-op

	n, err := s.ListCount(key)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	members, err := s.ListRange(key, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"pos-a", "pos-b"}, members)

	require.NoError(t, s.ListRemove(key, "pos-a"))
	members, err = s.ListRange(key, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"pos-b"}, members)

	// removing a missing member is a no-op
	require.NoError(t, s.ListRemove(key, "pos-zzz"))
}

func TestKeyDeterminism(t *testing.T) {
	a := PositionKey("acct", "ETH-USD", "USDC", true)
	b := PositionKey("acct", "ETH-USD", "USDC", true)
	c := PositionKey("acct", "ETH-USD", "USDC", false)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)

	// operand boundaries must matter: ("ab","c") != ("a","bc")
	assert.NotEqual(t, hashKey("X", "ab", "c"), hashKey("X", "a", "bc"))
}

func TestBatchAtomicity(t *testing.T) {
	s := New(NewMemDB())
	k1 := PoolAmountKey("m", "t1")
	k2 := PoolAmountKey("m", "t2")

	b := s.NewBatch()
	require.NoError(t, b.SetDec(k1, decimal.NewFromInt(10)))
	require.NoError(t, b.SetDec(k2, decimal.NewFromInt(20)))

	// nothing is visible before Write
	v, err := s.GetDec(k1)
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	require.NoError(t, b.Write())

	v1, _ := s.GetDec(k1)
	v2, _ := s.GetDec(k2)
	assert.True(t, v1.Equal(decimal.NewFromInt(10)))
	assert.True(t, v2.Equal(decimal.NewFromInt(20)))

	// a reset batch writes nothing
	b2 := s.NewBatch()
	require.NoError(t, b2.SetDec(k1, decimal.NewFromInt(99)))
	b2.Reset()
	require.NoError(t, b2.Write())
	v1, _ = s.GetDec(k1)
	assert.True(t, v1.Equal(decimal.NewFromInt(10)))
}
