package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/book"
)

func newTestMarket(t *testing.T) *Market {
	t.Helper()
	m := New()
	m.RegisterSymbol("AAPL")
	return m
}

func TestMarket_UnknownSymbol(t *testing.T) {
	m := New()
	_, err := m.Submit("alice", "AAPL", book.Buy, 10, 5)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMarket_InsufficientFunds(t *testing.T) {
	m := newTestMarket(t)
	m.Deposit("alice", 10)

	_, err := m.Submit("alice", "AAPL", book.Buy, 10, 5)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestMarket_InsufficientShares(t *testing.T) {
	m := newTestMarket(t)

	_, err := m.Submit("alice", "AAPL", book.Sell, 10, 5)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestMarket_FullTradeIsZeroSum(t *testing.T) {
	m := newTestMarket(t)
	m.Deposit("bob", 1000)
	m.Credit("alice", "AAPL", 50)

	_, err := m.Submit("alice", "AAPL", book.Sell, 50, 10)
	require.NoError(t, err)

	report, err := m.Submit("bob", "AAPL", book.Buy, 50, 10)
	require.NoError(t, err)
	require.Equal(t, book.Shares(50), report.SharesExecuted)

	alice := m.Account("alice")
	bob := m.Account("bob")

	assert.Equal(t, int64(500), alice.Cash)
	assert.Equal(t, int64(0), alice.Shares["AAPL"])
	assert.Equal(t, int64(500), bob.Cash)
	assert.Equal(t, int64(50), bob.Shares["AAPL"])
}

func TestMarket_PriceImprovementRefund(t *testing.T) {
	m := newTestMarket(t)
	m.Deposit("bob", 1100)
	m.Credit("alice", "AAPL", 50)

	_, err := m.Submit("alice", "AAPL", book.Sell, 50, 10)
	require.NoError(t, err)

	// bob bids 11 but only pays the resting price of 10.
	report, err := m.Submit("bob", "AAPL", book.Buy, 50, 11)
	require.NoError(t, err)
	require.Equal(t, book.Shares(50), report.SharesExecuted)

	bob := m.Account("bob")
	assert.Equal(t, int64(1100-500), bob.Cash)
	assert.Equal(t, int64(50), bob.Shares["AAPL"])
}

func TestMarket_CancelReleasesReservation(t *testing.T) {
	m := newTestMarket(t)
	m.Deposit("bob", 1000)

	report, err := m.Submit("bob", "AAPL", book.Buy, 50, 10)
	require.NoError(t, err)
	require.Equal(t, book.Shares(0), report.SharesExecuted)

	bobBefore := m.Account("bob")
	assert.Equal(t, int64(500), bobBefore.Cash)

	require.NoError(t, m.Cancel("bob", "AAPL", report.BaseID))

	bobAfter := m.Account("bob")
	assert.Equal(t, int64(1000), bobAfter.Cash)
}

func TestMarket_CancelWrongOwner(t *testing.T) {
	m := newTestMarket(t)
	m.Deposit("bob", 1000)

	report, err := m.Submit("bob", "AAPL", book.Buy, 50, 10)
	require.NoError(t, err)

	err = m.Cancel("eve", "AAPL", report.BaseID)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestMarket_PartialFillSettlesBothSides(t *testing.T) {
	m := newTestMarket(t)
	m.Credit("alice", "AAPL", 100)
	m.Deposit("bob", 1000)

	_, err := m.Submit("alice", "AAPL", book.Sell, 100, 10)
	require.NoError(t, err)

	report, err := m.Submit("bob", "AAPL", book.Buy, 40, 10)
	require.NoError(t, err)
	require.Equal(t, book.Shares(40), report.SharesExecuted)

	alice := m.Account("alice")
	bob := m.Account("bob")
	assert.Equal(t, int64(400), alice.Cash)
	assert.Equal(t, int64(0), alice.Shares["AAPL"])
	assert.Equal(t, int64(600), bob.Cash)
	assert.Equal(t, int64(40), bob.Shares["AAPL"])
}

func TestMarket_SubmitMarket_NoLiquidity(t *testing.T) {
	m := newTestMarket(t)
	m.Deposit("bob", 1000)

	report, err := m.SubmitMarket("bob", "AAPL", book.Buy, 10)
	require.NoError(t, err)
	assert.Equal(t, book.Shares(0), report.SharesExecuted)
}

func TestMarket_SubmitMarket_ExecutesAndCancelsRemainder(t *testing.T) {
	m := newTestMarket(t)
	m.Credit("alice", "AAPL", 20)
	m.Deposit("bob", 10_000)

	_, err := m.Submit("alice", "AAPL", book.Sell, 20, 10)
	require.NoError(t, err)

	report, err := m.SubmitMarket("bob", "AAPL", book.Buy, 50)
	require.NoError(t, err)
	assert.Equal(t, book.Shares(20), report.SharesExecuted)

	bob := m.Account("bob")
	assert.Equal(t, int64(20), bob.Shares["AAPL"])
	// Reservation for the cancelled remainder must be fully released.
	assert.Equal(t, int64(10_000-200), bob.Cash)
}
