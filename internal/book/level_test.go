package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceLevel_PushDepth(t *testing.T) {
	l := NewPriceLevel(10)

	l.Push(&Order{ID: 1, Side: Buy, Shares: 5, LimitPrice: 10})
	l.Push(&Order{ID: 2, Side: Buy, Shares: 7, LimitPrice: 10})

	assert.Equal(t, Shares(12), l.Depth)
	assert.False(t, l.IsEmpty())
}

func TestPriceLevel_MatchShares_FIFO(t *testing.T) {
	l := NewPriceLevel(10)
	l.Push(&Order{ID: 1, Side: Sell, Shares: 5, LimitPrice: 10})
	l.Push(&Order{ID: 2, Side: Sell, Shares: 5, LimitPrice: 10})

	report, err := l.MatchShares(99, 7)

	assert.NoError(t, err)
	assert.Equal(t, Shares(7), report.SharesExecuted)
	assert.Equal(t, Money(70), report.MoneyExchanged)
	assert.Equal(t, []OrderID{1}, report.FullyFilledIDs)
	assert.Equal(t, &PartialFill{OrderID: 2, Shares: 2}, report.Partial)
	assert.Equal(t, Shares(3), l.Depth)
	assert.Equal(t, Shares(7), l.Volume)
}

func TestPriceLevel_MatchShares_InsufficientDepth(t *testing.T) {
	l := NewPriceLevel(10)
	l.Push(&Order{ID: 1, Side: Sell, Shares: 5, LimitPrice: 10})

	_, err := l.MatchShares(1, 6)

	assert.ErrorIs(t, err, ErrInsufficientDepth)
}

func TestPriceLevel_Remove(t *testing.T) {
	l := NewPriceLevel(10)
	loc1 := l.Push(&Order{ID: 1, Side: Buy, Shares: 5, LimitPrice: 10})
	l.Push(&Order{ID: 2, Side: Buy, Shares: 5, LimitPrice: 10})

	side := l.Remove(loc1)

	assert.Equal(t, Buy, side)
	assert.Equal(t, Shares(5), l.Depth)
	assert.Len(t, l.Orders(), 1)
	assert.Equal(t, OrderID(2), l.Orders()[0].ID)
}
