package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_Execute_Partial(t *testing.T) {
	o := &Order{ID: 1, Side: Buy, Shares: 10, LimitPrice: 5}

	consumed, full := o.Execute(4)

	assert.Equal(t, Shares(4), consumed)
	assert.False(t, full)
	assert.Equal(t, Shares(6), o.Shares)
}

func TestOrder_Execute_Full(t *testing.T) {
	o := &Order{ID: 1, Side: Sell, Shares: 10, LimitPrice: 5}

	consumed, full := o.Execute(15)

	assert.Equal(t, Shares(10), consumed)
	assert.True(t, full)
	assert.Equal(t, Shares(0), o.Shares)
}

func TestOrder_CloneWithShares(t *testing.T) {
	o := Order{ID: 7, Side: Buy, Shares: 100, LimitPrice: 42, TimeInForce: 0}

	clone := o.CloneWithShares(30)

	assert.Equal(t, o.ID, clone.ID)
	assert.Equal(t, o.Side, clone.Side)
	assert.Equal(t, o.LimitPrice, clone.LimitPrice)
	assert.Equal(t, Shares(30), clone.Shares)
	assert.Equal(t, Shares(100), o.Shares, "original order must be untouched")
}
