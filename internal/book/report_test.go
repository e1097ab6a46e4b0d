package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionReport_Merge(t *testing.T) {
	r := NewExecutionReport(1)
	r.FullyFilledIDs = []OrderID{10}
	r.SharesExecuted = 5
	r.MoneyExchanged = 50

	other := ExecutionReport{
		BaseID:         1,
		FullyFilledIDs: []OrderID{11},
		SharesExecuted: 3,
		MoneyExchanged: 30,
		Partial:        &PartialFill{OrderID: 12, Shares: 2},
	}

	err := r.Merge(other)

	assert.NoError(t, err)
	assert.Equal(t, []OrderID{10, 11}, r.FullyFilledIDs)
	assert.Equal(t, Shares(8), r.SharesExecuted)
	assert.Equal(t, Money(80), r.MoneyExchanged)
	assert.True(t, r.HasPartial())
	assert.Equal(t, OrderID(12), r.Partial.OrderID)
}

func TestExecutionReport_Merge_BaseMismatch(t *testing.T) {
	r := NewExecutionReport(1)
	other := NewExecutionReport(2)

	err := r.Merge(other)

	assert.ErrorIs(t, err, ErrBaseMismatch)
}

func TestExecutionReport_Merge_DoublePartial(t *testing.T) {
	r := NewExecutionReport(1)
	r.Partial = &PartialFill{OrderID: 5, Shares: 1}

	other := ExecutionReport{BaseID: 1, Partial: &PartialFill{OrderID: 6, Shares: 1}}

	err := r.Merge(other)

	assert.ErrorIs(t, err, ErrDoublePartial)
}
