package book

import "container/list"

// PriceLevel is the FIFO queue of resting orders sharing one limit price,
// plus the aggregate depth (open shares) and cumulative volume (historically
// traded shares) at that price.
//
// The queue is backed by container/list so that Push returns a stable
// *list.Element handle: removal given a handle is O(1) and unaffected by
// unrelated pushes or removals elsewhere in the level, which is what the
// OrderBook's order index requires (see OrderBook.orderIndex).
type PriceLevel struct {
	Price  Price
	Depth  Shares
	Volume Shares

	queue *list.List
}

// NewPriceLevel creates an empty level at price.
func NewPriceLevel(price Price) *PriceLevel {
	return &PriceLevel{Price: price, queue: list.New()}
}

// Push appends order to the back of the queue and returns a locator usable
// for later O(1) removal. order.LimitPrice must equal l.Price; callers own
// that invariant.
func (l *PriceLevel) Push(order *Order) *list.Element {
	l.Depth += order.Shares
	return l.queue.PushBack(order)
}

// Remove unlinks the order at loc, updates Depth, and returns the side of
// the removed order. loc must be a live locator previously returned by Push
// on this level.
func (l *PriceLevel) Remove(loc *list.Element) Side {
	order := loc.Value.(*Order)
	l.queue.Remove(loc)
	l.Depth -= order.Shares
	return order.Side
}

// IsEmpty reports whether the level currently holds no open shares.
func (l *PriceLevel) IsEmpty() bool {
	return l.Depth == 0
}

// Orders returns the resting orders in FIFO order (front = oldest). Intended
// for tests and diagnostics; callers must not mutate the returned orders'
// identity fields.
func (l *PriceLevel) Orders() []*Order {
	orders := make([]*Order, 0, l.queue.Len())
	for e := l.queue.Front(); e != nil; e = e.Next() {
		orders = append(orders, e.Value.(*Order))
	}
	return orders
}

// MatchShares consumes up to n shares from the front of the queue,
// fulfilling the oldest resting orders first. n must not exceed Depth.
//
// The last order touched is either fully consumed (appended to
// FullyFilledIDs and popped) or partially consumed (recorded as the
// report's Partial, left resting at the front of the queue) — never both,
// which is what guarantees a single MatchShares call never produces two
// partial fills.
func (l *PriceLevel) MatchShares(baseID OrderID, n Shares) (ExecutionReport, error) {
	if n > l.Depth {
		return ExecutionReport{}, ErrInsufficientDepth
	}

	report := NewExecutionReport(baseID)
	for n > 0 {
		front := l.queue.Front()
		head := front.Value.(*Order)

		take, fullyFilled := head.Execute(n)
		if fullyFilled {
			report.FullyFilledIDs = append(report.FullyFilledIDs, head.ID)
			l.queue.Remove(front)
		} else {
			report.Partial = &PartialFill{OrderID: head.ID, Shares: take}
		}

		report.MoneyExchanged += Money(l.Price) * Money(take)
		report.SharesExecuted += take
		n -= take
	}

	l.Depth -= report.SharesExecuted
	l.Volume += report.SharesExecuted
	return report, nil
}
