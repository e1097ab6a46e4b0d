package book

import (
	"container/list"

	"github.com/tidwall/btree"
)

// locator is what orderIndex stores per resting order: which side-map holds
// it, which price level it rests at, and a handle for O(1) removal from that
// level's FIFO queue.
type locator struct {
	side Side
	price Price
	elem  *list.Element
}

// levels is a price-ordered map of PriceLevel, as used for both Bids and Asks.
type levels = btree.BTreeG[*PriceLevel]

// OrderBook is a single-symbol limit order book: two price-ordered level
// maps, an id->locator index for O(1) cancellation, and an archive of
// emptied levels retaining historical volume. An OrderBook is a
// single-threaded, non-reentrant unit; callers needing
// concurrent access must serialise it themselves (one writer at a time).
type OrderBook struct {
	bids *levels // sorted highest price first
	asks *levels // sorted lowest price first

	archive map[Price]*PriceLevel

	orderIndex map[OrderID]locator

	totalVolume Shares
	nextOrderID OrderID
}

// New creates an empty order book.
func New() *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price > b.Price })
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price < b.Price })
	return &OrderBook{
		bids:       bids,
		asks:       asks,
		archive:    make(map[Price]*PriceLevel),
		orderIndex: make(map[OrderID]locator),
	}
}

func keyLevel(price Price) *PriceLevel { return &PriceLevel{Price: price} }

// Submit assigns a fresh order id, matches it against resting liquidity
// where marketable, rests any remainder, and returns a report describing
// what happened — even when nothing matched (SharesExecuted == 0).
//
// shares and limitPrice must be positive and timeInForce must be 0 ("rest
// indefinitely"); any other input fails with ErrInvalidOrder and leaves the
// book, the id counter and the report unemitted.
func (b *OrderBook) Submit(side Side, shares Shares, limitPrice Price, timeInForce int) (ExecutionReport, error) {
	if shares <= 0 || limitPrice <= 0 {
		return ExecutionReport{}, ErrInvalidOrder
	}
	if timeInForce != 0 {
		return ExecutionReport{}, ErrInvalidOrder
	}

	id := b.nextOrderID
	b.nextOrderID++

	order := &Order{ID: id, Side: side, Shares: shares, LimitPrice: limitPrice, TimeInForce: timeInForce}
	report := NewExecutionReport(id)

	b.match(order, &report)

	if order.Shares > 0 {
		b.rest(order)
	}

	b.totalVolume += report.SharesExecuted
	return report, nil
}

// match sweeps the opposite side while order remains marketable, merging
// each level's sub-report into report and archiving any level it empties.
func (b *OrderBook) match(order *Order, report *ExecutionReport) {
	for order.Shares > 0 {
		level, ok := b.bestOpposing(order.Side)
		if !ok || !marketable(order.Side, order.LimitPrice, level.Price) {
			return
		}

		take := order.Shares
		if level.Depth < take {
			take = level.Depth
		}

		sub, err := level.MatchShares(order.ID, take)
		if err != nil {
			// The driver must never request more than the level holds;
			// surfacing this would indicate a book bug, not a user error.
			panic(err)
		}
		for _, filledID := range sub.FullyFilledIDs {
			delete(b.orderIndex, filledID)
		}
		if err := report.Merge(sub); err != nil {
			panic(err)
		}

		order.Shares -= sub.SharesExecuted

		if level.IsEmpty() {
			b.archiveLevel(opposite(order.Side), level)
		}
	}
}

// bestOpposing returns the best resting level on the side opposite to side.
func (b *OrderBook) bestOpposing(side Side) (*PriceLevel, bool) {
	if side == Buy {
		return b.asks.Min()
	}
	return b.bids.Min()
}

func marketable(side Side, incomingPrice, restingPrice Price) bool {
	if side == Buy {
		return incomingPrice >= restingPrice
	}
	return incomingPrice <= restingPrice
}

func opposite(side Side) Side {
	if side == Buy {
		return Sell
	}
	return Buy
}

// rest places the still-hungry remainder of order on its own side. By
// construction the opposite side no longer crosses order's price, so this
// never re-enters matching.
func (b *OrderBook) rest(order *Order) {
	side := sideLevels(b, order.Side)

	level, ok := side.Get(keyLevel(order.LimitPrice))
	if !ok {
		if archived, ok := b.archive[order.LimitPrice]; ok {
			level = archived
			delete(b.archive, order.LimitPrice)
		} else {
			level = NewPriceLevel(order.LimitPrice)
		}
		side.Set(level)
	}

	elem := level.Push(order)
	b.orderIndex[order.ID] = locator{side: order.Side, price: order.LimitPrice, elem: elem}
}

func sideLevels(b *OrderBook, side Side) *levels {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// archiveLevel moves an emptied level from its side-map to the archive,
// preserving Volume.
func (b *OrderBook) archiveLevel(side Side, level *PriceLevel) {
	sideLevels(b, side).Delete(level)
	b.archive[level.Price] = level
}

// Cancel removes a resting order from the book. Fails with ErrUnknownOrder
// if orderID is not currently resting.
func (b *OrderBook) Cancel(orderID OrderID) error {
	loc, ok := b.orderIndex[orderID]
	if !ok {
		return ErrUnknownOrder
	}

	side := sideLevels(b, loc.side)
	level, ok := side.Get(keyLevel(loc.price))
	if !ok {
		// Programmer error: the index pointed at a price with no live level.
		panic("book: order index referenced a price with no live level")
	}

	level.Remove(loc.elem)
	delete(b.orderIndex, orderID)

	if level.IsEmpty() {
		b.archiveLevel(loc.side, level)
	}
	return nil
}

// VolumeAt returns the cumulative matched shares at price, live or archived.
// Live and archived levels for the same price are disjoint by construction;
// this asserts that rather than summing both (see design notes).
func (b *OrderBook) VolumeAt(price Price) Shares {
	liveBid, hasBid := b.bids.Get(keyLevel(price))
	liveAsk, hasAsk := b.asks.Get(keyLevel(price))
	archived, hasArchived := b.archive[price]

	live, hasLive := liveBid, hasBid
	if hasAsk {
		live, hasLive = liveAsk, true
	}

	if hasLive && hasArchived {
		panic("book: price present in both a live level and the archive")
	}
	if hasLive {
		return live.Volume
	}
	if hasArchived {
		return archived.Volume
	}
	return 0
}

// BestBid returns the highest resting buy price and true, or (0, false) if
// the bid side is empty.
func (b *OrderBook) BestBid() (Price, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestAsk returns the lowest resting sell price and true, or (0, false) if
// the ask side is empty.
func (b *OrderBook) BestAsk() (Price, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// TotalVolume returns the cumulative shares matched on this book.
func (b *OrderBook) TotalVolume() Shares {
	return b.totalVolume
}
