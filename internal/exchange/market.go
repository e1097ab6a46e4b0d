// Package exchange is the collaborator the core order book spec treats as
// external: it routes orders to a per-symbol book.OrderBook, pre-checks that
// a submitting owner can afford the order, and turns the book's
// ExecutionReport back into ledger movements. The core package
// (internal/book) never imports this package or knows it exists.
package exchange

import (
	"sync"

	"github.com/rs/zerolog/log"

	"matchbook/internal/book"
)

// Account holds one owner's cash and per-symbol share holdings.
type Account struct {
	Cash   int64
	Shares map[string]int64
}

func newAccount() *Account {
	return &Account{Shares: make(map[string]int64)}
}

// restingOrder mirrors the resting state of an order placed through this
// Market, so that settlement can recover the owner, side and price an
// ExecutionReport alone does not carry.
type restingOrder struct {
	owner     string
	symbol    string
	side      book.Side
	price     book.Price
	remaining book.Shares
}

// symbolBook is one traded symbol's book plus the bookkeeping Market needs
// to settle trades against it. Each symbol has its own mutex so trading on
// one symbol never blocks trading on another (see SPEC_FULL.md §5).
type symbolBook struct {
	mu      sync.Mutex
	book    *book.OrderBook
	resting map[book.OrderID]*restingOrder
}

// Market is a multi-symbol exchange front-end: one core OrderBook per
// registered symbol, plus an in-memory ledger sufficient to reject orders a
// user cannot afford. It is the concrete collaborator SPEC_FULL.md §4.6
// describes.
type Market struct {
	registryMu sync.Mutex
	books      map[string]*symbolBook

	ledgerMu sync.Mutex
	ledger   map[string]*Account
}

// New creates an empty Market with no registered symbols or accounts.
func New() *Market {
	return &Market{
		books:  make(map[string]*symbolBook),
		ledger: make(map[string]*Account),
	}
}

// RegisterSymbol lazily creates a book for symbol. Calling it twice for the
// same symbol is a no-op.
func (m *Market) RegisterSymbol(symbol string) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()

	if _, ok := m.books[symbol]; ok {
		return
	}
	m.books[symbol] = &symbolBook{
		book:    book.New(),
		resting: make(map[book.OrderID]*restingOrder),
	}
	log.Info().Str("symbol", symbol).Msg("registered symbol")
}

// Deposit credits owner's cash balance, creating the account if needed. It
// exists to seed demo accounts; there is no withdrawal path at this layer.
func (m *Market) Deposit(owner string, cash int64) {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()
	m.account(owner).Cash += cash
}

// Credit adds shares of symbol to owner's holdings, creating the account if
// needed. Used to seed demo inventory.
func (m *Market) Credit(owner, symbol string, shares int64) {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()
	m.account(owner).Shares[symbol] += shares
}

// account returns owner's ledger entry, creating an empty one if absent.
// Callers must hold ledgerMu.
func (m *Market) account(owner string) *Account {
	acct, ok := m.ledger[owner]
	if !ok {
		acct = newAccount()
		m.ledger[owner] = acct
	}
	return acct
}

// Account returns a snapshot of owner's balances.
func (m *Market) Account(owner string) Account {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()
	acct := m.account(owner)
	shares := make(map[string]int64, len(acct.Shares))
	for k, v := range acct.Shares {
		shares[k] = v
	}
	return Account{Cash: acct.Cash, Shares: shares}
}

func (m *Market) symbol(symbol string) (*symbolBook, error) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	sb, ok := m.books[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	return sb, nil
}

// Submit places a limit order for owner on symbol. The order's full value
// (shares*price, in cash for a buy or in shares for a sell) is reserved from
// owner's account up front — for the executed portion that reservation
// settles exactly; for any remainder that rests, it stays reserved until the
// order later fills or is cancelled.
func (m *Market) Submit(owner, symbol string, side book.Side, shares book.Shares, price book.Price) (book.ExecutionReport, error) {
	sb, err := m.symbol(symbol)
	if err != nil {
		return book.ExecutionReport{}, err
	}

	if err := m.reserve(owner, symbol, side, shares, price); err != nil {
		return book.ExecutionReport{}, err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	report, err := sb.book.Submit(side, shares, price, 0)
	if err != nil {
		m.release(owner, symbol, side, shares, price)
		return book.ExecutionReport{}, err
	}

	m.settle(sb, owner, symbol, side, price, report)

	if rested := shares - report.SharesExecuted; rested > 0 {
		sb.resting[report.BaseID] = &restingOrder{
			owner: owner, symbol: symbol, side: side, price: price, remaining: rested,
		}
	}

	log.Info().
		Str("owner", owner).
		Str("symbol", symbol).
		Str("side", side.String()).
		Int64("shares", int64(shares)).
		Int64("price", int64(price)).
		Int64("sharesExecuted", int64(report.SharesExecuted)).
		Msg("order submitted")

	return report, nil
}

// SubmitMarket resolves a marketable limit price from the current best
// opposite price and submits it, then cancels any resting remainder — an
// IOC-flavoured convenience built entirely out of core Submit+Cancel calls,
// never by passing a non-zero TimeInForce into the core (see SPEC_FULL.md
// §9). Returns a zero-value report if there is no opposite liquidity to
// trade against at all.
func (m *Market) SubmitMarket(owner, symbol string, side book.Side, shares book.Shares) (book.ExecutionReport, error) {
	sb, err := m.symbol(symbol)
	if err != nil {
		return book.ExecutionReport{}, err
	}

	price, ok := m.marketablePrice(sb, side)
	if !ok {
		return book.ExecutionReport{}, nil
	}

	report, err := m.Submit(owner, symbol, side, shares, price)
	if err != nil {
		return book.ExecutionReport{}, err
	}

	if rested := shares - report.SharesExecuted; rested > 0 {
		if cancelErr := m.Cancel(owner, symbol, report.BaseID); cancelErr != nil {
			log.Error().Err(cancelErr).Uint64("orderID", uint64(report.BaseID)).Msg("failed to cancel unfilled market order remainder")
		}
	}

	return report, nil
}

func (m *Market) marketablePrice(sb *symbolBook, side book.Side) (book.Price, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if side == book.Buy {
		return sb.book.BestAsk()
	}
	return sb.book.BestBid()
}

// Cancel removes owner's resting order on symbol and releases whatever of
// the order's value was still reserved. Fails with ErrNotOwner if the order
// belongs to someone else, and surfaces ErrUnknownOrder (from the core) for
// an order id that is not resting.
func (m *Market) Cancel(owner, symbol string, orderID book.OrderID) error {
	sb, err := m.symbol(symbol)
	if err != nil {
		return err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	resting, ok := sb.resting[orderID]
	if !ok {
		return book.ErrUnknownOrder
	}
	if resting.owner != owner {
		return ErrNotOwner
	}

	if err := sb.book.Cancel(orderID); err != nil {
		return err
	}

	m.release(owner, symbol, resting.side, resting.remaining, resting.price)
	delete(sb.resting, orderID)

	log.Info().Str("owner", owner).Str("symbol", symbol).Uint64("orderID", uint64(orderID)).Msg("order cancelled")
	return nil
}

// reserve deducts the full value of a new order from owner's account,
// failing with ErrInsufficientFunds/ErrInsufficientShares if they cannot
// cover it. On success, owner's account reflects the reservation
// immediately, whether or not the order goes on to execute.
func (m *Market) reserve(owner, symbol string, side book.Side, shares book.Shares, price book.Price) error {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()

	acct := m.account(owner)
	switch side {
	case book.Buy:
		cost := int64(shares) * int64(price)
		if acct.Cash < cost {
			return ErrInsufficientFunds
		}
		acct.Cash -= cost
	case book.Sell:
		if acct.Shares[symbol] < int64(shares) {
			return ErrInsufficientShares
		}
		acct.Shares[symbol] -= int64(shares)
	}
	return nil
}

// release returns a reservation of shares at price on side back to owner;
// used on cancel and to unwind a reservation when the core rejects an order
// after Market already reserved its value.
func (m *Market) release(owner, symbol string, side book.Side, shares book.Shares, price book.Price) {
	if shares <= 0 {
		return
	}
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()

	acct := m.account(owner)
	switch side {
	case book.Buy:
		acct.Cash += int64(shares) * int64(price)
	case book.Sell:
		acct.Shares[symbol] += int64(shares)
	}
}

// settle walks report and moves cash/shares for the aggressor and every
// named counterparty. sb.mu must already be held by the caller.
func (m *Market) settle(sb *symbolBook, owner, symbol string, side book.Side, price book.Price, report book.ExecutionReport) {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()

	aggressor := m.account(owner)
	switch side {
	case book.Buy:
		aggressor.Shares[symbol] += int64(report.SharesExecuted)
		// Price improvement: the reservation was made at the full limit
		// price for the whole order; refund the difference for the shares
		// that filled at a better (lower) resting price.
		reservedAtLimit := int64(report.SharesExecuted) * int64(price)
		aggressor.Cash += reservedAtLimit - int64(report.MoneyExchanged)
	case book.Sell:
		aggressor.Cash += int64(report.MoneyExchanged)
	}

	for _, id := range report.FullyFilledIDs {
		resting, ok := sb.resting[id]
		if !ok {
			continue
		}
		m.settleCounterparty(resting, resting.remaining)
		delete(sb.resting, id)
	}

	if report.Partial != nil {
		if resting, ok := sb.resting[report.Partial.OrderID]; ok {
			m.settleCounterparty(resting, report.Partial.Shares)
			resting.remaining -= report.Partial.Shares
		}
	}
}

// settleCounterparty credits a resting counterparty for quantity shares
// matched at its own resting price. Callers must hold ledgerMu.
func (m *Market) settleCounterparty(resting *restingOrder, quantity book.Shares) {
	acct := m.account(resting.owner)
	switch resting.side {
	case book.Buy:
		// The resting buyer already reserved quantity*price in cash when
		// its order was placed; it now receives the shares.
		acct.Shares[resting.symbol] += int64(quantity)
	case book.Sell:
		// The resting seller already gave up its shares at submit time; it
		// now receives the proceeds at its own resting price.
		acct.Cash += int64(quantity) * int64(resting.price)
	}
}
