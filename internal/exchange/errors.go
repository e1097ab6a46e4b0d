package exchange

import "errors"

var (
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrInsufficientFunds  = errors.New("insufficient cash to place buy order")
	ErrInsufficientShares = errors.New("insufficient shares to place sell order")
	ErrNotOwner           = errors.New("order belongs to a different owner")
)
