// Package wire is the binary TCP framing used between cmd/client and
// cmd/server. It never imports internal/book directly; it only moves plain
// integers and strings that internal/server translates into book.* and
// exchange.* calls.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for declared field lengths")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

const (
	baseHeaderLen           = 2
	newOrderFixedLen        = 1 + 8 + 8 + 1 + 1 // side + shares + price + symbolLen + usernameLen
	cancelOrderFixedLen     = 8 + 1 + 1         // orderID + symbolLen + usernameLen
	reportFixedHeaderLen    = 1 + 1 + 8 + 8 + 8 + 8 + 16 + 2 + 4 + 1
)

// BaseMessage is embedded by every concrete message to satisfy Message.
type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

// ParseMessage reads the 2-byte type header off buf and dispatches to the
// matching field parser.
func ParseMessage(buf []byte) (Message, error) {
	if len(buf) < baseHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(buf[0:2]))
	body := buf[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// NewOrderMessage is a limit order submission. Side is 0 for buy, 1 for
// sell. Price and Shares are plain integers on the wire, matching
// internal/book's integer Price/Shares types rather than the teacher's
// float64 encoding.
type NewOrderMessage struct {
	BaseMessage
	ClientOrderID uuid.UUID
	Side          uint8
	Shares        uint64
	Price         uint64
	Symbol        string
	Username      string
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < 16+newOrderFixedLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	clientID, err := uuid.FromBytes(msg[0:16])
	if err != nil {
		return NewOrderMessage{}, fmt.Errorf("parsing client order id: %w", err)
	}
	m.ClientOrderID = clientID

	rest := msg[16:]
	m.Side = rest[0]
	m.Shares = binary.BigEndian.Uint64(rest[1:9])
	m.Price = binary.BigEndian.Uint64(rest[9:17])
	symbolLen := int(rest[17])
	usernameLen := int(rest[18])

	fields := rest[19:]
	if len(fields) < symbolLen+usernameLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(fields[:symbolLen])
	m.Username = string(fields[symbolLen : symbolLen+usernameLen])

	return m, nil
}

// Serialize packs a NewOrderMessage for the wire; used by cmd/client.
func (m NewOrderMessage) Serialize() []byte {
	symbol := []byte(m.Symbol)
	username := []byte(m.Username)

	buf := make([]byte, baseHeaderLen+16+newOrderFixedLen+len(symbol)+len(username))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	copy(buf[2:18], m.ClientOrderID[:])
	buf[18] = m.Side
	binary.BigEndian.PutUint64(buf[19:27], m.Shares)
	binary.BigEndian.PutUint64(buf[27:35], m.Price)
	buf[35] = uint8(len(symbol))
	buf[36] = uint8(len(username))
	copy(buf[37:37+len(symbol)], symbol)
	copy(buf[37+len(symbol):], username)
	return buf
}

// CancelOrderMessage cancels a previously placed order by its core order id.
type CancelOrderMessage struct {
	BaseMessage
	OrderID  uint64
	Symbol   string
	Username string
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < 8+2 {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	m.OrderID = binary.BigEndian.Uint64(msg[0:8])
	symbolLen := int(msg[8])
	usernameLen := int(msg[9])

	fields := msg[10:]
	if len(fields) < symbolLen+usernameLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(fields[:symbolLen])
	m.Username = string(fields[symbolLen : symbolLen+usernameLen])
	return m, nil
}

// Serialize packs a CancelOrderMessage for the wire; used by cmd/client.
func (m CancelOrderMessage) Serialize() []byte {
	symbol := []byte(m.Symbol)
	username := []byte(m.Username)

	buf := make([]byte, baseHeaderLen+10+len(symbol)+len(username))
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], m.OrderID)
	buf[10] = uint8(len(symbol))
	buf[11] = uint8(len(username))
	copy(buf[12:12+len(symbol)], symbol)
	copy(buf[12+len(symbol):], username)
	return buf
}

// Report is what the server pushes back to a client: either confirmation of
// executed shares or an error string.
type Report struct {
	MessageType  ReportMessageType
	Side         uint8
	Timestamp    uint64
	OrderID      uint64
	SharesFilled uint64
	MoneyMoved   uint64
	Counterparty string
	Symbol       string
	Err          string
}

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	counterparty := []byte(r.Counterparty)
	errStr := []byte(r.Err)
	symbol := []byte(r.Symbol)

	totalSize := reportFixedHeaderLen + len(counterparty) + len(errStr)
	buf := make([]byte, totalSize)

	buf[0] = byte(r.MessageType)
	buf[1] = r.Side
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], r.OrderID)
	binary.BigEndian.PutUint64(buf[18:26], r.SharesFilled)
	binary.BigEndian.PutUint64(buf[26:34], r.MoneyMoved)
	copy(buf[34:50], symbolPad(symbol))
	binary.BigEndian.PutUint16(buf[50:52], uint16(len(counterparty)))
	binary.BigEndian.PutUint32(buf[52:56], uint32(len(errStr)))
	buf[56] = 0

	offset := reportFixedHeaderLen
	copy(buf[offset:], counterparty)
	offset += len(counterparty)
	copy(buf[offset:], errStr)

	return buf
}

func symbolPad(symbol []byte) []byte {
	padded := make([]byte, 16)
	copy(padded, symbol)
	return padded
}

// NewExecutionWireReport builds an execution report for orderID; the server
// sends it to the user who submitted the order.
func NewExecutionWireReport(side uint8, orderID uint64, symbol, counterparty string, sharesFilled, moneyMoved uint64) Report {
	return Report{
		MessageType:  ExecutionReport,
		Side:         side,
		Timestamp:    uint64(time.Now().Unix()),
		OrderID:      orderID,
		SharesFilled: sharesFilled,
		MoneyMoved:   moneyMoved,
		Counterparty: counterparty,
		Symbol:       symbol,
	}
}

// NewErrorWireReport builds the report sent when a client's request fails.
func NewErrorWireReport(err error) Report {
	return Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(time.Now().Unix()),
		Err:         err.Error(),
	}
}
