// Package server is the TCP front door onto an exchange.Market, adapted
// from the teacher's internal/net.Server: a worker pool reads one message
// per connection at a time, a single session handler goroutine serializes
// calls into the market, and trade/error reports are pushed back out over
// each client's own connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchbook/internal/book"
	"matchbook/internal/exchange"
	"matchbook/internal/wire"
	"matchbook/internal/wpool"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

var (
	ErrImproperConversion = errors.New("improper task type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// clientSession tracks one connected TCP client by username.
type clientSession struct {
	conn net.Conn
}

// clientMessage links a parsed wire message to the username that sent it.
type clientMessage struct {
	username string
	message  wire.Message
}

// Server accepts order flow over TCP and routes it into a Market.
type Server struct {
	address string
	port    int
	market  *exchange.Market

	pool   wpool.Pool
	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]clientSession

	inbox chan clientMessage
}

// New creates a Server that will route all order flow to market.
func New(address string, port int, market *exchange.Market) *Server {
	return &Server{
		address:  address,
		port:     port,
		market:   market,
		pool:     wpool.New(defaultNWorkers),
		sessions: make(map[string]clientSession),
		inbox:    make(chan clientMessage, 1),
	}
}

// Shutdown stops the running server.
func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens for connections until ctx is cancelled. It blocks.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}
	// Closing the listener on cancellation unblocks Accept below.
	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("closing listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			log.Info().Str("address", conn.RemoteAddr().String()).Msg("client connected")
			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler drains parsed messages one at a time, so the market only
// ever sees one request from this server at a time per connection slot.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.inbox:
			if err := s.handleMessage(msg); err != nil {
				log.Error().Err(err).Str("username", msg.username).Msg("error handling message")
				s.reportError(msg.username, err)
			}
		}
	}
}

func (s *Server) handleMessage(msg clientMessage) error {
	switch msg.message.GetType() {
	case wire.NewOrder:
		order, ok := msg.message.(wire.NewOrderMessage)
		if !ok {
			return ErrImproperConversion
		}
		return s.handleNewOrder(msg.username, order)
	case wire.CancelOrder:
		cancel, ok := msg.message.(wire.CancelOrderMessage)
		if !ok {
			return ErrImproperConversion
		}
		return s.market.Cancel(cancel.Username, cancel.Symbol, book.OrderID(cancel.OrderID))
	case wire.Heartbeat:
		return nil
	default:
		return wire.ErrInvalidMessageType
	}
}

func (s *Server) handleNewOrder(username string, order wire.NewOrderMessage) error {
	side := book.Buy
	if order.Side == 1 {
		side = book.Sell
	}

	report, err := s.market.Submit(order.Username, order.Symbol, side, book.Shares(order.Shares), book.Price(order.Price))
	if err != nil {
		return err
	}

	wireReport := wire.NewExecutionWireReport(order.Side, uint64(report.BaseID), order.Symbol, username, uint64(report.SharesExecuted), uint64(report.MoneyExchanged))
	return s.send(username, &wireReport)
}

func (s *Server) reportError(username string, err error) {
	report := wire.NewErrorWireReport(err)
	if sendErr := s.send(username, &report); sendErr != nil {
		log.Error().Err(sendErr).Str("username", username).Msg("failed delivering error report")
	}
}

func (s *Server) send(username string, report *wire.Report) error {
	s.sessionsMu.Lock()
	session, ok := s.sessions[username]
	s.sessionsMu.Unlock()
	if !ok {
		return ErrClientDoesNotExist
	}

	if _, err := session.conn.Write(report.Serialize()); err != nil {
		s.deleteSession(username)
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// handleConnection reads exactly one message off conn, registers the
// session under the username it announced, and hands the connection back to
// the pool so another worker can read its next message. Any returned error
// is fatal to the owning tomb, so per-message failures are not returned
// here: a message that fails to parse is logged, and a failure while
// handling a parsed message is reported back to the client.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("setting connection deadline")
		_ = conn.Close()
		return nil
	}

	buf := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buf)
		if err != nil {
			log.Info().Str("address", conn.RemoteAddr().String()).Msg("client connection closed")
			_ = conn.Close()
			return nil
		}

		message, err := wire.ParseMessage(buf[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error parsing message")
			s.pool.AddTask(conn)
			return nil
		}

		username := usernameOf(message)
		if username != "" {
			s.addSession(username, conn)
		}

		s.inbox <- clientMessage{username: username, message: message}
		s.pool.AddTask(conn)
	}
	return nil
}

func usernameOf(m wire.Message) string {
	switch v := m.(type) {
	case wire.NewOrderMessage:
		return v.Username
	case wire.CancelOrderMessage:
		return v.Username
	default:
		return ""
	}
}

func (s *Server) addSession(username string, conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[username] = clientSession{conn: conn}
}

func (s *Server) deleteSession(username string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, username)
}
