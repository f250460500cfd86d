package websocket

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"HarborChat/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the server.
	pongWait = 60 * time.Second

	// Ping period, must be less than pongWait.
	pingPeriod = 30 * time.Second

	// Maximum inbound frame size.
	maxMessageSize = 1024 * 16
)

var (
	ErrNotConnected   = errors.New("session is not authenticated")
	ErrSendBufferFull = errors.New("session send buffer is full")
	ErrNoCredential   = errors.New("no credential available for session")
)

// CredentialSource provides the bearer credential backing the session.
// A fresh credential is fetched before every connection attempt.
type CredentialSource interface {
	Active() (models.SessionCredential, error)
}

// Session owns the single persistent duplex connection to the message
// server. It runs the state machine
//
//	disconnected -> connecting -> awaiting_auth -> authenticated
//
// and falls back to disconnected on any error or explicit close. An
// unexpected close schedules a reconnect with exponential backoff; a
// clean Close suppresses reconnection.
type Session struct {
	url         string
	dialer      *websocket.Dialer
	dispatcher  *Dispatcher
	credentials CredentialSource
	baseDelay   time.Duration
	maxAttempts int

	// connectMu serializes connection attempts: a second concurrent
	// Connect call waits on the first and then no-ops.
	connectMu sync.Mutex

	mu             sync.Mutex
	conn           *websocket.Conn
	send           chan Command
	done           chan struct{}
	state          models.ConnectionStatus
	credential     models.SessionCredential
	attempts       int
	closedCleanly  bool
	reconnectTimer *time.Timer
}

// NewSession creates a disconnected session. baseDelay and maxAttempts
// control the reconnect backoff (delay = baseDelay * 2^(attempt-1)).
func NewSession(url string, credentials CredentialSource, dispatcher *Dispatcher, baseDelay time.Duration, maxAttempts int) *Session {
	return &Session{
		url:         url,
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		dispatcher:  dispatcher,
		credentials: credentials,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		state:       models.StatusDisconnected,
	}
}

// State returns the current connection state.
func (s *Session) State() models.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Credential returns the credential the current connection was opened
// with. Zero value while disconnected.
func (s *Session) Credential() models.SessionCredential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// Attempts returns the current reconnect attempt counter. It resets to
// zero on every successful authentication.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Connect opens the transport and starts the authentication handshake.
// It is a no-op when a connection is already open or being opened. The
// credential is fetched fresh from the credential source; if none is
// available the attempt is abandoned and an auth error is surfaced
// instead of retrying blindly.
func (s *Session) Connect() error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	if s.state != models.StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.closedCleanly = false
	s.state = models.StatusConnecting
	s.mu.Unlock()
	s.notifyStatus(models.StatusConnecting)

	credential, err := s.credentials.Active()
	if err != nil {
		s.mu.Lock()
		s.state = models.StatusDisconnected
		s.mu.Unlock()
		s.notifyStatus(models.StatusDisconnected)
		s.dispatcher.Dispatch(Event{Type: EventAuthError, ErrorMessage: "no active credential"})
		return fmt.Errorf("%w: %v", ErrNoCredential, err)
	}

	conn, _, err := s.dialer.Dial(s.url, nil)
	if err != nil {
		s.mu.Lock()
		s.state = models.StatusDisconnected
		s.mu.Unlock()
		s.notifyStatus(models.StatusDisconnected)
		s.scheduleReconnect()
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	send := make(chan Command, 256)
	done := make(chan struct{})

	s.mu.Lock()
	if s.closedCleanly {
		// Close raced with the dial: drop the fresh connection.
		s.state = models.StatusDisconnected
		s.mu.Unlock()
		conn.Close()
		s.notifyStatus(models.StatusDisconnected)
		return nil
	}
	s.conn = conn
	s.send = send
	s.done = done
	s.credential = credential
	s.state = models.StatusAwaitingAuth
	s.mu.Unlock()
	s.notifyStatus(models.StatusAwaitingAuth)

	// Authenticate immediately on open, before the write pump takes
	// over the connection.
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(AuthenticateCommand(credential.Token)); err != nil {
		conn.Close()
		s.handleDisconnect(conn)
		return fmt.Errorf("send authenticate: %w", err)
	}

	go s.readPump(conn)
	go s.writePump(conn, send, done)
	return nil
}

// Send delivers a command over the duplex connection. It fails
// synchronously unless the session is authenticated; callers must
// treat failure as "not delivered" and use the request fallback layer.
func (s *Session) Send(command Command) error {
	s.mu.Lock()
	if s.state != models.StatusAuthenticated || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	send := s.send
	s.mu.Unlock()

	select {
	case send <- command:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the session down cleanly: reconnection is suppressed,
// pending reconnect timers are cancelled and the attempt counter is
// reset. Teardown happens synchronously, so a Connect issued right
// after Close sees a disconnected session instead of racing the read
// pump's exit.
func (s *Session) Close() {
	s.mu.Lock()
	s.closedCleanly = true
	s.attempts = 0
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	if s.teardown(conn) {
		s.notifyStatus(models.StatusDisconnected)
	}
}

func (s *Session) readPump(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		s.handleDisconnect(conn)
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WebSocket] read error: %v", err)
			}
			return
		}

		event, err := DecodeEvent(data)
		if err != nil {
			// Malformed frames are dropped, never propagated.
			log.Printf("[WebSocket] dropping frame: %v", err)
			continue
		}
		s.handleInbound(event)
	}
}

func (s *Session) writePump(conn *websocket.Conn, send <-chan Command, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case command := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(command); err != nil {
				log.Printf("[WebSocket] write error: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleInbound updates the session state machine for auth frames and
// forwards every event to the dispatcher, in arrival order.
func (s *Session) handleInbound(event Event) {
	switch event.Type {
	case EventAuthenticated:
		s.mu.Lock()
		s.state = models.StatusAuthenticated
		s.attempts = 0
		s.mu.Unlock()
		log.Printf("[WebSocket] authenticated")
		s.notifyStatus(models.StatusAuthenticated)

	case EventAuthError:
		// Auth errors are not retryable without a fresh credential.
		// Suppress the automatic reconnect; the token monitor decides
		// whether a refreshed credential justifies reopening. Teardown
		// is synchronous so a refresh-driven Connect issued from the
		// auth error handler cannot observe a half-open session.
		s.mu.Lock()
		s.closedCleanly = true
		conn := s.conn
		s.mu.Unlock()
		log.Printf("[WebSocket] auth error: %s", event.ErrorMessage)
		if conn != nil {
			conn.Close()
			if s.teardown(conn) {
				s.notifyStatus(models.StatusDisconnected)
			}
		}
	}

	s.dispatcher.Dispatch(event)
}

// handleDisconnect runs once per connection: from its read pump's exit
// or from a failed handshake write. The teardown staleness check keeps
// a second caller from touching a connection that was already replaced.
func (s *Session) handleDisconnect(conn *websocket.Conn) {
	if !s.teardown(conn) {
		return
	}

	s.mu.Lock()
	clean := s.closedCleanly
	s.mu.Unlock()

	s.notifyStatus(models.StatusDisconnected)
	if !clean {
		s.scheduleReconnect()
	}
}

// teardown clears the connection owned fields. Returns false when the
// given connection is stale (already replaced by a newer one).
func (s *Session) teardown(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return false
	}
	s.conn = nil
	s.send = nil
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.state = models.StatusDisconnected
	return true
}

// scheduleReconnect arms the backoff timer for the next attempt. After
// the attempt cap is reached reconnection stops and a fatal
// connectivity error is surfaced.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.closedCleanly {
		s.mu.Unlock()
		return
	}
	s.attempts++
	attempt := s.attempts
	if attempt > s.maxAttempts {
		s.mu.Unlock()
		log.Printf("[WebSocket] giving up after %d reconnect attempts", s.maxAttempts)
		s.dispatcher.Dispatch(Event{
			Type:         EventConnectionFailed,
			ErrorMessage: "connection lost, reconnect attempts exhausted",
		})
		return
	}
	delay := s.baseDelay * time.Duration(1<<(attempt-1))
	s.reconnectTimer = time.AfterFunc(delay, func() {
		if err := s.Connect(); err != nil {
			log.Printf("[WebSocket] reconnect attempt %d failed: %v", attempt, err)
		}
	})
	s.mu.Unlock()
	log.Printf("[WebSocket] reconnecting in %s (attempt %d/%d)", delay, attempt, s.maxAttempts)
}

func (s *Session) notifyStatus(status models.ConnectionStatus) {
	s.dispatcher.Dispatch(Event{Type: EventConnectionStatus, Status: status})
}
