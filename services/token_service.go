package services

import (
	"log"
	"sync"
	"time"

	"HarborChat/models"
	"HarborChat/websocket"
)

// CredentialSource is the external auth collaborator. The sync layer
// never implements authentication policy itself: it only reads the
// active credential and asks for refreshes.
type CredentialSource interface {
	// Active returns the credential currently backing the user's
	// session, or an error when none is available.
	Active() (models.SessionCredential, error)

	// Refresh obtains a new credential from the auth collaborator.
	Refresh() (models.SessionCredential, error)
}

// Transport is the duplex session as the services see it. Implemented
// by websocket.Session; mocked in tests.
type Transport interface {
	Connect() error
	Send(command websocket.Command) error
	Close()
	State() models.ConnectionStatus
	Credential() models.SessionCredential
}

// TokenMonitor periodically validates the credential backing the
// session, proactively refreshes it before expiry, and swaps the
// session when the credential changes out-of-band.
type TokenMonitor struct {
	session      Transport
	credentials  CredentialSource
	dispatcher   *websocket.Dispatcher
	interval     time.Duration
	refreshBelow time.Duration
	warnBelow    time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewTokenMonitor(session Transport, credentials CredentialSource, dispatcher *websocket.Dispatcher, interval, refreshBelow, warnBelow time.Duration) *TokenMonitor {
	return &TokenMonitor{
		session:      session,
		credentials:  credentials,
		dispatcher:   dispatcher,
		interval:     interval,
		refreshBelow: refreshBelow,
		warnBelow:    warnBelow,
	}
}

// Start launches the monitor loop. Calling Start on a running monitor
// is a no-op, so a reconnect cannot leak duplicate timers.
func (m *TokenMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	stop := make(chan struct{})
	m.stop = stop

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the monitor loop. The monitor can be started again later.
func (m *TokenMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop == nil {
		return
	}
	close(m.stop)
	m.stop = nil
}

func (m *TokenMonitor) check() {
	if m.session.State() != models.StatusAuthenticated {
		return
	}

	active, err := m.credentials.Active()
	if err != nil {
		// No credential at all: the session is effectively expired.
		log.Printf("[TokenMonitor] no active credential: %v", err)
		m.dispatcher.Dispatch(websocket.Event{
			Type:         websocket.EventAuthError,
			ErrorMessage: "session credential no longer available",
		})
		m.session.Close()
		return
	}

	opened := m.session.Credential()
	if !active.IssuedAt.Equal(opened.IssuedAt) {
		// A newer credential appeared out-of-band. Swap the session
		// over to it; this is a graceful handover, not an error.
		log.Printf("[TokenMonitor] credential changed, reopening session")
		m.swapSession()
		return
	}

	remaining := active.TimeToExpiry(time.Now())
	if remaining >= m.refreshBelow {
		return
	}

	refreshed, err := m.credentials.Refresh()
	if err != nil {
		hours := remaining.Hours()
		if remaining < m.warnBelow {
			log.Printf("[TokenMonitor] session expires in %.1f hours and refresh failed: %v", hours, err)
		}
		m.dispatcher.Dispatch(websocket.Event{
			Type:           websocket.EventTokenExpiring,
			HoursRemaining: hours,
		})
		return
	}
	if !refreshed.IssuedAt.Equal(opened.IssuedAt) {
		log.Printf("[TokenMonitor] credential refreshed, reopening session")
		m.swapSession()
	}
}

func (m *TokenMonitor) swapSession() {
	m.session.Close()
	if err := m.session.Connect(); err != nil {
		log.Printf("[TokenMonitor] reopening session failed: %v", err)
	}
}
