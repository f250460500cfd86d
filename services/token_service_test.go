package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"HarborChat/models"
	"HarborChat/websocket"
)

type fakeTransport struct {
	mu         sync.Mutex
	state      models.ConnectionStatus
	credential models.SessionCredential
	sendErr    error
	sent       []websocket.Command
	connects   int
	closes     int
	connectErr error
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTransport) Send(command websocket.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, command)
	return nil
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeTransport) State() models.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Credential() models.SessionCredential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credential
}

func (f *fakeTransport) counters() (connects, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.closes
}

func (f *fakeTransport) sentCommands() []websocket.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]websocket.Command(nil), f.sent...)
}

type fakeCredentials struct {
	mu         sync.Mutex
	active     models.SessionCredential
	activeErr  error
	refreshed  models.SessionCredential
	refreshErr error
	refreshes  int
}

func (f *fakeCredentials) Active() (models.SessionCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.activeErr
}

func (f *fakeCredentials) Refresh() (models.SessionCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return models.SessionCredential{}, f.refreshErr
	}
	f.active = f.refreshed
	return f.refreshed, nil
}

func (f *fakeCredentials) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func newTestMonitor(transport *fakeTransport, credentials *fakeCredentials, dispatcher *websocket.Dispatcher) *TokenMonitor {
	return NewTokenMonitor(transport, credentials, dispatcher,
		time.Hour, 2*time.Hour, time.Hour)
}

func TestMonitorSkipsWhenNotAuthenticated(t *testing.T) {
	transport := &fakeTransport{state: models.StatusDisconnected}
	credentials := &fakeCredentials{}
	monitor := newTestMonitor(transport, credentials, websocket.NewDispatcher())

	monitor.check()

	connects, closes := transport.counters()
	assert.Equal(t, 0, connects)
	assert.Equal(t, 0, closes)
	assert.Equal(t, 0, credentials.refreshCount())
}

func TestMonitorSwapsSessionWhenCredentialChanges(t *testing.T) {
	opened := models.SessionCredential{Token: "old", IssuedAt: time.Now().Add(-time.Hour)}
	transport := &fakeTransport{state: models.StatusAuthenticated, credential: opened}
	credentials := &fakeCredentials{active: models.SessionCredential{
		Token:     "new",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}}
	monitor := newTestMonitor(transport, credentials, websocket.NewDispatcher())

	monitor.check()

	connects, closes := transport.counters()
	assert.Equal(t, 1, closes)
	assert.Equal(t, 1, connects)
	// The swap is driven by the credential change, not a refresh.
	assert.Equal(t, 0, credentials.refreshCount())
}

func TestMonitorRefreshesNearExpiry(t *testing.T) {
	issued := time.Now().Add(-23 * time.Hour)
	opened := models.SessionCredential{Token: "old", IssuedAt: issued, ExpiresAt: time.Now().Add(time.Hour)}
	transport := &fakeTransport{state: models.StatusAuthenticated, credential: opened}
	credentials := &fakeCredentials{
		active: opened,
		refreshed: models.SessionCredential{
			Token:     "new",
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(24 * time.Hour),
		},
	}
	monitor := newTestMonitor(transport, credentials, websocket.NewDispatcher())

	monitor.check()

	assert.Equal(t, 1, credentials.refreshCount())
	connects, closes := transport.counters()
	assert.Equal(t, 1, closes)
	assert.Equal(t, 1, connects)
}

func TestMonitorLeavesFreshCredentialAlone(t *testing.T) {
	opened := models.SessionCredential{
		Token:     "tok",
		IssuedAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(23 * time.Hour),
	}
	transport := &fakeTransport{state: models.StatusAuthenticated, credential: opened}
	credentials := &fakeCredentials{active: opened}
	monitor := newTestMonitor(transport, credentials, websocket.NewDispatcher())

	monitor.check()

	assert.Equal(t, 0, credentials.refreshCount())
	connects, closes := transport.counters()
	assert.Equal(t, 0, connects)
	assert.Equal(t, 0, closes)
}

func TestMonitorWarnsWhenRefreshFails(t *testing.T) {
	opened := models.SessionCredential{
		Token:     "tok",
		IssuedAt:  time.Now().Add(-23 * time.Hour),
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
	transport := &fakeTransport{state: models.StatusAuthenticated, credential: opened}
	credentials := &fakeCredentials{active: opened, refreshErr: assert.AnError}

	dispatcher := websocket.NewDispatcher()
	expiring := make(chan websocket.Event, 1)
	dispatcher.On(websocket.EventTokenExpiring, func(event websocket.Event) { expiring <- event })

	monitor := newTestMonitor(transport, credentials, dispatcher)
	monitor.check()

	select {
	case event := <-expiring:
		assert.InDelta(t, 0.5, event.HoursRemaining, 0.1)
	default:
		t.Fatal("expected a token_expiring event")
	}
	_, closes := transport.counters()
	assert.Equal(t, 0, closes)
}

func TestMonitorClosesSessionWhenCredentialMissing(t *testing.T) {
	transport := &fakeTransport{state: models.StatusAuthenticated}
	credentials := &fakeCredentials{activeErr: assert.AnError}

	dispatcher := websocket.NewDispatcher()
	authErrors := make(chan websocket.Event, 1)
	dispatcher.On(websocket.EventAuthError, func(event websocket.Event) { authErrors <- event })

	monitor := newTestMonitor(transport, credentials, dispatcher)
	monitor.check()

	select {
	case event := <-authErrors:
		assert.Equal(t, "session credential no longer available", event.ErrorMessage)
	default:
		t.Fatal("expected an auth_error event")
	}
	connects, closes := transport.counters()
	assert.Equal(t, 1, closes)
	assert.Equal(t, 0, connects)
}

func TestMonitorStartStopRestart(t *testing.T) {
	transport := &fakeTransport{state: models.StatusDisconnected}
	monitor := NewTokenMonitor(transport, &fakeCredentials{}, websocket.NewDispatcher(),
		10*time.Millisecond, 2*time.Hour, time.Hour)

	monitor.Start()
	monitor.Start()
	monitor.Stop()
	monitor.Start()
	monitor.Stop()
	monitor.Stop()
}
