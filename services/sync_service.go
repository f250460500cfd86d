package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"HarborChat/config"
	"HarborChat/models"
	"HarborChat/repositories"
	"HarborChat/repositories/impl"
	"HarborChat/store"
	"HarborChat/websocket"
)

// ErrSendFailed is returned when a message could not be delivered over
// the duplex session nor the request fallback layer. The optimistic
// copy has been rolled back by the time this is returned.
var ErrSendFailed = errors.New("failed to send message")

// SyncService is the facade over the whole sync layer: it wires the
// protocol dispatcher to store mutations, runs the token monitor, and
// exposes the user-facing operations (send, activate, join, typing).
type SyncService struct {
	cfg         config.Config
	store       *store.Store
	session     Transport
	dispatcher  *websocket.Dispatcher
	channelRepo repositories.ChannelRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	credentials CredentialSource
	monitor     *TokenMonitor

	mu          sync.Mutex
	authRetried bool
	offs        []func()
}

func NewSyncService(
	cfg config.Config,
	st *store.Store,
	session Transport,
	dispatcher *websocket.Dispatcher,
	channelRepo repositories.ChannelRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	credentials CredentialSource,
) *SyncService {
	s := &SyncService{
		cfg:         cfg,
		store:       st,
		session:     session,
		dispatcher:  dispatcher,
		channelRepo: channelRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		credentials: credentials,
	}
	s.monitor = NewTokenMonitor(session, credentials, dispatcher,
		cfg.TokenCheckInterval, cfg.TokenRefreshBelow, cfg.TokenWarnBelow)
	s.registerHandlers()
	return s
}

// Shared instance: however many logical sync layers the process
// creates, they coalesce onto one session and one store.
var (
	sharedMu sync.Mutex
	shared   *SyncService
)

// Shared returns the process-wide sync service, creating it on first
// use. Later calls ignore their arguments and return the same
// instance.
func Shared(cfg config.Config, credentials CredentialSource) *SyncService {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		return shared
	}

	dispatcher := websocket.NewDispatcher()
	st := store.New(cfg.TypingTTL, cfg.TypingMaxAge, cfg.TypingSweepInterval)
	session := websocket.NewSession(cfg.SocketURL, credentials, dispatcher,
		cfg.ReconnectBase, cfg.ReconnectMaxAttempts)
	api := impl.NewAPIClient(cfg.ServerURL, cfg.RequestTimeout, func() string {
		credential, err := credentials.Active()
		if err != nil {
			return ""
		}
		return credential.Token
	})

	shared = NewSyncService(cfg, st, session, dispatcher,
		impl.NewChannelRepository(api),
		impl.NewMessageRepository(api),
		impl.NewUserRepository(api),
		credentials)
	return shared
}

// Store exposes the shared client state store for UI consumers.
func (s *SyncService) Store() *store.Store {
	return s.store
}

// Dispatcher exposes the event registry for consumers that need raw
// protocol events (toasts, sounds) rather than state snapshots.
func (s *SyncService) Dispatcher() *websocket.Dispatcher {
	return s.dispatcher
}

// Start connects the session and launches the background workers.
func (s *SyncService) Start() error {
	s.store.Run()
	s.monitor.Start()
	if err := s.session.Connect(); err != nil {
		return fmt.Errorf("connect session: %w", err)
	}
	return nil
}

// Stop shuts everything down: monitor, session, store sweeper, and
// handler registrations.
func (s *SyncService) Stop() {
	s.monitor.Stop()
	s.session.Close()
	s.store.Close()

	s.mu.Lock()
	offs := s.offs
	s.offs = nil
	s.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

func (s *SyncService) on(eventType websocket.EventType, handler websocket.Handler) {
	off := s.dispatcher.On(eventType, handler)
	s.mu.Lock()
	s.offs = append(s.offs, off)
	s.mu.Unlock()
}

func (s *SyncService) registerHandlers() {
	s.on(websocket.EventConnectionStatus, func(event websocket.Event) {
		s.store.SetStatus(event.Status)
	})

	s.on(websocket.EventAuthenticated, func(event websocket.Event) {
		if event.User != nil {
			s.store.SetCurrentUser(*event.User)
		}
		s.mu.Lock()
		s.authRetried = false
		s.mu.Unlock()
	})

	s.on(websocket.EventAuthError, func(event websocket.Event) {
		s.handleAuthError(event)
	})

	s.on(websocket.EventChannelsUpdated, func(event websocket.Event) {
		s.store.ReplaceChannels(event.Channels)
		go s.loadUnloadedChannels()
	})

	s.on(websocket.EventChannelUpdated, func(event websocket.Event) {
		if event.Channel != nil {
			s.store.UpsertChannel(*event.Channel)
		}
	})

	s.on(websocket.EventJoinedChannel, func(event websocket.Event) {
		if event.Channel != nil {
			s.store.UpsertChannel(*event.Channel)
		}
	})

	s.on(websocket.EventLeftChannel, func(event websocket.Event) {
		if event.Channel != nil {
			s.store.UpsertChannel(*event.Channel)
		}
	})

	s.on(websocket.EventNewMessage, func(event websocket.Event) {
		if event.Message != nil {
			s.store.AppendMessage(*event.Message)
		}
	})

	s.on(websocket.EventUserTyping, func(event websocket.Event) {
		s.store.SetTyping(event.ChannelID, event.UserID, event.Typing)
	})

	s.on(websocket.EventTokenExpiring, func(event websocket.Event) {
		log.Printf("[Sync] session expiring in %.1f hours", event.HoursRemaining)
	})

	s.on(websocket.EventError, func(event websocket.Event) {
		log.Printf("[Sync] server error: %s", event.ErrorMessage)
	})

	s.on(websocket.EventConnectionFailed, func(event websocket.Event) {
		log.Printf("[Sync] %s", event.ErrorMessage)
	})
}

// handleAuthError retries once with a refreshed credential; a second
// rejection is surfaced to the user instead of looping.
func (s *SyncService) handleAuthError(event websocket.Event) {
	s.mu.Lock()
	retried := s.authRetried
	s.authRetried = true
	s.mu.Unlock()
	if retried {
		log.Printf("[Sync] authentication failed: %s", event.ErrorMessage)
		return
	}

	go func() {
		if _, err := s.credentials.Refresh(); err != nil {
			log.Printf("[Sync] credential refresh failed: %v", err)
			return
		}
		if err := s.session.Connect(); err != nil {
			log.Printf("[Sync] reconnect with refreshed credential failed: %v", err)
		}
	}()
}

// loadUnloadedChannels eagerly fetches the first message page for
// every channel that has none yet.
func (s *SyncService) loadUnloadedChannels() {
	for _, channelID := range s.store.UnloadedChannels() {
		messages, err := s.messageRepo.History(channelID, s.cfg.MessagePageSize, "")
		if err != nil {
			log.Printf("[Sync] loading messages for channel %s: %v", channelID, err)
			continue
		}
		s.store.SetMessages(channelID, messages)
	}
}

// SendMessage delivers a message to the active channel with optimistic
// apply: the provisional copy appears immediately, delivery goes over
// the duplex session, falls back to the request layer, and rolls back
// when both paths fail.
func (s *SyncService) SendMessage(content, replyToID string) error {
	channelID := s.store.ActiveChannelID()
	if channelID == "" {
		return errors.New("no active channel")
	}

	mentions := models.ParseMentions(content)
	provisional := models.Message{
		ID:          "local-" + uuid.NewString(),
		ChannelID:   channelID,
		SenderID:    s.store.CurrentUser().ID,
		Content:     content,
		Type:        models.MessageTypeText,
		ReplyToID:   replyToID,
		CreatedAt:   time.Now(),
		Mentions:    mentions,
		Provisional: true,
	}
	s.store.AddProvisional(provisional)

	command := websocket.SendMessageCommand(channelID, content, replyToID, mentions)
	if err := s.session.Send(command); err == nil {
		// Delivered over the primary path; the server's new_message
		// broadcast reconciles the provisional copy.
		return nil
	}

	confirmed, err := s.messageRepo.Post(channelID, repositories.PostMessageRequest{
		Content:     content,
		MessageType: models.MessageTypeText,
		ReplyToID:   replyToID,
		Mentions:    mentions,
	})
	if err != nil {
		s.store.RemoveMessage(channelID, provisional.ID)
		log.Printf("[Sync] send failed on both paths: %v", err)
		return ErrSendFailed
	}
	s.store.ConfirmMessage(channelID, provisional.ID, confirmed)
	return nil
}

// ActivateChannel makes a channel current: counters reset, the latest
// message page is loaded if needed, and the server is told the channel
// was read.
func (s *SyncService) ActivateChannel(channelID string) error {
	loaded := s.store.Activate(channelID)
	if !loaded {
		messages, err := s.messageRepo.History(channelID, s.cfg.MessagePageSize, "")
		if err != nil {
			return fmt.Errorf("load channel %s: %w", channelID, err)
		}
		s.store.SetMessages(channelID, messages)
	}

	go func() {
		if err := s.channelRepo.MarkRead(channelID); err != nil {
			log.Printf("[Sync] mark read for channel %s: %v", channelID, err)
		}
	}()
	return nil
}

// LoadOlderMessages pages further back in a channel's history, keyed
// by the oldest message currently loaded.
func (s *SyncService) LoadOlderMessages(channelID string) error {
	snapshot := s.store.Snapshot()
	messages := snapshot.Messages[channelID]
	before := ""
	if len(messages) > 0 {
		before = messages[0].ID
	}
	page, err := s.messageRepo.History(channelID, s.cfg.MessagePageSize, before)
	if err != nil {
		return fmt.Errorf("load older messages for %s: %w", channelID, err)
	}
	s.store.PrependMessages(channelID, page)
	return nil
}

// RefreshChannels pulls the channel list over the request layer. The
// server pushes channels_updated on changes; this is the explicit pull
// for consumers that want the list before the push arrives.
func (s *SyncService) RefreshChannels() error {
	channels, err := s.channelRepo.List()
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	s.store.ReplaceChannels(channels)
	go s.loadUnloadedChannels()
	return nil
}

// JoinChannel prefers the duplex path and falls back to the request
// layer when the session cannot deliver.
func (s *SyncService) JoinChannel(channelID string) error {
	if err := s.session.Send(websocket.JoinChannelCommand(channelID)); err == nil {
		return nil
	}
	return s.channelRepo.Join(channelID)
}

// LeaveChannel has no request-layer equivalent; failure is surfaced.
func (s *SyncService) LeaveChannel(channelID string) error {
	return s.session.Send(websocket.LeaveChannelCommand(channelID))
}

// CreateChannel goes through the request layer and reflects the new
// channel into the store immediately.
func (s *SyncService) CreateChannel(request repositories.CreateChannelRequest) (models.Channel, error) {
	channel, err := s.channelRepo.Create(request)
	if err != nil {
		return models.Channel{}, err
	}
	s.store.UpsertChannel(channel)
	return channel, nil
}

// UpdateChannel patches channel metadata through the request layer.
func (s *SyncService) UpdateChannel(channelID string, request repositories.UpdateChannelRequest) (models.Channel, error) {
	channel, err := s.channelRepo.Update(channelID, request)
	if err != nil {
		return models.Channel{}, err
	}
	s.store.UpsertChannel(channel)
	return channel, nil
}

// Members lists the users of a channel for mention lookup.
func (s *SyncService) Members(channelID string) ([]models.User, error) {
	return s.userRepo.List(channelID)
}

// StartTyping / StopTyping are best-effort: typing indicators are not
// worth a fallback request.
func (s *SyncService) StartTyping(channelID string) {
	if err := s.session.Send(websocket.TypingStartCommand(channelID)); err != nil && !errors.Is(err, websocket.ErrNotConnected) {
		log.Printf("[Sync] typing_start: %v", err)
	}
}

func (s *SyncService) StopTyping(channelID string) {
	if err := s.session.Send(websocket.TypingStopCommand(channelID)); err != nil && !errors.Is(err, websocket.ErrNotConnected) {
		log.Printf("[Sync] typing_stop: %v", err)
	}
}
