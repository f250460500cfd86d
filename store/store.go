package store

import (
	"sort"
	"sync"
	"time"

	"HarborChat/models"
)

// Snapshot is the complete client state delivered to subscribers after
// every transition. All slices and maps are copies: observers never
// see a half-updated state and cannot mutate the store through one.
type Snapshot struct {
	Status          models.ConnectionStatus
	CurrentUser     models.User
	Channels        []models.Channel
	Messages        map[string][]models.Message
	ActiveChannelID string
	Unread          map[string]int
	Mentions        map[string]int
	Typing          []models.TypingPresence
}

// Store is the single process-wide client state aggregate. Every
// mutation happens under one mutex and is published atomically to all
// subscribers, in the style of the websocket hub: registered observer
// channels with a non-blocking, latest-wins send.
type Store struct {
	mu              sync.Mutex
	status          models.ConnectionStatus
	currentUser     models.User
	channels        []models.Channel
	messages        map[string][]models.Message
	loaded          map[string]bool
	activeChannelID string
	unread          map[string]int
	mentions        map[string]int
	typing          map[string]models.TypingPresence
	typingTimers    map[string]*time.Timer

	typingTTL     time.Duration
	typingMaxAge  time.Duration
	sweepInterval time.Duration
	sweepStop     chan struct{}

	nextSubscriberID int
	subscribers      map[int]chan Snapshot
}

func New(typingTTL, typingMaxAge, sweepInterval time.Duration) *Store {
	return &Store{
		status:        models.StatusDisconnected,
		messages:      make(map[string][]models.Message),
		loaded:        make(map[string]bool),
		unread:        make(map[string]int),
		mentions:      make(map[string]int),
		typing:        make(map[string]models.TypingPresence),
		typingTimers:  make(map[string]*time.Timer),
		typingTTL:     typingTTL,
		typingMaxAge:  typingMaxAge,
		sweepInterval: sweepInterval,
		subscribers:   make(map[int]chan Snapshot),
	}
}

// Subscribe registers an observer. The returned channel carries a full
// snapshot after every mutation, starting with the current state. The
// cancel function unregisters the observer and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubscriberID++
	id := s.nextSubscriberID
	ch := make(chan Snapshot, 1)
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// publishLocked fans the current state out to every subscriber. A
// subscriber that has not consumed the previous snapshot gets it
// replaced by the newer one (latest wins), so a slow observer can
// never block a mutation.
func (s *Store) publishLocked() {
	snapshot := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		Status:          s.status,
		CurrentUser:     s.currentUser,
		ActiveChannelID: s.activeChannelID,
		Channels:        append([]models.Channel(nil), s.channels...),
		Messages:        make(map[string][]models.Message, len(s.messages)),
		Unread:          make(map[string]int, len(s.unread)),
		Mentions:        make(map[string]int, len(s.mentions)),
		Typing:          make([]models.TypingPresence, 0, len(s.typing)),
	}
	for channelID, messages := range s.messages {
		snapshot.Messages[channelID] = append([]models.Message(nil), messages...)
	}
	for channelID, count := range s.unread {
		snapshot.Unread[channelID] = count
	}
	for channelID, count := range s.mentions {
		snapshot.Mentions[channelID] = count
	}
	for _, presence := range s.typing {
		snapshot.Typing = append(snapshot.Typing, presence)
	}
	return snapshot
}

// Snapshot returns the current state without subscribing.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) SetCurrentUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = user
	s.publishLocked()
}

func (s *Store) CurrentUser() models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUser
}

func (s *Store) SetStatus(status models.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.publishLocked()
}

// ReplaceChannels swaps in the authoritative channel list from the
// server, keeping the ordering by last activity.
func (s *Store) ReplaceChannels(channels []models.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append([]models.Channel(nil), channels...)
	s.sortChannelsLocked()
	s.publishLocked()
}

// UpsertChannel merges a single channel by id, appending when unknown.
func (s *Store) UpsertChannel(channel models.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i := range s.channels {
		if s.channels[i].ID == channel.ID {
			s.channels[i] = channel
			replaced = true
			break
		}
	}
	if !replaced {
		s.channels = append(s.channels, channel)
	}
	s.sortChannelsLocked()
	s.publishLocked()
}

func (s *Store) sortChannelsLocked() {
	sort.SliceStable(s.channels, func(i, j int) bool {
		return s.channels[i].LastActivityAt.After(s.channels[j].LastActivityAt)
	})
}

// SetMessages replaces a channel's message page and marks the channel
// loaded. Messages are kept in ascending arrival order.
func (s *Store) SetMessages(channelID string, messages []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channelID] = append([]models.Message(nil), messages...)
	s.loaded[channelID] = true
	s.publishLocked()
}

// PrependMessages inserts an older history page ahead of a channel's
// existing messages, skipping ids that are already present.
func (s *Store) PrependMessages(channelID string, messages []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.messages[channelID]
	known := make(map[string]bool, len(existing))
	for _, message := range existing {
		known[message.ID] = true
	}
	merged := make([]models.Message, 0, len(messages)+len(existing))
	for _, message := range messages {
		if !known[message.ID] {
			merged = append(merged, message)
		}
	}
	merged = append(merged, existing...)
	s.messages[channelID] = merged
	s.publishLocked()
}

func (s *Store) IsLoaded(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded[channelID]
}

// UnloadedChannels returns the ids of channels that have no message
// page yet. Used for the eager first-page fetch after channels_updated.
func (s *Store) UnloadedChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, channel := range s.channels {
		if !s.loaded[channel.ID] {
			ids = append(ids, channel.ID)
		}
	}
	return ids
}

// AppendMessage applies an inbound new_message: append in arrival
// order, bump the channel's last activity, and account unread/mention
// counters. The active channel's counters stay pinned at zero. A
// message authored by the current user replaces a content-matching
// provisional entry instead of appending a duplicate.
func (s *Store) AppendMessage(message models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if message.SenderID == s.currentUser.ID {
		if s.confirmByContentLocked(message) {
			s.touchChannelLocked(message.ChannelID, message.CreatedAt)
			s.publishLocked()
			return
		}
	}

	s.messages[message.ChannelID] = append(s.messages[message.ChannelID], message)
	s.touchChannelLocked(message.ChannelID, message.CreatedAt)

	if message.ChannelID == s.activeChannelID {
		s.unread[message.ChannelID] = 0
		s.mentions[message.ChannelID] = 0
	} else if message.SenderID != s.currentUser.ID {
		s.unread[message.ChannelID]++
		for _, mention := range message.Mentions {
			if mention == s.currentUser.ID {
				s.mentions[message.ChannelID]++
				break
			}
		}
	}
	s.publishLocked()
}

// confirmByContentLocked swaps the oldest provisional message with the
// same channel and content for the confirmed server copy.
func (s *Store) confirmByContentLocked(confirmed models.Message) bool {
	messages := s.messages[confirmed.ChannelID]
	for i := range messages {
		if messages[i].Provisional && messages[i].Content == confirmed.Content {
			messages[i] = confirmed
			return true
		}
	}
	return false
}

func (s *Store) touchChannelLocked(channelID string, at time.Time) {
	for i := range s.channels {
		if s.channels[i].ID == channelID {
			if at.After(s.channels[i].LastActivityAt) {
				s.channels[i].LastActivityAt = at
			}
			break
		}
	}
	s.sortChannelsLocked()
}

// AddProvisional appends an optimistic message pending confirmation.
func (s *Store) AddProvisional(message models.Message) {
	message.Provisional = true
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[message.ChannelID] = append(s.messages[message.ChannelID], message)
	s.publishLocked()
}

// RemoveMessage rolls a message out of a channel by id. Reports
// whether anything was removed.
func (s *Store) RemoveMessage(channelID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.messages[channelID]
	for i := range messages {
		if messages[i].ID == messageID {
			s.messages[channelID] = append(messages[:i:i], messages[i+1:]...)
			s.publishLocked()
			return true
		}
	}
	return false
}

// ConfirmMessage replaces a provisional message with the server copy,
// reconciling the locally generated id with the server-assigned one.
func (s *Store) ConfirmMessage(channelID, provisionalID string, confirmed models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.messages[channelID]
	for i := range messages {
		if messages[i].ID == provisionalID {
			messages[i] = confirmed
			s.publishLocked()
			return
		}
	}
	// Provisional already gone (reconciled via broadcast): append only
	// if the confirmed id is not present either.
	for i := range messages {
		if messages[i].ID == confirmed.ID {
			return
		}
	}
	s.messages[channelID] = append(messages, confirmed)
	s.publishLocked()
}

// Activate sets the active channel and resets its unread and mention
// counters. Idempotent: activating twice has the effect of once.
// Returns whether the channel's messages are already loaded.
func (s *Store) Activate(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeChannelID = channelID
	s.unread[channelID] = 0
	s.mentions[channelID] = 0
	s.publishLocked()
	return s.loaded[channelID]
}

func (s *Store) ActiveChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChannelID
}
