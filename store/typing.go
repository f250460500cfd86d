package store

import (
	"time"

	"HarborChat/models"
)

// Typing presence: an entry lives typingTTL past its last refresh. A
// background sweep additionally removes anything older than
// typingMaxAge as a safety net in case a per-entry timer is lost.

func typingKey(channelID, userID string) string {
	return channelID + "\x00" + userID
}

// SetTyping inserts or removes a typing presence entry for a (channel,
// user) pair. A start event replaces any existing entry with a fresh
// one and re-arms its expiry timer.
func (s *Store) SetTyping(channelID, userID string, typing bool) {
	key := typingKey(channelID, userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.typingTimers[key]; ok {
		timer.Stop()
		delete(s.typingTimers, key)
	}

	if !typing {
		if _, ok := s.typing[key]; !ok {
			return
		}
		delete(s.typing, key)
		s.publishLocked()
		return
	}

	started := time.Now()
	s.typing[key] = models.TypingPresence{
		ChannelID: channelID,
		UserID:    userID,
		StartedAt: started,
	}
	s.typingTimers[key] = time.AfterFunc(s.typingTTL, func() {
		s.expireTyping(key, started)
	})
	s.publishLocked()
}

// expireTyping removes an entry when its TTL elapses. The started
// timestamp identifies the entry the timer was armed for: a timer that
// fired while a refresh was replacing the entry must not remove the
// fresh one.
func (s *Store) expireTyping(key string, started time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	presence, ok := s.typing[key]
	if !ok || !presence.StartedAt.Equal(started) {
		return
	}
	delete(s.typing, key)
	delete(s.typingTimers, key)
	s.publishLocked()
}

// Typers lists who is typing in a channel, excluding the current user.
func (s *Store) Typers(channelID string) []models.TypingPresence {
	s.mu.Lock()
	defer s.mu.Unlock()
	var typers []models.TypingPresence
	for _, presence := range s.typing {
		if presence.ChannelID != channelID || presence.UserID == s.currentUser.ID {
			continue
		}
		typers = append(typers, presence)
	}
	return typers
}

// Run starts the background sweep that removes stale typing entries.
// Safe to call once per store; Close stops it.
func (s *Store) Run() {
	s.mu.Lock()
	if s.sweepStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.sweepStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweepTyping()
			case <-stop:
				return
			}
		}
	}()
}

func (s *Store) sweepTyping() {
	cutoff := time.Now().Add(-s.typingMaxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for key, presence := range s.typing {
		if presence.StartedAt.Before(cutoff) {
			delete(s.typing, key)
			if timer, ok := s.typingTimers[key]; ok {
				timer.Stop()
				delete(s.typingTimers, key)
			}
			changed = true
		}
	}
	if changed {
		s.publishLocked()
	}
}

// Close stops the sweeper and all pending typing timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweepStop != nil {
		close(s.sweepStop)
		s.sweepStop = nil
	}
	for key, timer := range s.typingTimers {
		timer.Stop()
		delete(s.typingTimers, key)
	}
}
