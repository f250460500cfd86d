package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"HarborChat/models"
)

func newTestStore() *Store {
	return New(50*time.Millisecond, 100*time.Millisecond, 10*time.Millisecond)
}

func seedChannels(s *Store) {
	s.SetCurrentUser(models.User{ID: "me", Name: "Me"})
	s.ReplaceChannels([]models.Channel{
		{ID: "c1", Name: "general", LastActivityAt: time.Now().Add(-time.Hour)},
		{ID: "c2", Name: "random", LastActivityAt: time.Now().Add(-2 * time.Hour)},
	})
}

func TestAppendMessageCountsUnreadAndMentions(t *testing.T) {
	s := newTestStore()
	seedChannels(s)
	s.SetMessages("c1", nil)
	s.Activate("c1")

	s.AppendMessage(models.Message{ID: "m1", ChannelID: "c2", SenderID: "u2", Content: "hi", CreatedAt: time.Now()})
	s.AppendMessage(models.Message{ID: "m2", ChannelID: "c2", SenderID: "u2", Content: "ping <@me>", Mentions: []string{"me"}, CreatedAt: time.Now()})
	s.AppendMessage(models.Message{ID: "m3", ChannelID: "c2", SenderID: "u2", Content: "ping <@u3>", Mentions: []string{"u3"}, CreatedAt: time.Now()})

	snapshot := s.Snapshot()
	assert.Equal(t, 3, snapshot.Unread["c2"])
	assert.Equal(t, 1, snapshot.Mentions["c2"])
}

func TestAppendMessageActiveChannelStaysRead(t *testing.T) {
	s := newTestStore()
	seedChannels(s)
	s.SetMessages("c1", nil)
	s.Activate("c1")

	s.AppendMessage(models.Message{ID: "m1", ChannelID: "c1", SenderID: "u2", Content: "ping <@me>", Mentions: []string{"me"}, CreatedAt: time.Now()})

	snapshot := s.Snapshot()
	assert.Equal(t, 0, snapshot.Unread["c1"])
	assert.Equal(t, 0, snapshot.Mentions["c1"])
	assert.Len(t, snapshot.Messages["c1"], 1)
}

func TestActivateResetsCountersIdempotently(t *testing.T) {
	s := newTestStore()
	seedChannels(s)

	s.AppendMessage(models.Message{ID: "m1", ChannelID: "c2", SenderID: "u2", Content: "ping <@me>", Mentions: []string{"me"}, CreatedAt: time.Now()})
	assert.Equal(t, 1, s.Snapshot().Unread["c2"])

	s.Activate("c2")
	s.Activate("c2")

	snapshot := s.Snapshot()
	assert.Equal(t, "c2", snapshot.ActiveChannelID)
	assert.Equal(t, 0, snapshot.Unread["c2"])
	assert.Equal(t, 0, snapshot.Mentions["c2"])
}

func TestActivateReportsLoaded(t *testing.T) {
	s := newTestStore()
	seedChannels(s)

	assert.False(t, s.Activate("c1"))
	s.SetMessages("c1", []models.Message{{ID: "m1", ChannelID: "c1"}})
	assert.True(t, s.Activate("c1"))
}

func TestAppendMessageBumpsChannelOrdering(t *testing.T) {
	s := newTestStore()
	seedChannels(s)

	// c2 is older than c1 until a message arrives in it.
	assert.Equal(t, "c1", s.Snapshot().Channels[0].ID)

	s.AppendMessage(models.Message{ID: "m1", ChannelID: "c2", SenderID: "u2", Content: "hi", CreatedAt: time.Now()})
	assert.Equal(t, "c2", s.Snapshot().Channels[0].ID)
}

func TestProvisionalRollback(t *testing.T) {
	s := newTestStore()
	seedChannels(s)

	s.AddProvisional(models.Message{ID: "local-1", ChannelID: "c1", SenderID: "me", Content: "hello"})
	assert.Len(t, s.Snapshot().Messages["c1"], 1)

	assert.True(t, s.RemoveMessage("c1", "local-1"))
	assert.Empty(t, s.Snapshot().Messages["c1"])
	assert.False(t, s.RemoveMessage("c1", "local-1"))
}

func TestConfirmMessageSwapsProvisional(t *testing.T) {
	s := newTestStore()
	seedChannels(s)

	s.AddProvisional(models.Message{ID: "local-1", ChannelID: "c1", SenderID: "me", Content: "hello"})
	s.ConfirmMessage("c1", "local-1", models.Message{ID: "m-server", ChannelID: "c1", SenderID: "me", Content: "hello"})

	messages := s.Snapshot().Messages["c1"]
	assert.Len(t, messages, 1)
	assert.Equal(t, "m-server", messages[0].ID)
	assert.False(t, messages[0].Provisional)
}

func TestConfirmMessageAfterBroadcastReconciliation(t *testing.T) {
	s := newTestStore()
	seedChannels(s)

	s.AddProvisional(models.Message{ID: "local-1", ChannelID: "c1", SenderID: "me", Content: "hello"})
	// The server broadcast lands first and replaces the provisional.
	s.AppendMessage(models.Message{ID: "m-server", ChannelID: "c1", SenderID: "me", Content: "hello", CreatedAt: time.Now()})
	// The late confirmation must not duplicate the message.
	s.ConfirmMessage("c1", "local-1", models.Message{ID: "m-server", ChannelID: "c1", SenderID: "me", Content: "hello"})

	messages := s.Snapshot().Messages["c1"]
	assert.Len(t, messages, 1)
	assert.Equal(t, "m-server", messages[0].ID)
	assert.False(t, messages[0].Provisional)
}

func TestOwnBroadcastReplacesProvisionalWithoutCounting(t *testing.T) {
	s := newTestStore()
	seedChannels(s)
	s.Activate("c1")

	s.AddProvisional(models.Message{ID: "local-1", ChannelID: "c1", SenderID: "me", Content: "hello"})
	s.AppendMessage(models.Message{ID: "m-server", ChannelID: "c1", SenderID: "me", Content: "hello", CreatedAt: time.Now()})

	snapshot := s.Snapshot()
	assert.Len(t, snapshot.Messages["c1"], 1)
	assert.Equal(t, 0, snapshot.Unread["c1"])
}

func TestOwnMessageInInactiveChannelNotCounted(t *testing.T) {
	s := newTestStore()
	seedChannels(s)
	s.SetMessages("c1", nil)
	s.Activate("c1")

	// A message authored by the current user from another device lands
	// in a background channel: it is appended but never counts as
	// unread for its own author.
	s.AppendMessage(models.Message{ID: "m1", ChannelID: "c2", SenderID: "me", Content: "from my phone", Mentions: []string{"me"}, CreatedAt: time.Now()})

	snapshot := s.Snapshot()
	assert.Len(t, snapshot.Messages["c2"], 1)
	assert.Equal(t, 0, snapshot.Unread["c2"])
	assert.Equal(t, 0, snapshot.Mentions["c2"])
}

func TestPrependMessagesSkipsKnownIDs(t *testing.T) {
	s := newTestStore()
	s.SetMessages("c1", []models.Message{
		{ID: "m3", ChannelID: "c1"},
		{ID: "m4", ChannelID: "c1"},
	})

	s.PrependMessages("c1", []models.Message{
		{ID: "m1", ChannelID: "c1"},
		{ID: "m2", ChannelID: "c1"},
		{ID: "m3", ChannelID: "c1"},
	})

	messages := s.Snapshot().Messages["c1"]
	ids := make([]string, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids)
}

func TestUnloadedChannels(t *testing.T) {
	s := newTestStore()
	seedChannels(s)

	assert.ElementsMatch(t, []string{"c1", "c2"}, s.UnloadedChannels())
	s.SetMessages("c1", nil)
	assert.Equal(t, []string{"c2"}, s.UnloadedChannels())
	assert.True(t, s.IsLoaded("c1"))
	assert.False(t, s.IsLoaded("c2"))
}

func TestUpsertChannel(t *testing.T) {
	s := newTestStore()
	seedChannels(s)

	s.UpsertChannel(models.Channel{ID: "c1", Name: "renamed", LastActivityAt: time.Now()})
	s.UpsertChannel(models.Channel{ID: "c3", Name: "new", LastActivityAt: time.Now().Add(-3 * time.Hour)})

	snapshot := s.Snapshot()
	assert.Len(t, snapshot.Channels, 3)
	assert.Equal(t, "renamed", snapshot.Channels[0].Name)
	assert.Equal(t, "c3", snapshot.Channels[2].ID)
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	s := newTestStore()

	first, cancelFirst := s.Subscribe()
	second, cancelSecond := s.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	// Both observers start with the current state.
	assert.Equal(t, models.StatusDisconnected, (<-first).Status)
	assert.Equal(t, models.StatusDisconnected, (<-second).Status)

	s.SetStatus(models.StatusConnecting)
	assert.Equal(t, models.StatusConnecting, (<-first).Status)
	assert.Equal(t, models.StatusConnecting, (<-second).Status)
}

func TestSubscribeLatestWins(t *testing.T) {
	s := newTestStore()
	snapshots, cancel := s.Subscribe()
	defer cancel()

	// A slow observer skips intermediate states instead of blocking
	// mutations.
	s.SetStatus(models.StatusConnecting)
	s.SetStatus(models.StatusAwaitingAuth)
	s.SetStatus(models.StatusAuthenticated)

	var last Snapshot
	for done := false; !done; {
		select {
		case last = <-snapshots:
		default:
			done = true
		}
	}
	assert.Equal(t, models.StatusAuthenticated, last.Status)
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	s := newTestStore()
	snapshots, cancel := s.Subscribe()
	<-snapshots
	cancel()
	cancel()

	_, open := <-snapshots
	assert.False(t, open)

	// Mutations after cancel must not panic on the closed channel.
	s.SetStatus(models.StatusConnecting)
}
