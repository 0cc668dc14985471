package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/protocol"
)

var me = models.User{ID: "1", Username: "alice", FullName: "Alice Doe"}

func start() Snapshot {
	return Snapshot{Self: me, Status: StatusConnected}
}

func apply(t *testing.T, s Snapshot, frames ...string) (Snapshot, []notify.Notification) {
	t.Helper()
	var all []notify.Notification
	for _, f := range frames {
		ev, err := protocol.Decode([]byte(f))
		require.NoError(t, err)
		var notes []notify.Notification
		s, notes = Reduce(s, ev)
		all = append(all, notes...)
	}
	return s, all
}

func TestNewMessageFromPeerCountsUnread(t *testing.T) {
	s, notes := apply(t, start(),
		`{"type":"new_message","message":{"id":"m1","sender_id":"u2","content":"hi"}}`)

	require.Len(t, s.Messages, 1)
	assert.Equal(t, models.ID("m1"), s.Messages[0].ID)
	assert.Equal(t, 1, s.Unread)
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindNewMessage, notes[0].Kind)
}

func TestNewMessageFromSelfIsSilent(t *testing.T) {
	s, notes := apply(t, start(),
		`{"type":"new_message","message":{"id":5,"sender_id":1,"content":"mine"}}`)

	require.Len(t, s.Messages, 1)
	assert.Equal(t, 0, s.Unread)
	assert.Empty(t, notes)
}

func TestUnreadCountsEachPeerMessageAndResets(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"new_message","message":{"id":1,"sender_id":2}}`,
		`{"type":"new_message","message":{"id":2,"sender_id":1}}`,
		`{"type":"new_message","message":{"id":3,"sender_id":3}}`,
		`{"type":"new_message","message":{"id":4,"sender_id":2}}`,
	)
	assert.Equal(t, 3, s.Unread)

	s, _ = Reduce(s, MarkRead{})
	assert.Equal(t, 0, s.Unread)

	s, _ = apply(t, s, `{"type":"new_message","message":{"id":5,"sender_id":2}}`)
	assert.Equal(t, 1, s.Unread)
}

func TestDuplicateNewMessageReplacesInPlace(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"new_message","message":{"id":"m1","sender_id":"u2","content":"first"}}`,
		`{"type":"new_message","message":{"id":"m2","sender_id":"u2","content":"second"}}`,
		`{"type":"new_message","message":{"id":"m1","sender_id":"u2","content":"edited"}}`,
	)

	require.Len(t, s.Messages, 2)
	assert.Equal(t, "edited", s.Messages[0].Content)
	assert.Equal(t, 2, s.Unread)
}

func TestHistoryReplacesListWithoutDuplicates(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"new_message","message":{"id":"old","sender_id":"u2"}}`,
		`{"type":"message_history","messages":[{"id":1,"content":"a"},{"id":2,"content":"b"},{"id":1,"content":"a2"}]}`,
	)

	require.Len(t, s.Messages, 2)
	assert.Equal(t, models.ID("1"), s.Messages[0].ID)
	assert.Equal(t, "a2", s.Messages[0].Content)
	assert.Equal(t, models.ID("2"), s.Messages[1].ID)
}

func TestPresenceUpsertIsIdempotent(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"user_status","user_id":"u3","is_online":true}`,
		`{"type":"user_status","user_id":"u3","is_online":true}`,
	)
	require.Len(t, s.Online, 1)
	assert.Equal(t, models.ID("u3"), s.Online[0].UserID)

	s, _ = apply(t, s,
		`{"type":"user_status","user_id":"u3","is_online":false}`,
		`{"type":"user_status","user_id":"u3","is_online":false}`,
	)
	assert.Empty(t, s.Online)
}

func TestPresenceSequencesNeverDuplicate(t *testing.T) {
	frames := []string{
		`{"type":"user_status","user_id":2,"is_online":true}`,
		`{"type":"online_users","users":[{"id":2},{"id":3},{"id":2},{"id":1}]}`,
		`{"type":"user_status","user_id":3,"is_online":true}`,
		`{"type":"user_status","user_id":2,"is_online":false}`,
		`{"type":"user_status","user_id":2,"is_online":true}`,
		`{"type":"user_status","user_id":4,"is_online":true}`,
		`{"type":"user_status","user_id":4,"is_online":true}`,
	}

	s := start()
	for _, f := range frames {
		s, _ = apply(t, s, f)
		seen := map[models.ID]bool{}
		for _, p := range s.Online {
			require.False(t, seen[p.UserID], "duplicate presence for %s after %s", p.UserID, f)
			seen[p.UserID] = true
		}
	}
	assert.Len(t, s.Online, 3)
}

func TestOnlineUsersExcludesSelf(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"online_users","users":[{"id":1,"username":"alice"},{"id":2,"username":"bob","full_name":"Bob"}]}`)

	require.Len(t, s.Online, 1)
	assert.Equal(t, "Bob", s.Online[0].DisplayName)
	assert.False(t, s.IsOnline("1"))
}

func TestTypingIgnoresSelfAndClearsOnStop(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"typing","user_id":1,"username":"alice","is_typing":true}`,
		`{"type":"typing","user_id":2,"username":"bob","is_typing":true}`,
		`{"type":"typing","user_id":2,"username":"bob","is_typing":true}`,
	)
	require.Len(t, s.Typing, 1)
	assert.True(t, s.IsTyping("2"))
	assert.False(t, s.IsTyping("1"))

	s, _ = apply(t, s, `{"type":"typing","user_id":2,"is_typing":false}`)
	assert.False(t, s.IsTyping("2"))
}

func TestOfflinePeerStopsTyping(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"user_status","user_id":2,"is_online":true}`,
		`{"type":"typing","user_id":2,"is_typing":true}`,
		`{"type":"user_status","user_id":2,"is_online":false}`,
	)
	assert.False(t, s.IsTyping("2"))
}

func TestReactionReplacesReactionsOnly(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"new_message","message":{"id":10,"sender_id":2,"reactions":[{"emoji":"👍","count":1,"users":["bob"]}]}}`,
		`{"type":"new_message","message":{"id":11,"sender_id":2}}`,
	)
	before := len(s.Messages)

	s, notes := apply(t, s,
		`{"type":"reaction_update","message_id":10,"action":"added","user_id":3,"user_name":"carol","emoji":"🎉","reactions":[{"emoji":"🎉","count":2,"users":["carol","alice"],"user_ids":[3,1],"reacted_by_me":false}]}`)

	require.Len(t, s.Messages, before)
	require.Len(t, s.Messages[0].Reactions, 1)
	r := s.Messages[0].Reactions[0]
	assert.Equal(t, "🎉", r.Emoji)
	assert.Equal(t, 2, r.Count)
	assert.True(t, r.ReactedByMe)
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindReaction, notes[0].Kind)
	assert.Contains(t, notes[0].Text, "carol")
}

func TestReactionNotificationSuppressed(t *testing.T) {
	base, _ := apply(t, start(), `{"type":"new_message","message":{"id":10,"sender_id":2}}`)

	_, notes := apply(t, base,
		`{"type":"reaction_update","message_id":10,"action":"added","user_id":1,"user_name":"Alice Doe","emoji":"👍","reactions":[]}`)
	assert.Empty(t, notes)

	_, notes = apply(t, base,
		`{"type":"reaction_update","message_id":10,"action":"added","user_name":"Alice Doe","emoji":"👍","reactions":[]}`)
	assert.Empty(t, notes)

	_, notes = apply(t, base,
		`{"type":"reaction_update","message_id":10,"action":"removed","user_id":2,"user_name":"bob","emoji":"👍","reactions":[]}`)
	assert.Empty(t, notes)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"new_message","message":{"id":10,"sender_id":2,"content":"x"}}`,
		`{"type":"user_status","user_id":2,"is_online":true}`,
	)
	frozen := s

	_, _ = apply(t, s,
		`{"type":"reaction_update","message_id":10,"action":"added","user_id":2,"emoji":"👍","reactions":[{"emoji":"👍","count":1}]}`,
		`{"type":"user_status","user_id":2,"is_online":false}`,
	)

	assert.Empty(t, frozen.Messages[0].Reactions)
	assert.Len(t, frozen.Online, 1)
}

func TestAckAndPongAndUnknown(t *testing.T) {
	s := start()
	next, notes := apply(t, s, `{"type":"connection","message":"welcome"}`)
	assert.Equal(t, s, next)
	require.Len(t, notes, 1)
	assert.Equal(t, "welcome", notes[0].Text)

	next, notes = apply(t, s, `{"type":"pong"}`, `{"type":"server_shutdown","extra":1}`)
	assert.Equal(t, s, next)
	assert.Empty(t, notes)
}

func TestPeersClearedAndSessionReset(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"new_message","message":{"id":1,"sender_id":2}}`,
		`{"type":"user_status","user_id":2,"is_online":true}`,
		`{"type":"typing","user_id":2,"is_typing":true}`,
	)

	s, _ = Reduce(s, PeersCleared{})
	assert.Empty(t, s.Online)
	assert.Empty(t, s.Typing)
	assert.Len(t, s.Messages, 1)

	s, _ = Reduce(s, SessionReset{})
	assert.Empty(t, s.Messages)
	assert.Equal(t, 0, s.Unread)
	assert.Equal(t, StatusDisconnected, s.Status)
	assert.True(t, s.Self.ID.IsZero())
}

func TestConversationAndSearch(t *testing.T) {
	s, _ := apply(t, start(),
		`{"type":"message_history","messages":[
			{"id":1,"sender_id":2,"sender_name":"Bob","content":"Hello all"},
			{"id":2,"sender_id":2,"sender_name":"Bob","receiver_id":1,"content":"psst"},
			{"id":3,"sender_id":1,"sender_name":"Alice","receiver_id":2,"content":"hello bob"},
			{"id":4,"sender_id":3,"sender_name":"Carol","receiver_id":1,"content":"other"},
			{"id":5,"sender_id":2,"sender_name":"Bob","receiver_id":3,"content":"not mine"}
		]}`)

	general := s.Conversation("")
	require.Len(t, general, 1)
	assert.Equal(t, models.ID("1"), general[0].ID)

	direct := s.Conversation("2")
	require.Len(t, direct, 2)
	assert.Equal(t, models.ID("2"), direct[0].ID)
	assert.Equal(t, models.ID("3"), direct[1].ID)

	found := Search(s.Messages, "HELLO")
	assert.Len(t, found, 2)
	found = Search(s.Messages, "carol")
	require.Len(t, found, 1)
	assert.Equal(t, models.ID("4"), found[0].ID)
	assert.Len(t, Search(s.Messages, "  "), 5)
}
