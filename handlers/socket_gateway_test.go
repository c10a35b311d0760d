package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/shared-brackets/brackets"
	"github.com/Dosada05/shared-brackets/middleware"
)

type gatewayEnv struct {
	server  *httptest.Server
	store   *fakeStore
	tickets *middleware.TicketIssuer
}

func newGatewayEnv(t *testing.T, bracketIDs ...int) *gatewayEnv {
	t.Helper()
	logger := discardLogger()

	ctx, cancel := context.WithCancel(context.Background())
	hub := brackets.NewHub(logger, nil)
	go hub.Run(ctx)

	store := newFakeStore(bracketIDs...)
	gateway := NewGateway(hub, brackets.NewSessionRegistry(), GatewayServices{
		Brackets:    store,
		Items:       fakeItems{s: store},
		Users:       store,
		Tournaments: store,
	}, nil, logger)
	tickets := middleware.NewTicketIssuer("test-secret", time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub, tickets, gateway, logger).ServeWs))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return &gatewayEnv{server: srv, store: store, tickets: tickets}
}

func (e *gatewayEnv) dial(t *testing.T, bracketID int) *websocket.Conn {
	t.Helper()
	token, err := e.tickets.Issue(bracketID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Type    string          `json:"type"`
	Ack     string          `json:"ack"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, event, ack string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": event, "ack": ack, "payload": payload}))
}

// readUntil returns the first frame of the given type and the types skipped before it.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) (frame, []string) {
	t.Helper()
	var skipped []string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q, skipped %v", typ, skipped)
		if f.Type == typ {
			return f, skipped
		}
		skipped = append(skipped, f.Type)
	}
}

func ackStatus(t *testing.T, conn *websocket.Conn, ack string) string {
	t.Helper()
	f, _ := readUntil(t, conn, brackets.EmitAck)
	assert.Equal(t, ack, f.Ack)
	var status string
	require.NoError(t, json.Unmarshal(f.Payload, &status))
	return status
}

func join(t *testing.T, conn *websocket.Conn, senderID string, bracketID int) frame {
	t.Helper()
	send(t, conn, brackets.EventUserJoin, "join-"+senderID, map[string]interface{}{
		"senderId":  senderID,
		"bracketId": bracketID,
		"name":      strings.ToUpper(senderID),
	})
	initFrame, _ := readUntil(t, conn, brackets.EmitInit)
	require.Equal(t, brackets.StatusOK, ackStatus(t, conn, "join-"+senderID))
	return initFrame
}

func TestWebSocketHandler_RejectsBadToken(t *testing.T) {
	env := newGatewayEnv(t, 1)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_JoinSendsInitAndGrantsOwnership(t *testing.T) {
	env := newGatewayEnv(t, 1)
	conn := env.dial(t, 1)

	initFrame := join(t, conn, "alice", 1)

	type profile struct {
		FbID   string `json:"fbId"`
		Name   string `json:"name"`
		Online bool   `json:"online"`
	}
	var payload struct {
		ID       int               `json:"id"`
		Title    string            `json:"title"`
		OwnerID  string            `json:"ownerId"`
		Items    []json.RawMessage `json:"items"`
		Users    []profile         `json:"users"`
		Pairings []json.RawMessage `json:"pairings"`
	}
	require.NoError(t, json.Unmarshal(initFrame.Payload, &payload))
	assert.Equal(t, 1, payload.ID)
	assert.Equal(t, "Custom Bracket", payload.Title)
	assert.Equal(t, "alice", payload.OwnerID)
	assert.Empty(t, payload.Items)
	assert.NotNil(t, payload.Pairings)
	require.Len(t, payload.Users, 1)
	assert.Equal(t, "ALICE", payload.Users[0].Name)
	assert.True(t, payload.Users[0].Online)
}

func TestGateway_JoinOtherBracketForbidden(t *testing.T) {
	env := newGatewayEnv(t, 1, 2)
	conn := env.dial(t, 1)

	send(t, conn, brackets.EventUserJoin, "j", map[string]interface{}{"senderId": "alice", "bracketId": 2})
	assert.Equal(t, brackets.StatusForbidden, ackStatus(t, conn, "j"))
}

func TestGateway_JoinUnknownBracket(t *testing.T) {
	env := newGatewayEnv(t)
	conn := env.dial(t, 42)

	send(t, conn, brackets.EventUserJoin, "j", map[string]interface{}{"senderId": "alice", "bracketId": 42})
	assert.Equal(t, brackets.StatusNoBracket, ackStatus(t, conn, "j"))
}

func TestGateway_EventsBeforeJoin(t *testing.T) {
	env := newGatewayEnv(t, 1)
	conn := env.dial(t, 1)

	send(t, conn, brackets.EventItemAdd, "a1", map[string]string{"name": "milk"})
	assert.Equal(t, brackets.StatusNotJoined, ackStatus(t, conn, "a1"))
}

func TestGateway_MalformedFrames(t *testing.T) {
	env := newGatewayEnv(t, 1)
	conn := env.dial(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, brackets.StatusInvalid, ackStatus(t, conn, ""))

	send(t, conn, "push:nope", "x", nil)
	assert.Equal(t, brackets.StatusInvalid, ackStatus(t, conn, "x"))

	send(t, conn, brackets.EventUserJoin, "j", map[string]interface{}{"bracketId": 1})
	assert.Equal(t, brackets.StatusInvalid, ackStatus(t, conn, "j"))
}

func TestGateway_RoomFanOut(t *testing.T) {
	env := newGatewayEnv(t, 1)
	alice := env.dial(t, 1)
	bob := env.dial(t, 1)

	join(t, alice, "alice", 1)
	join(t, bob, "bob", 1)

	joined, _ := readUntil(t, alice, brackets.EmitUserJoin)
	assert.Contains(t, string(joined.Payload), `"fbId":"bob"`)

	// item:add reaches everyone, the author included
	send(t, alice, brackets.EventItemAdd, "add", map[string]string{"name": "milk"})
	added, _ := readUntil(t, alice, brackets.EmitItemAdd)
	assert.Contains(t, string(added.Payload), `"name":"milk"`)
	assert.Equal(t, brackets.StatusOK, ackStatus(t, alice, "add"))
	added, _ = readUntil(t, bob, brackets.EmitItemAdd)
	assert.Contains(t, string(added.Payload), `"ownerFbId":"alice"`)

	send(t, bob, brackets.EventItemUpdate, "upd", map[string]interface{}{"id": 1, "name": "oat milk", "completerFbId": "bob"})
	assert.Equal(t, brackets.StatusOK, ackStatus(t, bob, "upd"))
	updated, _ := readUntil(t, alice, brackets.EmitItemUpdate)
	assert.JSONEq(t, `{"id":1,"name":"oat milk","completerFbId":"bob"}`, string(updated.Payload))

	// title:update skips the author
	send(t, alice, brackets.EventTitleUpdate, "title", map[string]string{"title": "Groceries"})
	_, skipped := readUntil(t, alice, brackets.EmitAck)
	assert.NotContains(t, skipped, brackets.EmitTitleUpdate)
	title, _ := readUntil(t, bob, brackets.EmitTitleUpdate)
	assert.JSONEq(t, `"Groceries"`, string(title.Payload))

	require.NoError(t, bob.Close())
	online, _ := readUntil(t, alice, brackets.EmitUsersOnline)
	assert.JSONEq(t, `["alice"]`, string(online.Payload))
}

func TestGateway_OwnerOnlyOperations(t *testing.T) {
	env := newGatewayEnv(t, 1)
	alice := env.dial(t, 1)
	bob := env.dial(t, 1)

	join(t, alice, "alice", 1)
	join(t, bob, "bob", 1)

	send(t, bob, brackets.EventOwnerSet, "o1", map[string]string{"userId": "bob"})
	assert.Equal(t, brackets.StatusForbidden, ackStatus(t, bob, "o1"))

	send(t, bob, brackets.EventTournamentStart, "s1", nil)
	assert.Equal(t, brackets.StatusForbidden, ackStatus(t, bob, "s1"))

	// not enough items yet
	send(t, alice, brackets.EventTournamentStart, "s2", nil)
	assert.Equal(t, brackets.StatusInvalid, ackStatus(t, alice, "s2"))

	send(t, alice, brackets.EventOwnerSet, "o2", map[string]string{"userId": "bob"})
	assert.Equal(t, brackets.StatusOK, ackStatus(t, alice, "o2"))
	owner, _ := readUntil(t, bob, brackets.EmitSetOwnerID)
	assert.JSONEq(t, `"bob"`, string(owner.Payload))
}

func TestGateway_VoteOnUnknownPairing(t *testing.T) {
	env := newGatewayEnv(t, 1)
	conn := env.dial(t, 1)
	join(t, conn, "alice", 1)

	send(t, conn, brackets.EventVoteCast, "v", map[string]int{"pairingId": 7, "itemId": 3})
	assert.Equal(t, brackets.StatusInvalid, ackStatus(t, conn, "v"))
}

func TestGateway_TournamentStartAndVote(t *testing.T) {
	env := newGatewayEnv(t, 1)
	alice := env.dial(t, 1)
	bob := env.dial(t, 1)

	join(t, alice, "alice", 1)
	join(t, bob, "bob", 1)

	for i, name := range []string{"tea", "coffee"} {
		ack := fmt.Sprintf("add-%d", i)
		send(t, alice, brackets.EventItemAdd, ack, map[string]string{"name": name})
		require.Equal(t, brackets.StatusOK, ackStatus(t, alice, ack))
	}

	send(t, alice, brackets.EventTournamentStart, "start", nil)

	type entrant struct {
		ItemID int `json:"itemId"`
		Votes  int `json:"votes"`
	}
	type pairing struct {
		ID           int       `json:"id"`
		Round        int       `json:"round"`
		Entrants     []entrant `json:"entrants"`
		WinnerItemID *int      `json:"winnerItemId"`
	}
	for _, conn := range []*websocket.Conn{alice, bob} {
		set, _ := readUntil(t, conn, brackets.EmitPairingsSet)
		var tree []pairing
		require.NoError(t, json.Unmarshal(set.Payload, &tree))
		require.Len(t, tree, 1)
		assert.Equal(t, 1, tree[0].Round)
		assert.Len(t, tree[0].Entrants, 2)
		assert.Nil(t, tree[0].WinnerItemID)
	}
	// broadcast is queued before the ack
	assert.Equal(t, brackets.StatusOK, ackStatus(t, alice, "start"))

	send(t, bob, brackets.EventVoteCast, "vote", map[string]int{"pairingId": 1, "itemId": 2})

	for _, conn := range []*websocket.Conn{alice, bob} {
		update, _ := readUntil(t, conn, brackets.EmitVoteUpdate)
		var res struct {
			Pairing  pairing   `json:"pairing"`
			Pairings []pairing `json:"pairings"`
		}
		require.NoError(t, json.Unmarshal(update.Payload, &res))
		assert.Equal(t, 1, res.Pairing.ID)
		require.NotNil(t, res.Pairing.WinnerItemID)
		assert.Equal(t, 2, *res.Pairing.WinnerItemID)
		assert.Len(t, res.Pairings, 1)
	}
	assert.Equal(t, brackets.StatusOK, ackStatus(t, bob, "vote"))

	// повторный старт и голос за не-участника
	send(t, alice, brackets.EventTournamentStart, "restart", nil)
	assert.Equal(t, brackets.StatusInvalid, ackStatus(t, alice, "restart"))

	send(t, alice, brackets.EventVoteCast, "stray", map[string]int{"pairingId": 1, "itemId": 99})
	assert.Equal(t, brackets.StatusInvalid, ackStatus(t, alice, "stray"))
}
