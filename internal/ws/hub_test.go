package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHangoutID = "htUJOeoHJhuI8O7JA4HZPTBq7e8x7TgR_1749132719013"

// dialTestConn spins up an accepting websocket endpoint and returns the
// server-side connection, which is the side the hub holds.
func dialTestConn(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-serverConns
	t.Cleanup(func() { serverConn.Close() })
	return serverConn, clientConn
}

func TestHubRegistry(t *testing.T) {
	t.Run("add and remove track counts", func(t *testing.T) {
		hub := NewHub()
		serverConn, _ := dialTestConn(t)

		hub.Add(testHangoutID, serverConn)
		assert.Equal(t, 1, hub.ConnCount(testHangoutID))
		assert.Equal(t, 1, hub.RoomCount())

		hub.Remove(testHangoutID, serverConn)
		assert.Equal(t, 0, hub.ConnCount(testHangoutID))
		assert.Equal(t, 0, hub.RoomCount(), "empty registry dropped on remove")
	})

	t.Run("removing an unknown connection is a no-op", func(t *testing.T) {
		hub := NewHub()
		serverConn, _ := dialTestConn(t)
		hub.Remove(testHangoutID, serverConn)
		assert.Equal(t, 0, hub.RoomCount())
	})

	t.Run("purge drops orphaned empty registries", func(t *testing.T) {
		hub := NewHub()
		hub.rooms["orphan_1"] = make(map[*websocket.Conn]bool)
		hub.rooms["orphan_2"] = make(map[*websocket.Conn]bool)

		serverConn, _ := dialTestConn(t)
		hub.Add(testHangoutID, serverConn)

		assert.Equal(t, 2, hub.PurgeEmpty())
		assert.Equal(t, 1, hub.RoomCount())
	})
}

func TestHubBroadcast(t *testing.T) {
	t.Run("delivers envelope to every room member", func(t *testing.T) {
		hub := NewHub()
		serverA, clientA := dialTestConn(t)
		serverB, clientB := dialTestConn(t)
		hub.Add(testHangoutID, serverA)
		hub.Add(testHangoutID, serverB)

		hub.Broadcast(testHangoutID, Envelope{
			Type:   TypeNewData,
			Reason: ReasonStageChange,
			Data:   map[string]any{"currentStage": 2},
		})

		for _, client := range []*websocket.Conn{clientA, clientB} {
			client.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, payload, err := client.ReadMessage()
			require.NoError(t, err)

			var env Envelope
			require.NoError(t, json.Unmarshal(payload, &env))
			assert.Equal(t, TypeNewData, env.Type)
			assert.Equal(t, ReasonStageChange, env.Reason)
		}
	})

	t.Run("does not leak across hangouts", func(t *testing.T) {
		hub := NewHub()
		serverA, clientA := dialTestConn(t)
		serverB, clientB := dialTestConn(t)
		hub.Add(testHangoutID, serverA)
		hub.Add("otherHangoutRandomSegment0000000_1749132719014", serverB)

		hub.Broadcast(testHangoutID, Envelope{Type: TypeChatUpdate, Reason: ReasonNewChatMessage})

		clientA.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := clientA.ReadMessage()
		require.NoError(t, err)

		clientB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, _, err = clientB.ReadMessage()
		assert.Error(t, err, "other hangout must not receive the message")
	})

	t.Run("prunes connections that fail the write", func(t *testing.T) {
		hub := NewHub()
		serverConn, clientConn := dialTestConn(t)
		hub.Add(testHangoutID, serverConn)

		clientConn.Close()
		serverConn.Close()

		hub.Broadcast(testHangoutID, Envelope{Type: TypeHangoutUtil})
		assert.Equal(t, 0, hub.ConnCount(testHangoutID))
	})

	t.Run("broadcast to unknown hangout is a no-op", func(t *testing.T) {
		hub := NewHub()
		hub.Broadcast(testHangoutID, Envelope{Type: TypeNewData})
	})
}
