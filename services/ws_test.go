package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Join(sessionID, conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.count(sessionID) == 1 }, time.Second, 5*time.Millisecond)

	// other sessions do not receive it
	hub.Publish(uuid.New(), RemarkMessage{Type: "remark", Remark: Remark{BotMessage: "not for you"}})
	hub.Publish(sessionID, RemarkMessage{Type: "remark", SessionID: sessionID, Trigger: TriggerLine, Remark: Remark{BotMessage: "Nice line!"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg RemarkMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, TriggerLine, msg.Trigger)
	assert.Equal(t, "Nice line!", msg.Remark.BotMessage)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.count(sessionID) == 0 }, time.Second, 5*time.Millisecond)
}
