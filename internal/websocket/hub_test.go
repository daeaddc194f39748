package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redstring/internal/auth"
	"redstring/pkg/models"
)

var secret = []byte("test-secret")

func newServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", Handle(hub, secret))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	token, err := auth.SignJWT(secret, userID, userID, models.RoleReader, time.Hour)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishGoesToOwnerOnly(t *testing.T) {
	hub, url := newServer(t)
	mine := dial(t, url, "u1")
	other := dial(t, url, "u2")
	require.Eventually(t, func() bool { return hub.Clients("u1") == 1 && hub.Clients("u2") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(models.ProgressUpdate{UserID: "u1", SectionID: "s1", CurrentPageNumber: 2})

	require.NoError(t, mine.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := mine.ReadMessage()
	require.NoError(t, err)
	var got models.ProgressUpdate
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "s1", got.SectionID)
	assert.Equal(t, 2, got.CurrentPageNumber)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "another reader's updates are not delivered")
}

func TestRejectsBadToken(t *testing.T) {
	_, url := newServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}
