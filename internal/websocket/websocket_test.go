package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/persuratan-gin/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", WebSocketHandler(hub, nil, NewUpgrader(nil), nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, actor string) *gorillaWS.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	header.Set(auth.ActorHeader, actor)
	conn, _, err := gorillaWS.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestBroadcastToUser 测试按员工推送
func TestBroadcastToUser(t *testing.T) {
	hub, srv := newTestServer(t)
	budi := dial(t, srv, "p-budi")
	sari := dial(t, srv, "p-sari")

	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.BroadcastToUser("p-budi", []byte(`{"type":"document_signed"}`))

	require.NoError(t, budi.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := budi.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"document_signed"}`, string(msg))

	require.NoError(t, sari.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = sari.ReadMessage()
	assert.Error(t, err)
}

// TestUnregisterOnClose 测试断开后注销
func TestUnregisterOnClose(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := dial(t, srv, "p-budi")
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

// TestRejectWithoutActor 测试缺少员工 ID 时拒绝连接
func TestRejectWithoutActor(t *testing.T) {
	_, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := gorillaWS.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// TestNewUpgrader 测试 Origin 校验
func TestNewUpgrader(t *testing.T) {
	up := NewUpgrader([]string{"https://surat.example.go.id"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, up.CheckOrigin(req))
	req.Header.Set("Origin", "https://surat.example.go.id")
	assert.True(t, up.CheckOrigin(req))
}
