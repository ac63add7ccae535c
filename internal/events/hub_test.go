package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kb-research-report/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Subscribe(userID, w, r))
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// Registration happens just after the handshake; wait for it so an
	// immediate Emit cannot race the Subscribe call.
	require.Eventually(t, func() bool {
		hub.mutex.RLock()
		defer hub.mutex.RUnlock()
		return len(hub.connections[userID]) > 0
	}, 2*time.Second, 5*time.Millisecond)

	return conn
}

func TestHubEmitReachesSubscriber(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1")

	hub.Emit("user-1", models.ProgressEvent{
		Event:    models.EventReportPending,
		ReportID: "r-1",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event models.ProgressEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventReportPending, event.Event)
	assert.Equal(t, "r-1", event.ReportID)
}

func TestHubEmitIsScopedToUser(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1")

	hub.Emit("user-2", models.ProgressEvent{Event: models.EventReportSuccess, ReportID: "r-2"})
	hub.Emit("user-1", models.ProgressEvent{Event: models.EventReportPending, ReportID: "r-1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event models.ProgressEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "r-1", event.ReportID, "another user's event is never delivered")
}

func TestHubEmitWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	// Fire-and-forget: no subscriber, no panic, no error surfaced
	hub.Emit("nobody", models.ProgressEvent{Event: models.EventReportFailure})
}
