package events

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budvest_data_service/scheduler"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, h *Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/jobs" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.Clients() > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) JobEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string   `json:"type"`
		Data JobEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "job_run", msg.Type)
	return msg.Data
}

func TestHub_BroadcastsRuns(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()
	conn := dial(t, h, "")

	start := time.Now()
	h.Notify(scheduler.RunResult{
		RunID: "r1", Job: "margin", Trigger: scheduler.TriggerSchedule,
		Outcome: scheduler.OutcomeFailed, Err: errors.New("boom"),
		StartedAt: start, FinishedAt: start.Add(250 * time.Millisecond),
	})

	ev := readEvent(t, conn)
	assert.Equal(t, "margin", ev.Job)
	assert.Equal(t, "failed", ev.Outcome)
	assert.Equal(t, "boom", ev.Error)
	assert.Equal(t, int64(250), ev.DurationMS)
}

func TestHub_FiltersBySubscription(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()
	conn := dial(t, h, "?job=stock_news")

	h.Notify(scheduler.RunResult{RunID: "skip", Job: "margin", Outcome: scheduler.OutcomeSuccess})
	h.Notify(scheduler.RunResult{RunID: "keep", Job: "stock_news", Outcome: scheduler.OutcomeSuccess})

	ev := readEvent(t, conn)
	assert.Equal(t, "keep", ev.RunID)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := NewHub()
	conn := dial(t, h, "")

	h.Shutdown()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 10*time.Millisecond)

	// notifying a stopped hub must not block
	h.Notify(scheduler.RunResult{Job: "margin"})
}
