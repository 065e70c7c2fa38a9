package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/redenvelope/internal/game"
	"github.com/lox/redenvelope/internal/randutil"
	"github.com/lox/redenvelope/internal/sessionid"
)

func startTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	srv := NewServer(cfg, quartz.NewMock(t), randutil.New(7), logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Registry().CloseAll()
	})
	return srv, ts
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SpinInterval = 0
	return cfg
}

func createSession(t *testing.T, ts *httptest.Server, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server, id string) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(mt MessageType, requestID string, data any) {
	c.t.Helper()
	msg, err := NewMessage(mt, data)
	require.NoError(c.t, err)
	msg.RequestID = requestID
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

// waitFor reads until a message of type mt arrives.
func (c *testClient) waitFor(mt MessageType) *Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.Type == mt {
			return &msg
		}
	}
}

// draw spins position and stops it on value. The flip is left to the caller
// because its events arrive ahead of the ack.
func (c *testClient) draw(position, value int) {
	c.t.Helper()
	c.send(MessageTypeStartDraw, "", PositionData{Position: position})
	c.waitFor(MessageTypeAck)
	c.send(MessageTypeStopDraw, "", StopDrawData{Position: position, Value: &value})
	c.waitFor(MessageTypeAck)
}

func TestHealth(t *testing.T) {
	_, ts := startTestServer(t, testConfig())
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSession(t *testing.T) {
	_, ts := startTestServer(t, testConfig())

	tests := []struct {
		name     string
		body     string
		status   int
		maxPrice int
	}{
		{"numeric max", `{"digits":3,"maxPrice":250}`, http.StatusCreated, 250},
		{"string max", `{"digits":3,"maxPrice":"300"}`, http.StatusCreated, 300},
		{"blank max", `{"digits":4,"maxPrice":""}`, http.StatusCreated, 0},
		{"null max", `{"digits":4,"maxPrice":null}`, http.StatusCreated, 0},
		{"absent max", `{"digits":4}`, http.StatusCreated, 0},
		{"fractional max", `{"digits":3,"maxPrice":"12.5"}`, http.StatusBadRequest, 0},
		{"zero max", `{"digits":3,"maxPrice":0}`, http.StatusBadRequest, 0},
		{"bad digits", `{"digits":12}`, http.StatusBadRequest, 0},
		{"bad json", `{`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := createSession(t, ts, tt.body)
			require.Equal(t, tt.status, status, string(body))
			if status != http.StatusCreated {
				var e ErrorData
				require.NoError(t, json.Unmarshal(body, &e))
				assert.NotEmpty(t, e.Code)
				return
			}
			var snap game.Snapshot
			require.NoError(t, json.Unmarshal(body, &snap))
			assert.NotEmpty(t, snap.ID)
			assert.Equal(t, tt.maxPrice, snap.MaxPrice)
		})
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv, ts := startTestServer(t, testConfig())

	status, body := createSession(t, ts, `{"digits":3}`)
	require.Equal(t, http.StatusCreated, status)
	var snap struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, 1, srv.Registry().Len())

	resp, err := http.Get(ts.URL + "/api/sessions/" + snap.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+snap.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, srv.Registry().Len())

	resp, err = http.Get(ts.URL + "/api/sessions/" + snap.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTooManySessions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	_, ts := startTestServer(t, cfg)

	status, _ := createSession(t, ts, `{"digits":3}`)
	require.Equal(t, http.StatusCreated, status)
	status, _ = createSession(t, ts, `{"digits":3}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestWebSocketGame(t *testing.T) {
	_, ts := startTestServer(t, testConfig())

	status, body := createSession(t, ts, `{"digits":3,"maxPrice":250}`)
	require.Equal(t, http.StatusCreated, status)
	var created game.Snapshot
	require.NoError(t, json.Unmarshal(body, &created))

	client := dial(t, ts, created.ID)
	first := client.waitFor(MessageTypeSnapshot)
	assert.Contains(t, string(first.Data), `"digitCount":3`)

	t.Run("rejections are recoverable errors", func(t *testing.T) {
		client.send(MessageTypeFlip, "req-1", PositionData{Position: 1})
		msg := client.waitFor(MessageTypeError)
		assert.Equal(t, "req-1", msg.RequestID)
		var e ErrorData
		require.NoError(t, json.Unmarshal(msg.Data, &e))
		assert.Equal(t, "no_value", e.Code)
		assert.True(t, e.Recoverable)

		client.send(MessageTypeStartDraw, "req-2", PositionData{Position: 9})
		msg = client.waitFor(MessageTypeError)
		require.NoError(t, json.Unmarshal(msg.Data, &e))
		assert.Equal(t, "unknown_position", e.Code)
		assert.False(t, e.Recoverable)

		client.send(MessageType("dance"), "", nil)
		msg = client.waitFor(MessageTypeError)
		require.NoError(t, json.Unmarshal(msg.Data, &e))
		assert.Equal(t, "unknown_message_type", e.Code)
	})

	client.draw(2, 2)
	client.send(MessageTypeFlip, "", PositionData{Position: 2})
	progress := client.waitFor(MessageTypeProgress)
	var p ProgressData
	require.NoError(t, json.Unmarshal(progress.Data, &p))
	assert.Equal(t, ProgressData{Locked: 1, Count: 3}, p)
	client.waitFor(MessageTypeAck)

	client.draw(1, 4)
	client.send(MessageTypeFlip, "", PositionData{Position: 1})
	client.waitFor(MessageTypeAck)

	client.draw(0, 9)
	client.send(MessageTypeFlip, "", PositionData{Position: 0})

	msg := client.waitFor(MessageTypeFinalized)
	var final struct {
		Total   int    `json:"total"`
		Digits  []int  `json:"digits"`
		Outcome string `json:"outcome"`
		Mood    string `json:"mood"`
		Claim   string `json:"claim"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &final))
	assert.Equal(t, 249, final.Total)
	assert.Equal(t, []int{2, 4, 9}, final.Digits)
	assert.Equal(t, "delight", final.Outcome)
	assert.Equal(t, game.Delight.Mood(), final.Mood)
	assert.Equal(t, "I drew red envelope 249, total 249!", final.Claim)

	client.send(MessageTypeSnapshot, "snap", nil)
	snapMsg := client.waitFor(MessageTypeSnapshot)
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(snapMsg.Data, &snap))
	require.NotNil(t, snap.Result)
	assert.Equal(t, 249, snap.Result.Total)
}

func TestWebSocketUnknownSession(t *testing.T) {
	_, ts := startTestServer(t, testConfig())

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"malformed id", "missing", http.StatusBadRequest},
		{"well-formed unknown id", sessionid.New(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + tt.id + "/ws"
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestMalformedSessionID(t *testing.T) {
	_, ts := startTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/api/sessions/not-an-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e ErrorData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "invalid_session_id", e.Code)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/not-an-id", nil)
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestFinishedSessionEvictedOnDisconnect(t *testing.T) {
	srv, ts := startTestServer(t, testConfig())

	status, body := createSession(t, ts, `{"digits":3}`)
	require.Equal(t, http.StatusCreated, status)
	var created game.Snapshot
	require.NoError(t, json.Unmarshal(body, &created))

	client := dial(t, ts, created.ID)
	client.waitFor(MessageTypeSnapshot)
	for _, p := range []int{2, 1} {
		client.draw(p, 3)
		client.send(MessageTypeFlip, "", PositionData{Position: p})
		client.waitFor(MessageTypeAck)
	}
	client.draw(0, 3)
	client.send(MessageTypeFlip, "", PositionData{Position: 0})
	client.waitFor(MessageTypeFinalized)
	assert.Equal(t, 1, srv.Registry().Len(), "kept while a client is connected")

	require.NoError(t, client.conn.Close())
	assert.Eventually(t, func() bool {
		return srv.Registry().Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
