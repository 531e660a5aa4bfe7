package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"example.com/colony-brain/internal/agent"
	"example.com/colony-brain/internal/db"
	"example.com/colony-brain/internal/logging"
	mqttc "example.com/colony-brain/internal/mqtt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(topic string, _ []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
}

func testServer(t *testing.T) (*Server, *recordingPublisher) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "controller.db"))
	require.NoError(t, err)
	pub := &recordingPublisher{}
	s := newServer(d, pub, logging.Nop())
	t.Cleanup(func() { s.Close() })
	return s, pub
}

func statusMessage(t *testing.T, agentID, animalID string) []byte {
	t.Helper()
	buf, err := json.Marshal(agent.StatusPayload{
		Agent:  agentID,
		Animal: animalID,
		Status: "RUNNING",
		TS:     time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	return buf
}

func TestRoutes(t *testing.T) {
	s, pub := testServer(t)
	s.ingest(mqttc.StatusTopic("barn-1", "cow-1"), statusMessage(t, "barn-1", "cow-1"))
	s.ingest("colony/unknown", []byte(`{}`))

	h := s.routes()
	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/animals", "", http.StatusOK},
		{http.MethodGet, "/api/animals/barn-1/cow-1", "", http.StatusOK},
		{http.MethodGet, "/api/animals/barn-1/pig", "", http.StatusNotFound},
		{http.MethodPost, "/api/animals/barn-1/cow-1/command", `{"type":"halt"}`, http.StatusAccepted},
		{http.MethodPost, "/api/animals/barn-1/cow-1/restore", "", http.StatusNotFound},
		{http.MethodPost, "/api/agents/barn-1/command", `{"type":"save"}`, http.StatusAccepted},
		{http.MethodPost, "/api/commands/broadcast", `{"type":"halt"}`, http.StatusAccepted},
		{http.MethodGet, "/api/commands", "", http.StatusOK},
		{http.MethodGet, "/api/saves", "", http.StatusOK},
		{http.MethodGet, "/api/saves/1", "", http.StatusNotFound},
		{http.MethodDelete, "/api/saves/1", "", http.StatusNotFound},
		{http.MethodPost, "/api/saves/1/restore", "", http.StatusNotFound},
		{http.MethodPost, "/api/saves/1/export", "", http.StatusNotFound},
		{http.MethodGet, "/api/exports", "", http.StatusConflict},
		{http.MethodGet, "/api/settings/export", "", http.StatusOK},
		{http.MethodPut, "/api/settings/export", `{"address":"backup"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/animals", "", http.StatusMethodNotAllowed},
		{http.MethodPatch, "/api/saves/1", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []string{
		mqttc.CommandTopic("barn-1"),
		mqttc.CommandTopic("barn-1"),
		mqttc.CommandTopicAll,
	}, pub.topics)
}

func TestSSEBrokerFanOut(t *testing.T) {
	b := NewSSEBroker(logging.Nop())
	defer b.Close()

	a := b.Subscribe()
	c := b.Subscribe()
	require.Eventually(t, func() bool { return b.Clients() == 2 }, time.Second, 5*time.Millisecond)

	b.Broadcast("hello")
	for _, ch := range []chan string{a, c} {
		select {
		case msg := <-ch:
			assert.Equal(t, "hello", msg)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}

	b.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, b.Clients())

	b.Close()
	_, open = <-c
	assert.False(t, open)

	late := b.Subscribe()
	_, open = <-late
	assert.False(t, open)
	b.Broadcast("ignored")
	b.Unsubscribe(late)
}

func TestSSEEndpointStreamsIngestedEvents(t *testing.T) {
	s, _ := testServer(t)
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return s.Events.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.ingest(mqttc.StatusTopic("barn-1", "cow-1"), statusMessage(t, "barn-1", "cow-1"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "), line)
	var ev struct {
		Type   string `json:"type"`
		Agent  string `json:"agent"`
		Animal string `json:"animal"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
	assert.Equal(t, "status", ev.Type)
	assert.Equal(t, "barn-1", ev.Agent)
	assert.Equal(t, "cow-1", ev.Animal)

	cancel()
	require.Eventually(t, func() bool { return s.Events.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
