package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/solofill/internal/api/handlers"
	"github.com/wonny/solofill/internal/contracts"
)

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	log := testLogger()
	srv := httptest.NewServer(NewRouter(RouterDeps{
		Sessions: handlers.NewSessionsHandler(seededStore(t), nil, log),
		Jobs:     handlers.NewJobsHandler(nil),
		Hub:      hub,
	}, log))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Emit(contracts.ProgressEvent{
		Type:      contracts.EventOutputFilled,
		SessionID: "s1",
		Output:    "Fc_SOLO",
		Time:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev contracts.ProgressEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, contracts.EventOutputFilled, ev.Type)
	assert.Equal(t, "Fc_SOLO", ev.Output)

	cancel()
	<-stopped

	// the hub closes the connection on shutdown
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_EmitDoesNotBlockWithoutRun(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+10; i++ {
			hub.Emit(contracts.ProgressEvent{Type: contracts.EventWindowStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked")
	}
}
