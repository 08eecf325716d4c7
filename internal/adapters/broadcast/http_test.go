package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"trend-launch/internal/domain"
)

func TestClientRoomLifecycle(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/rooms":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "show-1", body["name"])
			require.Equal(t, "private", body["privacy"])
			_, _ = w.Write([]byte(`{"id":"room-9","name":"show-1","privacy":"private"}`))
		case "/v1/rooms/room-9/participants":
			_, _ = w.Write([]byte(`{"total_count":321}`))
		case "/v1/rooms/room-9/recordings":
			_, _ = w.Write([]byte(`{"data":[{"download_url":"https://cdn/rec.mp4","start_ts":1740823200}]}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL + "/v1/", Token: "secret"})
	require.NoError(t, err)
	ctx := context.Background()

	room, err := client.CreateRoom(ctx, "show-1", true)
	require.NoError(t, err)
	require.Equal(t, domain.Room{ID: "room-9", Private: true}, room)

	require.NoError(t, client.StartBroadcast(ctx, room.ID))
	viewers, err := client.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, 321, viewers)
	require.NoError(t, client.StopBroadcast(ctx, room.ID))

	recs, err := client.ListRecordings(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "https://cdn/rec.mp4", recs[0].URL)
	require.Equal(t, int64(1740823200), recs[0].StartedAt.Unix())

	require.Equal(t, []string{
		"POST /v1/rooms",
		"POST /v1/rooms/room-9/broadcast/start",
		"GET /v1/rooms/room-9/participants",
		"POST /v1/rooms/room-9/broadcast/stop",
		"GET /v1/rooms/room-9/recordings",
	}, calls)
}

func TestClientErrorsAreExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = client.CreateRoom(context.Background(), "x", false)
	require.True(t, errors.Is(err, domain.ErrExternalDependency))
	require.Contains(t, err.Error(), "quota exceeded")

	_, err = NewClient(Config{})
	require.Error(t, err)
}
