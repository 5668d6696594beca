package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"alert_console/internal/config"
	"alert_console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, failures uint32) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.BackendConfig{
		BaseURL:         srv.URL,
		Timeout:         2 * time.Second,
		BreakerFailures: failures,
		BreakerTimeout:  time.Minute,
	}, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Endpoints(t *testing.T) {
	var gotControls map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/devices/dev-1/controls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body struct {
			Values map[string]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotControls = body.Values
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/devices/dev-1/door", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.DoorStatus{Open: r.Method == http.MethodPost, Locked: false})
	})
	mux.HandleFunc("/devices/dev-1/lock", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.DoorStatus{Locked: true})
	})
	mux.HandleFunc("/devices/dev-1/share", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, models.ShareTicket{Ticket: "T-1", Permission: body["permission"]})
	})
	mux.HandleFunc("/devices/dev-1/links", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var l models.DeviceLink
			_ = json.NewDecoder(r.Body).Decode(&l)
			l.ID = "L-1"
			writeJSON(w, http.StatusCreated, l)
			return
		}
		writeJSON(w, http.StatusOK, []models.DeviceLink{{ID: "L-1", TargetDeviceID: "dev-2"}})
	})
	c := newTestClient(t, mux, 5)
	ctx := context.Background()

	require.NoError(t, c.UpdateControl(ctx, "dev-1", map[string]any{"power": true}))
	assert.Equal(t, map[string]any{"power": true}, gotControls)

	door, err := c.ToggleDoor(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, door.Open)
	door, err = c.DoorStatus(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, door.Open)

	door, err = c.Lock(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, door.Locked)

	ticket, err := c.CreateShareTicket(ctx, "dev-1", "read")
	require.NoError(t, err)
	assert.Equal(t, "T-1", ticket.Ticket)
	assert.Equal(t, "read", ticket.Permission)

	link, err := c.CreateLink(ctx, "dev-1", models.DeviceLink{TargetDeviceID: "dev-2", Trigger: "smoke", Action: "power_off"})
	require.NoError(t, err)
	assert.Equal(t, "L-1", link.ID)
	assert.Equal(t, "dev-1", link.SourceDeviceID)

	links, err := c.ListLinks(ctx, "dev-1")
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your device"})
	}), 5)

	err := c.RemoveSharedUser(context.Background(), "dev-1", "u-2")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "not your device", apiErr.Message)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream"})
	}), 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.TogglePower(ctx, "dev-1")
		assert.Error(t, err)
	}
	before := hits.Load()
	_, err := c.TogglePower(ctx, "dev-1")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, before, hits.Load(), "open breaker short-circuits")
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such device"})
	}), 1)
	for i := 0; i < 3; i++ {
		err := c.DeleteLink(context.Background(), "dev-1", "L-9")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "no such device", apiErr.Message)
	}
}

func TestClient_Disabled(t *testing.T) {
	c := NewClient(config.BackendConfig{Timeout: time.Second}, nil)
	_, err := c.ListSharedUsers(context.Background(), "dev-1")
	assert.ErrorIs(t, err, ErrBackendDisabled)
}
