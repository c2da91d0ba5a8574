package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"homegraph/pkg/config"
	"homegraph/pkg/entity"
	"homegraph/pkg/storage"
	"homegraph/pkg/storage/memory"
)

func TestHandleIngest_StoresStates(t *testing.T) {
	store := memory.New()
	handler := NewHandler(store)

	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	body, err := json.Marshal(IngestRequest{
		States: []entity.StateChange{
			{EntityID: "sensor.living_room_temp", State: "21.5", Timestamp: now},
			{EntityID: "switch.porch_light", State: "on", Timestamp: now},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/states", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	handler.HandleIngest(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	require.Equal(t, 2, resp.Count)

	stored, err := store.Query(context.Background(), storage.QueryRequest{
		EntityID: "sensor.living_room_temp",
		Start:    now.Add(-time.Minute),
		End:      now.Add(time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "21.5", stored[0].State)
}

func TestHandleIngest_EmptyBatch(t *testing.T) {
	handler := NewHandler(memory.New())

	body, err := json.Marshal(IngestRequest{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/states", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	handler.HandleIngest(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp["message"], "no states")
}

func TestHandleIngest_TooManyStates(t *testing.T) {
	handler := NewHandler(memory.New())

	states := make([]entity.StateChange, config.MaxEventsPerBatch+1)
	for i := range states {
		states[i] = entity.StateChange{EntityID: "sensor.a", State: "1", Timestamp: time.Now()}
	}
	body, err := json.Marshal(IngestRequest{States: states})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/states", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	handler.HandleIngest(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp["message"], "too many states")
}

func TestHandleIngest_InvalidState(t *testing.T) {
	handler := NewHandler(memory.New())

	body, err := json.Marshal(IngestRequest{
		States: []entity.StateChange{
			{EntityID: "", State: "on", Timestamp: time.Now()},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/states", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	handler.HandleIngest(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp["message"], "invalid state change")
}

func TestHandleIngest_MissingTimestampGetsReceiveTime(t *testing.T) {
	store := memory.New()
	handler := NewHandler(store)

	body, err := json.Marshal(IngestRequest{
		States: []entity.StateChange{
			{EntityID: "sensor.a", State: "42"},
		},
	})
	require.NoError(t, err)

	before := time.Now()
	req := httptest.NewRequest(http.MethodPost, "/v1/states", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleIngest(rr, req)
	after := time.Now()

	require.Equal(t, http.StatusOK, rr.Code)

	stored, err := store.Query(context.Background(), storage.QueryRequest{
		EntityID: "sensor.a",
		Start:    before.Add(-time.Second),
		End:      after.Add(time.Second),
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.False(t, stored[0].Timestamp.Before(before))
	require.False(t, stored[0].Timestamp.After(after))
}

func TestHandleIngest_InvalidJSON(t *testing.T) {
	handler := NewHandler(memory.New())

	req := httptest.NewRequest(http.MethodPost, "/v1/states", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()

	handler.HandleIngest(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestParseStateMessage(t *testing.T) {
	// Bare payload
	c := parseStateMessage("sensor.a", []byte(" 21.5\n"))
	require.Equal(t, "sensor.a", c.EntityID)
	require.Equal(t, "21.5", c.State)
	require.False(t, c.Timestamp.IsZero())

	// JSON payload with explicit timestamp
	ts := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(statePayload{
		State:      "on",
		Attributes: map[string]string{"friendly_name": "Porch Light"},
		Timestamp:  ts,
	})
	require.NoError(t, err)

	c = parseStateMessage("switch.porch_light", payload)
	require.Equal(t, "on", c.State)
	require.Equal(t, "Porch Light", c.Attributes["friendly_name"])
	require.True(t, c.Timestamp.Equal(ts))
}
