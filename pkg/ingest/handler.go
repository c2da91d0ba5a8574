package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"homegraph/pkg/config"
	"homegraph/pkg/entity"
	"homegraph/pkg/httpx"
	"homegraph/pkg/storage"
)

// Handler handles state-change ingestion over HTTP
type Handler struct {
	store storage.Storage
}

// NewHandler creates a new ingest handler
func NewHandler(store storage.Storage) *Handler {
	return &Handler{store: store}
}

// IngestRequest represents the request payload
type IngestRequest struct {
	States []entity.StateChange `json:"states"`
}

// IngestResponse represents the response payload
type IngestResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// HandleIngest handles POST /v1/states.
// Events with a missing timestamp get the receive time, matching what MQTT
// intake does for bare state payloads.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if len(req.States) == 0 {
		httpx.RespondErrorString(w, http.StatusBadRequest, "no states in request")
		return
	}
	if len(req.States) > config.MaxEventsPerBatch {
		httpx.RespondErrorString(w, http.StatusBadRequest,
			fmt.Sprintf("too many states in batch: %d (max %d)", len(req.States), config.MaxEventsPerBatch))
		return
	}

	now := time.Now()
	for i := range req.States {
		if req.States[i].Timestamp.IsZero() {
			req.States[i].Timestamp = now
		}
		if err := req.States[i].Validate(); err != nil {
			httpx.RespondErrorString(w, http.StatusBadRequest,
				fmt.Sprintf("invalid state change at index %d: %v", i, err))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	if err := h.store.Write(ctx, req.States); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{
		Status: "success",
		Count:  len(req.States),
	})
}
