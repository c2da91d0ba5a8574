package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homegraph/pkg/config"
	"homegraph/pkg/downsample"
	"homegraph/pkg/history"
	"homegraph/pkg/httpx"
	"homegraph/pkg/ingest"
	"homegraph/pkg/refresh"
	"homegraph/pkg/storage"
)

var startTime = time.Now()

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	Refresh refresh.Status `json:"refresh"`
	Storage *storage.Stats `json:"storage,omitempty"`
}

// SeriesResponse is the payload of /v1/series and /v1/history.
type SeriesResponse struct {
	EntityID string              `json:"entity_id"`
	Series   []downsample.Sample `json:"series"`
}

// EntitiesResponse lists the entities the widget tracks.
type EntitiesResponse struct {
	Entities []string `json:"entities"`
}

// handleHealth returns service health status.
func handleHealth(monitor *refresh.Monitor, store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overallStatus := "healthy"
		statusCode := http.StatusOK
		if !monitor.IsHealthy() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		ctx, cancel := context.WithTimeout(r.Context(), config.StatsTimeout)
		defer cancel()

		// Storage stats are best-effort on the health path
		stats, err := store.Stats(ctx)
		if err != nil {
			stats = nil
		}

		httpx.RespondJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Version: "1.0.0",
			Uptime:  time.Since(startTime).String(),
			Refresh: monitor.Status(),
			Storage: stats,
		})
	}
}

// handleSeries serves the downsampled history series for one entity.
// Window and density default to the widget config and can be overridden per
// request, which is what the dashboard's config editor preview does.
func handleSeries(fetcher *history.Fetcher, widget config.WidgetConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID := r.URL.Query().Get("entity")
		if entityID == "" {
			httpx.RespondErrorString(w, http.StatusBadRequest, "missing entity parameter")
			return
		}

		hours, ok := parseFloatParam(w, r, "hours", widget.WindowHours)
		if !ok {
			return
		}
		if hours <= 0 || hours > config.MaxWindowHours {
			httpx.RespondErrorString(w, http.StatusBadRequest, "hours out of range")
			return
		}

		pointsPerHour, ok := parseFloatParam(w, r, "points_per_hour", widget.PointsPerHour)
		if !ok {
			return
		}
		if pointsPerHour > config.MaxPointsPerHour {
			httpx.RespondErrorString(w, http.StatusBadRequest, "points_per_hour out of range")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
		defer cancel()

		now := time.Now()
		window := time.Duration(hours * float64(time.Hour))

		samples, err := fetcher.FetchSamples(ctx, entityID, window, now)
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		series := downsample.Downsample(samples, window, pointsPerHour, now)
		httpx.RespondJSON(w, http.StatusOK, SeriesResponse{
			EntityID: entityID,
			Series:   series,
		})
	}
}

// handleHistory serves the raw coerced samples without downsampling.
func handleHistory(fetcher *history.Fetcher, widget config.WidgetConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID := r.URL.Query().Get("entity")
		if entityID == "" {
			httpx.RespondErrorString(w, http.StatusBadRequest, "missing entity parameter")
			return
		}

		hours, ok := parseFloatParam(w, r, "hours", widget.WindowHours)
		if !ok {
			return
		}
		if hours <= 0 || hours > config.MaxWindowHours {
			httpx.RespondErrorString(w, http.StatusBadRequest, "hours out of range")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
		defer cancel()

		samples, err := fetcher.FetchSamples(ctx, entityID, time.Duration(hours*float64(time.Hour)), time.Now())
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.RespondJSON(w, http.StatusOK, SeriesResponse{
			EntityID: entityID,
			Series:   samples,
		})
	}
}

// handleEntities lists the configured entities.
func handleEntities(widget config.WidgetConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, EntitiesResponse{Entities: widget.Entities})
	}
}

// parseFloatParam reads an optional float query parameter, responding with
// 400 and returning ok=false when it is present but malformed.
func parseFloatParam(w http.ResponseWriter, r *http.Request, name string, defaultValue float64) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	ingestHandler *ingest.Handler,
	fetcher *history.Fetcher,
	hub *ingest.SeriesHub,
	refresher *refresh.Refresher,
	store storage.Storage,
	widget config.WidgetConfig,
	port string,
) {
	// CORS middleware so the dashboard host can fetch from another port
	router.Use(corsMiddleware(port))

	// API routes
	api := router.PathPrefix("/v1").Subrouter()

	// State ingestion and history
	api.HandleFunc("/states", ingestHandler.HandleIngest).Methods("POST")
	api.HandleFunc("/history", handleHistory(fetcher, widget)).Methods("GET")
	api.HandleFunc("/series", handleSeries(fetcher, widget)).Methods("GET")

	// Metadata and health
	api.HandleFunc("/entities", handleEntities(widget)).Methods("GET")
	api.HandleFunc("/health", handleHealth(refresher.Monitor(), store)).Methods("GET")

	// WebSocket for live series updates
	api.HandleFunc("/ws", hub.HandleWebSocket()).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// The dashboard host usually runs on its own port next door
			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
				"http://localhost:8123",
				"http://127.0.0.1:8123",
			}

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
