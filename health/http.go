package health

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/sentimentd/observe"
)

// TimestampFormat is the wire format of health timestamps.
const TimestampFormat = "2006-01-02T15:04:05Z"

// HealthResponse is the JSON body of the detailed health endpoint.
type HealthResponse struct {
	Status     string              `json:"status"`
	Timestamp  string              `json:"timestamp"`
	Version    string              `json:"version"`
	Uptime     float64             `json:"uptime"`
	Components []ComponentResponse `json:"components"`
	Metrics    map[string]any      `json:"metrics,omitempty"`
}

// ComponentResponse is the JSON form of a ComponentHealth. ResponseTime is
// in seconds.
type ComponentResponse struct {
	Name         string         `json:"name"`
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	ResponseTime float64        `json:"response_time"`
	Error        string         `json:"error,omitempty"`
}

// SimpleResponse is the JSON body of the simple health endpoint.
type SimpleResponse struct {
	Status      string  `json:"status"`
	ModelLoaded bool    `json:"model_loaded"`
	Version     string  `json:"version"`
	Uptime      float64 `json:"uptime"`
}

// NewHealthResponse converts an OverallHealth to its JSON form.
func NewHealthResponse(h *OverallHealth) HealthResponse {
	resp := HealthResponse{
		Status:     h.Status.String(),
		Timestamp:  h.Timestamp.UTC().Format(TimestampFormat),
		Version:    h.Version,
		Uptime:     h.Uptime.Seconds(),
		Components: make([]ComponentResponse, 0, len(h.Components)),
		Metrics:    h.Metrics,
	}
	for _, c := range h.Components {
		cr := ComponentResponse{
			Name:         c.Name,
			Status:       c.Status.String(),
			Message:      c.Message,
			Details:      c.Details,
			ResponseTime: c.ResponseTime.Seconds(),
		}
		if c.Error != nil {
			cr.Error = c.Error.Error()
		}
		resp.Components = append(resp.Components, cr)
	}
	return resp
}

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the service is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes.
// Degraded is still ready; Unhealthy or a failed cycle is not.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")

		h, err := agg.CheckAll(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNHEALTHY"))
			return
		}

		switch h.Status {
		case StatusHealthy:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		case StatusDegraded:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("DEGRADED"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNHEALTHY"))
		}
	}
}

// DetailedHandler returns an HTTP handler that runs a full cycle and
// returns it as JSON. An Unhealthy result is still a 200: the status is in
// the body. Only a failed cycle yields 503.
func DetailedHandler(agg *Aggregator, logger observe.Logger) http.HandlerFunc {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := agg.CheckAll(r.Context())
		if err != nil {
			logger.Error(r.Context(), "health check failed", observe.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Health check failed"})
			return
		}

		logger.Info(r.Context(), "health check completed",
			observe.F("status", h.Status.String()),
			observe.F("components", len(h.Components)),
			observe.F("uptime", h.Uptime.Seconds()),
		)
		writeJSON(w, http.StatusOK, NewHealthResponse(h))
	}
}

// SimpleHandler returns the lightweight health endpoint, which reports the
// model state without running the probes.
func SimpleHandler(model ModelState, agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy := model != nil && model.IsHealthy()
		status := StatusUnhealthy
		if healthy {
			status = StatusHealthy
		}
		writeJSON(w, http.StatusOK, SimpleResponse{
			Status:      status.String(),
			ModelLoaded: modelLoaded(model, healthy),
			Version:     agg.Version(),
			Uptime:      agg.Uptime().Seconds(),
		})
	}
}

// modelLoaded reports whether the weights are loaded. Engines that cannot
// distinguish loaded from healthy report their health.
func modelLoaded(model ModelState, healthy bool) bool {
	if l, ok := model.(interface{ Loaded() bool }); ok {
		return l.Loaded()
	}
	return healthy
}

// Router is the subset of a router the health handlers are mounted on.
// Both *http.ServeMux and chi.Router satisfy it.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterHandlers registers all health check handlers on r.
func RegisterHandlers(r Router, agg *Aggregator, model ModelState, logger observe.Logger) {
	r.Handle("/healthz", LivenessHandler())
	r.Handle("/readyz", ReadinessHandler(agg))
	r.Handle("/health", DetailedHandler(agg, logger))
	r.Handle("/health/simple", SimpleHandler(model, agg))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
