package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonwraymond/sentimentd/alert"
	"github.com/jonwraymond/sentimentd/observe"
	"github.com/jonwraymond/sentimentd/sentiment"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// DefaultAlertWindow is used when GET /alerts has no hours parameter.
const DefaultAlertWindow = 24 * time.Hour

// MaxAlertHours bounds the hours parameter of GET /alerts.
const MaxAlertHours = 24 * 365

type analyzeRequest struct {
	Text string `json:"text"`
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

// AnalyzeResponse is the body of a successful POST /analyze.
type AnalyzeResponse struct {
	Text           string          `json:"text"`
	Sentiment      sentiment.Label `json:"sentiment"`
	Confidence     float64         `json:"confidence"`
	ProcessingTime float64         `json:"processing_time"`
}

// BatchResponse is the body of a successful POST /analyze/batch.
type BatchResponse struct {
	Results             []AnalyzeResponse `json:"results"`
	TotalCount          int               `json:"total_count"`
	TotalProcessingTime float64           `json:"total_processing_time"`
}

// AlertsResponse is the body of GET /alerts.
type AlertsResponse struct {
	Alerts []alert.Alert `json:"alerts"`
	Count  int           `json:"count"`
	Hours  float64       `json:"hours"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":     s.config.Name,
		"version":     s.config.Version,
		"description": Description,
		"docs":        "/docs",
		"health":      "/health",
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	text, err := s.validateText(req.Text)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Validation error", err.Error(), "VALIDATION_ERROR")
		return
	}

	s.logger.Info(ctx, "received sentiment analysis request",
		observe.F("request_id", observe.RequestIDFromContext(ctx)),
		observe.F("text_length", utf8.RuneCountInString(text)),
		observe.F("endpoint", "/analyze"),
	)

	if !s.available() {
		writeError(w, http.StatusServiceUnavailable, "Service unavailable", "Sentiment analysis service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	res, err := s.config.Engine.AnalyzeOne(ctx, text)
	if err != nil {
		if errors.Is(err, sentiment.ErrModelNotLoaded) {
			writeError(w, http.StatusServiceUnavailable, "Service unavailable", "Sentiment analysis service unavailable", "SERVICE_UNAVAILABLE")
			return
		}
		s.logger.Error(ctx, "sentiment analysis failed",
			observe.F("request_id", observe.RequestIDFromContext(ctx)),
			observe.Err(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error",
			fmt.Sprintf("Sentiment analysis failed: %v", err), "ANALYSIS_FAILED")
		return
	}

	s.logger.Info(ctx, "sentiment analysis completed",
		observe.F("request_id", observe.RequestIDFromContext(ctx)),
		observe.F("sentiment", string(res.Label)),
		observe.F("confidence", res.Confidence),
		observe.F("processing_time", res.Latency.Seconds()),
	)
	writeJSON(w, http.StatusOK, toResponse(text, res))
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	texts, err := s.validateBatch(req.Texts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Validation error", err.Error(), "VALIDATION_ERROR")
		return
	}

	if !s.available() {
		writeError(w, http.StatusServiceUnavailable, "Service unavailable", "Sentiment analysis service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	start := time.Now()
	results, err := s.config.Engine.AnalyzeMany(ctx, texts)
	if err != nil {
		s.logger.Error(ctx, "batch sentiment analysis failed", observe.Err(err))
		writeError(w, http.StatusInternalServerError, "Internal server error",
			fmt.Sprintf("Batch sentiment analysis failed: %v", err), "ANALYSIS_FAILED")
		return
	}

	out := BatchResponse{
		Results:             make([]AnalyzeResponse, len(results)),
		TotalCount:          len(results),
		TotalProcessingTime: time.Since(start).Seconds(),
	}
	for i, res := range results {
		out.Results[i] = toResponse(texts[i], res)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	window := DefaultAlertWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		// The negated comparison also rejects NaN.
		if err != nil || !(hours > 0 && hours <= MaxAlertHours) {
			writeError(w, http.StatusBadRequest, "Bad request",
				fmt.Sprintf("hours must be a positive number no greater than %d", MaxAlertHours), "INVALID_PARAMETER")
			return
		}
		window = time.Duration(hours * float64(time.Hour))
	}

	var alerts []alert.Alert
	if s.config.Alerts != nil {
		alerts = s.config.Alerts.RecentAlerts(window)
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	writeJSON(w, http.StatusOK, AlertsResponse{
		Alerts: alerts,
		Count:  len(alerts),
		Hours:  window.Hours(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.config.MetricsHandler == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Metrics disabled"})
		return
	}
	s.config.MetricsHandler.ServeHTTP(w, r)
}

func (s *Server) available() bool {
	return s.config.Engine != nil && s.config.Engine.IsHealthy()
}

// decode reads a JSON body, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", fmt.Sprintf("invalid JSON body: %v", err), "INVALID_JSON")
		return false
	}
	return true
}

func (s *Server) validateText(text string) (string, error) {
	if text == "" {
		return "", errors.New("text is required")
	}
	if utf8.RuneCountInString(text) > s.config.MaxTextLength {
		return "", fmt.Errorf("text length cannot exceed %d characters", s.config.MaxTextLength)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", errors.New("text cannot be empty")
	}
	return trimmed, nil
}

func (s *Server) validateBatch(texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, errors.New("text list cannot be empty")
	}
	if len(texts) > s.config.BatchSizeLimit {
		return nil, fmt.Errorf("batch size cannot exceed %d texts", s.config.BatchSizeLimit)
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		v, err := s.validateText(t)
		if err != nil {
			return nil, fmt.Errorf("texts[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func toResponse(text string, res sentiment.Result) AnalyzeResponse {
	return AnalyzeResponse{
		Text:           text,
		Sentiment:      res.Label,
		Confidence:     res.Confidence,
		ProcessingTime: res.Latency.Seconds(),
	}
}
