package health

import (
	"context"
	"fmt"
	"time"
)

// ModelState is the view of the inference engine the model probe needs.
type ModelState interface {
	IsHealthy() bool
	ModelName() string
}

// ModelChecker reports whether the inference model is loaded and usable.
type ModelChecker struct {
	model ModelState
	trial func(ctx context.Context) error
}

// NewModelChecker creates a model probe. trial, when non-nil, runs a small
// inference; its failure downgrades a loaded model to Degraded.
func NewModelChecker(model ModelState, trial func(ctx context.Context) error) *ModelChecker {
	return &ModelChecker{model: model, trial: trial}
}

// Name returns the name of this checker.
func (m *ModelChecker) Name() string {
	return "model"
}

// Check performs the model health check.
func (m *ModelChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()

	if m.model == nil || !m.model.IsHealthy() {
		return Unhealthy(m.Name(), "model not loaded or not healthy", ErrCheckFailed).
			WithDuration(time.Since(start))
	}

	if m.trial != nil {
		if err := m.trial(ctx); err != nil {
			return Degraded(m.Name(), fmt.Sprintf("model loaded but inference failed: %v", err)).
				WithDetails(map[string]any{"model_name": m.model.ModelName(), "model_loaded": true}).
				WithDuration(time.Since(start))
		}
	}

	return Healthy(m.Name(), "model is loaded and functional").
		WithDetails(map[string]any{
			"model_name":   m.model.ModelName(),
			"model_loaded": true,
		}).
		WithDuration(time.Since(start))
}
