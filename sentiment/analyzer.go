package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/sentimentd/cache"
	"github.com/jonwraymond/sentimentd/observe"
)

// WarmupText is classified once by Load.
const WarmupText = "This is a test."

// Result is the outcome of analyzing one text.
type Result struct {
	Text       string        `json:"text"`
	Label      Label         `json:"sentiment"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"-"`
	Err        error         `json:"-"`
}

// Failed reports whether r is the sentinel for a failed batch item.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Engine is the inference surface used by the HTTP layer and health probes.
//
// Contract:
// - AnalyzeOne returns ErrModelNotLoaded before Load has succeeded.
// - AnalyzeMany never fails per item: failed items carry the sentinel
// NEGATIVE/0/0 result with Err set.
// - Implementations must be safe for concurrent use.
type Engine interface {
	AnalyzeOne(ctx context.Context, text string) (Result, error)
	AnalyzeMany(ctx context.Context, texts []string) ([]Result, error)
	IsHealthy() bool
}

// Config configures an Analyzer.
type Config struct {
	// ModelName identifies the model in logs, metrics and cache keys.
	// Default: "cardiffnlp/twitter-roberta-base-sentiment-latest"
	ModelName string

	// MaxTextLength is the rune limit applied after trimming.
	// Default: 512
	MaxTextLength int

	// BatchSizeLimit is the largest accepted batch.
	// Default: 10
	BatchSizeLimit int

	// Cache holds results when set. Nil disables caching.
	Cache cache.Cache

	// CachePolicy controls result TTLs.
	// Default: cache.DefaultPolicy()
	CachePolicy *cache.Policy

	Logger  observe.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer
}

// DefaultModelName is the model used when none is configured.
const DefaultModelName = "cardiffnlp/twitter-roberta-base-sentiment-latest"

// Analyzer turns classifier scores into normalized results.
type Analyzer struct {
	classifier Classifier
	config     Config
	loader     *cache.Loader
	keyer      cache.Keyer
	loaded     atomic.Bool
	logger     observe.Logger
	metrics    observe.Metrics
	tracer     observe.Tracer
}

// NewAnalyzer creates an Analyzer. It is not usable until Load succeeds.
func NewAnalyzer(classifier Classifier, cfg Config) *Analyzer {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 512
	}
	if cfg.BatchSizeLimit <= 0 {
		cfg.BatchSizeLimit = 10
	}
	policy := cache.DefaultPolicy()
	if cfg.CachePolicy != nil {
		policy = *cfg.CachePolicy
	}

	a := &Analyzer{
		classifier: classifier,
		config:     cfg,
		loader:     cache.NewLoader(cfg.Cache, policy),
		keyer:      cache.NewTextKeyer(),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
	}
	if a.logger == nil {
		a.logger = observe.NopLogger()
	}
	if a.metrics == nil {
		a.metrics = observe.NopMetrics()
	}
	if a.tracer == nil {
		a.tracer = observe.NopTracer()
	}
	return a
}

// Load warms the model with a test classification and marks it loaded.
func (a *Analyzer) Load(ctx context.Context) error {
	a.logger.Info(ctx, "loading sentiment model", observe.F("model_name", a.config.ModelName))
	start := time.Now()

	if _, err := a.classify(ctx, WarmupText); err != nil {
		a.logger.Error(ctx, "failed to load model", observe.F("model_name", a.config.ModelName), observe.Err(err))
		return fmt.Errorf("sentiment: warm up %s: %w", a.config.ModelName, err)
	}

	a.loaded.Store(true)
	a.logger.Info(ctx, "model loaded successfully",
		observe.F("model_name", a.config.ModelName),
		observe.F("load_time", time.Since(start).Seconds()),
	)
	return nil
}

// Loaded reports whether Load has succeeded.
func (a *Analyzer) Loaded() bool {
	return a.loaded.Load()
}

// IsHealthy reports whether the model is loaded and the classifier is
// reachable.
func (a *Analyzer) IsHealthy() bool {
	if !a.loaded.Load() || a.classifier == nil {
		return false
	}
	if h, ok := a.classifier.(interface{ Healthy() bool }); ok {
		return h.Healthy()
	}
	return true
}

// ModelName returns the configured model name.
func (a *Analyzer) ModelName() string {
	return a.config.ModelName
}

// BatchSizeLimit returns the largest accepted batch.
func (a *Analyzer) BatchSizeLimit() int {
	return a.config.BatchSizeLimit
}

// Trial runs one uncached classification for the model health probe.
func (a *Analyzer) Trial(ctx context.Context) error {
	_, err := a.classify(ctx, WarmupText)
	return err
}

// AnalyzeOne classifies a single text.
func (a *Analyzer) AnalyzeOne(ctx context.Context, text string) (Result, error) {
	if !a.IsHealthy() {
		return Result{}, ErrModelNotLoaded
	}

	ctx, span := a.tracer.StartSpan(ctx, observe.SpanAnalyze,
		attribute.String("model", a.config.ModelName),
		attribute.Int("text_length", len(text)),
	)

	start := time.Now()
	res, err := a.analyze(ctx, text)
	res.Latency = time.Since(start)

	a.metrics.RecordInference(ctx, a.config.ModelName, 1, res.Latency, err)
	a.tracer.EndSpan(span, err)

	if err != nil {
		a.logger.Error(ctx, "sentiment analysis failed", observe.F("text_length", len(text)), observe.Err(err))
		return Result{}, err
	}
	a.logger.Debug(ctx, "sentiment analysis completed",
		observe.F("sentiment", string(res.Label)),
		observe.F("confidence", res.Confidence),
		observe.F("processing_time", res.Latency.Seconds()),
	)
	return res, nil
}

// AnalyzeMany classifies texts in order. A failed item yields a NEGATIVE
// result with zero confidence and latency and Err set; the batch as a
// whole fails only when it exceeds the limit.
func (a *Analyzer) AnalyzeMany(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) > a.config.BatchSizeLimit {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(texts), a.config.BatchSizeLimit)
	}

	results := make([]Result, 0, len(texts))
	for i, text := range texts {
		res, err := a.AnalyzeOne(ctx, text)
		if err != nil {
			a.logger.Error(ctx, "failed to analyze batch item", observe.F("index", i), observe.Err(err))
			res = Result{Text: text, Label: LabelNegative, Err: err}
		}
		results = append(results, res)
	}
	return results, nil
}

type cachedResult struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (a *Analyzer) analyze(ctx context.Context, text string) (Result, error) {
	processed, err := a.preprocess(ctx, text)
	if err != nil {
		return Result{}, err
	}

	key := a.keyer.Key(a.config.ModelName, processed)
	raw, hit, err := a.loader.Load(ctx, key, func(ctx context.Context) ([]byte, error) {
		scores, err := a.classify(ctx, processed)
		if err != nil {
			return nil, err
		}
		label, conf, err := Postprocess(scores)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cachedResult{Label: label, Confidence: conf})
	})
	if err != nil {
		return Result{}, err
	}

	var cr cachedResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		a.loader.Forget(ctx, key)
		return Result{}, fmt.Errorf("sentiment: decode cached result: %w", err)
	}
	if hit {
		a.logger.Debug(ctx, "sentiment cache hit", observe.F("model_name", a.config.ModelName))
	}
	return Result{Text: processed, Label: cr.Label, Confidence: cr.Confidence}, nil
}

func (a *Analyzer) classify(ctx context.Context, text string) ([]Score, error) {
	if a.classifier == nil {
		return nil, ErrModelNotLoaded
	}
	return a.classifier.Classify(ctx, text)
}

// preprocess trims text and truncates it to MaxTextLength runes.
func (a *Analyzer) preprocess(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if n := utf8.RuneCountInString(text); n > a.config.MaxTextLength {
		a.logger.Warn(ctx, "text truncated",
			observe.F("original_length", n),
			observe.F("max_length", a.config.MaxTextLength),
		)
		text = string([]rune(text)[:a.config.MaxTextLength])
	}
	return text, nil
}

var _ Engine = (*Analyzer)(nil)
