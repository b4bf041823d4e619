package modelruntime

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/resilience"
)

// Runtime is the ModelRuntime facade: the single choke-point every
// other package calls through for text analysis, image analysis,
// embedding, model listing, and health checks. It composes a Backend
// with a per-model circuit breaker, retry-with-fallback, an abortable
// timeout, and the preflight cache. It also holds a ModelMemoryManager,
// which none of its calls consult.
type Runtime struct {
	backend  Backend
	fallback Backend // optional CPU-only fallback backend; nil disables GPU->CPU fallback
	breakers *resilience.Registry
	memory   *ModelMemoryManager
	preflight *Preflight
	clk      clock.Clock

	tokenLimit    int
	charsPerToken int
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithFallback sets a secondary backend retried after the primary
// backend's retries are exhausted (e.g. a cloud backend falling back
// to a local ollama instance, or an ollama GPU-mode
// client falling back to a CPU-pinned one).
func WithFallback(b Backend) Option {
	return func(r *Runtime) { r.fallback = b }
}

// WithTokenBudget overrides the default embedding/analysis token
// truncation budget.
func WithTokenBudget(tokenLimit, charsPerToken int) Option {
	return func(r *Runtime) {
		r.tokenLimit = tokenLimit
		r.charsPerToken = charsPerToken
	}
}

// New builds a Runtime around backend.
func New(backend Backend, visionModel string, breakers *resilience.Registry, memory *ModelMemoryManager, clk clock.Clock, opts ...Option) *Runtime {
	if clk == nil {
		clk = clock.New()
	}
	if memory == nil {
		memory = NewModelMemoryManager(nil)
	}
	r := &Runtime{
		backend:       backend,
		breakers:      breakers,
		memory:        memory,
		clk:           clk,
		tokenLimit:    DefaultEmbeddingTokenLimit,
		charsPerToken: DefaultCharsPerToken,
	}
	r.preflight = NewPreflight(backend, visionModel, clk)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HealthCheck returns the preflight-cached health snapshot.
func (r *Runtime) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	snap, err := r.preflight.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Healthy {
		r.preflight.Invalidate()
	}
	return &HealthStatus{Healthy: snap.Healthy, Status: snap.Status}, nil
}

// ListModels returns the preflight-cached available model list.
func (r *Runtime) ListModels(ctx context.Context) ([]string, error) {
	snap, err := r.preflight.Get(ctx)
	if err != nil {
		return nil, err
	}
	return snap.AvailableModels, nil
}

// SupportsVision reports whether the active backend can analyze images.
func (r *Runtime) SupportsVision() bool { return r.backend.SupportsVision() }

const analysisTimeout = 90 * time.Second

// AnalyzeText runs a text completion through resilience (breaker +
// retry + timeout), truncating the prompt to the token budget first.
func (r *Runtime) AnalyzeText(ctx context.Context, req TextRequest) (*Response, error) {
	for i, msg := range req.Messages {
		req.Messages[i].Content = TruncateForTokenBudget(msg.Content, r.tokenLimit, r.charsPerToken)
	}

	breaker := r.breakers.Get(req.Model)
	call := func(ctx context.Context, backend Backend) (any, error) {
		var result *Response
		err := breaker.Run(func() error {
			out, err := resilience.WithTimeout(ctx, analysisTimeout, func(ctx context.Context) (any, error) {
				return backend.AnalyzeText(ctx, req)
			})
			if err != nil {
				return err
			}
			result = out.(*Response)
			return nil
		})
		return result, err
	}

	var fallbackFn resilience.FallbackFunc
	if r.fallback != nil {
		fallbackFn = func(ctx context.Context) (any, error) { return call(ctx, r.fallback) }
	}

	result, err := resilience.Retry(ctx, r.clk, resilience.DefaultRetryConfig, func(ctx context.Context) (any, error) {
		return call(ctx, r.backend)
	}, fallbackFn)
	if err != nil {
		return nil, fmt.Errorf("modelruntime: analyze_text: %w", err)
	}
	return result.(*Response), nil
}

// AnalyzeImage runs an image completion through the same resilience
// stack as AnalyzeText.
func (r *Runtime) AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error) {
	if !r.backend.SupportsVision() {
		return nil, fmt.Errorf("modelruntime: %w: backend %q has no vision support", ErrModelUnavailable, r.backend.Name())
	}
	req.Prompt = TruncateForTokenBudget(req.Prompt, r.tokenLimit, r.charsPerToken)

	breaker := r.breakers.Get(req.Model)
	call := func(ctx context.Context, backend Backend) (any, error) {
		var result *Response
		err := breaker.Run(func() error {
			out, err := resilience.WithTimeout(ctx, analysisTimeout, func(ctx context.Context) (any, error) {
				return backend.AnalyzeImage(ctx, req)
			})
			if err != nil {
				return err
			}
			result = out.(*Response)
			return nil
		})
		return result, err
	}

	var fallbackFn resilience.FallbackFunc
	if r.fallback != nil && r.fallback.SupportsVision() {
		fallbackFn = func(ctx context.Context) (any, error) { return call(ctx, r.fallback) }
	}

	result, err := resilience.Retry(ctx, r.clk, resilience.DefaultRetryConfig, func(ctx context.Context) (any, error) {
		return call(ctx, r.backend)
	}, fallbackFn)
	if err != nil {
		return nil, fmt.Errorf("modelruntime: analyze_image: %w", err)
	}
	return result.(*Response), nil
}

// EmbedText embeds text and validates the resulting vector is of the
// expected dimension and entirely finite.
func (r *Runtime) EmbedText(ctx context.Context, model, text string, expectedDims int) (*EmbedResponse, error) {
	text = TruncateForTokenBudget(text, r.tokenLimit, r.charsPerToken)

	breaker := r.breakers.Get(model)
	result, err := resilience.Retry(ctx, r.clk, resilience.DefaultRetryConfig, func(ctx context.Context) (any, error) {
		var out *EmbedResponse
		err := breaker.Run(func() error {
			raw, err := resilience.WithTimeout(ctx, analysisTimeout, func(ctx context.Context) (any, error) {
				return r.backend.EmbedText(ctx, model, text)
			})
			if err != nil {
				return err
			}
			out = raw.(*EmbedResponse)
			return nil
		})
		return out, err
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("modelruntime: embed_text: %w", err)
	}

	resp := result.(*EmbedResponse)
	if expectedDims > 0 && len(resp.Vector) != expectedDims {
		return nil, fmt.Errorf("modelruntime: %w: got %d, want %d", ErrDimensionMismatch, len(resp.Vector), expectedDims)
	}
	for _, v := range resp.Vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, ErrNonFiniteVector
		}
	}

	return resp, nil
}
