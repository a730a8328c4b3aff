package transliterate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prooftamil/ime-gateway/internal/engine"
	"github.com/prooftamil/ime-gateway/internal/reqctx"
)

// Engine call outcomes reported to the Observer.
const (
	EngineOK      = "ok"
	EngineError   = "error"
	EngineTimeout = "timeout"
)

var errEnginePanic = errors.New("engine panicked")

// Observer receives orchestration events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveEngineCall(result string)
	ObserveCacheLookup(hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveEngineCall(string) {}
func (nopObserver) ObserveCacheLookup(bool) {}

// Limits bounds accepted queries.
type Limits struct {
	MaxTextLen int
	MaxLimit   int
	Modes      []string
}

// DefaultLimits matches the service defaults.
var DefaultLimits = Limits{
	MaxTextLen: 64,
	MaxLimit:   12,
	Modes:      []string{ModeSpoken, ModeFormal},
}

// Option configures a Service.
type Option func(*Service)

// WithLimits sets query bounds.
func WithLimits(l Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

// WithTimeout bounds each engine call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithCache enables result caching.
func WithCache(c *Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithFreqDict scores candidates the engine left unscored.
func WithFreqDict(d *FreqDict) Option {
	return func(s *Service) {
		s.freq = d
	}
}

// WithObserver reports engine and cache events.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service is the transliteration orchestrator. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	engine   engine.Engine
	limits   Limits
	timeout  time.Duration
	cache    *Cache
	freq     *FreqDict
	observer Observer
	logger   *slog.Logger
}

// NewService creates an orchestrator in front of eng.
func NewService(eng engine.Engine, opts ...Option) *Service {
	if eng == nil {
		eng = engine.Unconfigured
	}
	s := &Service{
		engine:   eng,
		limits:   DefaultLimits,
		timeout:  5 * time.Second,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheEnabled reports whether results are cached.
func (s *Service) CacheEnabled() bool {
	return s.cache != nil
}

// Validate normalizes q and reports whether it is acceptable. The returned
// query has its text trimmed.
func (s *Service) Validate(q Query) (Query, bool) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" || utf8.RuneCountInString(q.Text) > s.limits.MaxTextLen {
		return q, false
	}
	if !slices.Contains(s.limits.Modes, q.Mode) {
		return q, false
	}
	if q.Limit < 1 || q.Limit > s.limits.MaxLimit {
		return q, false
	}
	return q, true
}

// Handle validates q, consults the engine and returns ranked suggestions.
// Engine errors are logged and reported as KindEngineFailure only.
func (s *Service) Handle(ctx context.Context, q Query) Result {
	requestID := reqctx.RequestID(ctx)

	q, ok := s.Validate(q)
	if !ok {
		s.logger.Warn("invalid transliteration query",
			slog.String("request_id", requestID),
			slog.Int("text_len", utf8.RuneCountInString(q.Text)),
			slog.String("mode", q.Mode),
			slog.Int("limit", q.Limit))
		return failed(KindInvalidRequest)
	}

	suggestions, err := s.suggest(ctx, q)
	if err != nil {
		s.logger.Error("transliteration engine failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return failed(KindEngineFailure)
	}

	return Result{Success: true, Suggestions: suggestions}
}

func (s *Service) suggest(ctx context.Context, q Query) ([]Suggestion, error) {
	if s.cache == nil {
		return s.compute(ctx, q)
	}

	key := CacheKey(q.Text, q.Mode, q.Limit)
	if cached, ok := s.cache.Get(key); ok {
		s.observer.ObserveCacheLookup(true)
		return cached, nil
	}
	s.observer.ObserveCacheLookup(false)

	// The shared call must outlive any single waiter that gives up early.
	shared := context.WithoutCancel(ctx)
	return s.cache.Load(ctx, key, func() ([]Suggestion, error) {
		return s.compute(shared, q)
	})
}

func (s *Service) compute(ctx context.Context, q Query) ([]Suggestion, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	candidates, err := s.call(callCtx, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.observer.ObserveEngineCall(EngineTimeout)
		} else {
			s.observer.ObserveEngineCall(EngineError)
		}
		return nil, err
	}
	s.observer.ObserveEngineCall(EngineOK)

	return s.rank(candidates, q.Limit), nil
}

type callResult struct {
	candidates []engine.Candidate
	err        error
}

// call runs the engine and returns when it finishes or ctx is done,
// whichever comes first. An engine that ignores ctx is abandoned and its
// late result discarded. A panic in the engine is returned as an error.
func (s *Service) call(ctx context.Context, q Query) ([]engine.Candidate, error) {
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("%w: %v", errEnginePanic, r)}
			}
		}()
		candidates, err := s.engine.Transliterate(ctx, q.Text, q.Mode, q.Limit)
		done <- callResult{candidates: candidates, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return res.candidates, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// rank drops non-Tamil candidates, fills missing scores, orders by
// descending score keeping engine order for ties, and truncates to limit.
func (s *Service) rank(candidates []engine.Candidate, limit int) []Suggestion {
	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		ta := c.Tamil
		if ta == "" {
			ta = c.Word
		}
		if !isTamil(ta) {
			continue
		}
		score := c.Score
		if score <= 0 {
			score = s.freq.Score(ta)
		}
		out = append(out, Suggestion{Word: c.Word, Ta: ta, Score: score})
	}

	slices.SortStableFunc(out, func(a, b Suggestion) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Limits returns the configured query bounds.
func (s *Service) Limits() Limits {
	return s.limits
}
