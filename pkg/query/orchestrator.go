// Package query coordinates a single question end to end: validation, cache
// lookup, the pooled browser path with its direct-session fallback, and the
// bookkeeping that every outcome leaves behind.
package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/notearc/nbq/pkg/browser"
	"github.com/notearc/nbq/pkg/cache"
	"github.com/notearc/nbq/pkg/detector"
	"github.com/notearc/nbq/pkg/history"
	"github.com/notearc/nbq/pkg/logging"
	"github.com/notearc/nbq/pkg/metrics"
)

// SessionPool is the slice of browser.Pool the orchestrator needs.
type SessionPool interface {
	Get(ctx context.Context, target string, headless bool) (browser.QuerySession, error)
	CloseAll(ctx context.Context) error
}

// DirectFunc runs one question on a throwaway session, bypassing the pool.
type DirectFunc func(ctx context.Context, question, target string) (string, error)

// Options tune a single Ask call.
type Options struct {
	UseCache bool
	UsePool  bool
}

// Result is what Ask hands back on success.
type Result struct {
	Answer   string
	CacheHit bool
	Pooled   bool
	Duration time.Duration
}

// Deps wires the orchestrator. Cache, Metrics and History may be nil; Pool,
// Direct and Detector must be set.
type Deps struct {
	Pool     SessionPool
	Direct   DirectFunc
	Detector *detector.Detector
	Cache    *cache.Cache
	Metrics  *metrics.Recorder
	History  *history.Store

	// MaxParallel caps concurrent browser queries; values below one
	// mean a single slot.
	MaxParallel int
	Headless    bool
}

// Orchestrator executes questions against notebook targets.
type Orchestrator struct {
	deps   Deps
	slots  *semaphore.Weighted
	logger *logging.Logger
}

// New builds an orchestrator over deps.
func New(deps Deps) *Orchestrator {
	parallel := deps.MaxParallel
	if parallel < 1 {
		parallel = 1
	}
	logger, _ := logging.NewLogger("query")
	return &Orchestrator{
		deps:   deps,
		slots:  semaphore.NewWeighted(int64(parallel)),
		logger: logger,
	}
}

// Ask answers one question against target. Cached answers return without
// touching a browser. A pooled run that fails recoverably tears the whole
// pool down and retries exactly once on a throwaway session.
func (o *Orchestrator) Ask(ctx context.Context, question, target string, opts Options) (*Result, error) {
	if err := ValidateQuestion(question); err != nil {
		o.finish(question, target, nil, err)
		return nil, err
	}
	if err := ValidateTarget(target); err != nil {
		o.finish(question, target, nil, err)
		return nil, err
	}

	if opts.UseCache && o.deps.Cache != nil {
		if answer, ok := o.deps.Cache.Get(question, target); ok {
			result := &Result{Answer: answer, CacheHit: true}
			o.finish(question, target, result, nil)
			return result, nil
		}
	}

	if err := o.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a query slot: %w", err)
	}
	defer o.slots.Release(1)

	start := time.Now()
	result := &Result{Pooled: opts.UsePool}

	var answer string
	var err error
	if opts.UsePool {
		answer, err = o.runPooled(ctx, question, target)
		if err != nil && recoverable(err) {
			o.logger.Warnf("pooled query failed (%v), resetting pool and retrying direct", err)
			if closeErr := o.deps.Pool.CloseAll(ctx); closeErr != nil {
				o.logger.Errorf("pool reset: %v", closeErr)
			}
			result.Pooled = false
			answer, err = o.deps.Direct(ctx, question, target)
		}
	} else {
		answer, err = o.deps.Direct(ctx, question, target)
	}

	result.Duration = time.Since(start)
	if err != nil {
		o.finish(question, target, result, err)
		return nil, err
	}
	result.Answer = answer

	if opts.UseCache && o.deps.Cache != nil {
		if cacheErr := o.deps.Cache.Set(question, answer, target); cacheErr != nil {
			o.logger.Warnf("caching answer: %v", cacheErr)
		}
	}
	o.finish(question, target, result, nil)
	return result, nil
}

// runPooled executes the question on the shared session for target. The
// pool has already validated auth and repointed the session.
func (o *Orchestrator) runPooled(ctx context.Context, question, target string) (string, error) {
	session, err := o.deps.Pool.Get(ctx, target, o.deps.Headless)
	if err != nil {
		return "", err
	}

	previous, err := session.AnswerText(ctx)
	if err != nil {
		return "", err
	}
	if err := session.Submit(ctx, question); err != nil {
		return "", err
	}
	return o.deps.Detector.Detect(ctx, session, previous)
}

// finish journals the outcome to metrics and history. Both sinks are
// optional and never fail the query.
func (o *Orchestrator) finish(question, target string, result *Result, err error) {
	var duration time.Duration
	var cacheHit, pooled bool
	var answer string
	if result != nil {
		duration = result.Duration
		cacheHit = result.CacheHit
		pooled = result.Pooled
		answer = result.Answer
	}

	kind := ""
	if err != nil {
		kind = Classify(err)
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.Record(metrics.Record{
			Question:  question,
			Target:    target,
			Duration:  duration,
			CacheHit:  cacheHit,
			Pooled:    pooled,
			Success:   err == nil,
			ErrorKind: kind,
		})
	}
	if o.deps.History != nil {
		rec := &history.Record{
			Question:   question,
			Answer:     answer,
			Target:     target,
			DurationMs: duration.Milliseconds(),
			CacheHit:   cacheHit,
			Pooled:     pooled,
			Success:    err == nil,
			ErrorKind:  kind,
		}
		if histErr := o.deps.History.Append(rec); histErr != nil {
			o.logger.Warnf("recording history: %v", histErr)
		}
	}
}
