// Package scoring runs rule evaluation and AI classification over the active
// lead batch and publishes the combined results.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spigell/lead-scorer/internal/ai"
	"github.com/spigell/lead-scorer/internal/leads"
	"github.com/spigell/lead-scorer/internal/logger"
	"github.com/spigell/lead-scorer/internal/rules"
	"github.com/spigell/lead-scorer/internal/session"
)

// DefaultConcurrency bounds in-flight classifications when none is configured.
const DefaultConcurrency = 4

// Config tunes a scoring run.
type Config struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// RequestsPerSecond throttles classification starts. Zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
	Burst             int     `mapstructure:"burst"`
}

// Summary describes a finished run.
type Summary struct {
	RunID    string        `json:"run_id"`
	Leads    int           `json:"leads"`
	Degraded int           `json:"degraded"`
	High     int           `json:"high"`
	Medium   int           `json:"medium"`
	Low      int           `json:"low"`
	Duration time.Duration `json:"duration"`
}

// Orchestrator scores the session's lead batch against its offer.
type Orchestrator struct {
	session     *session.Session
	scorer      *rules.Scorer
	guard       *ai.Guard
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// New wires an orchestrator. A nil scorer uses the default policy.
func New(s *session.Session, scorer *rules.Scorer, classifier ai.Classifier, cfg Config, log *zap.Logger) *Orchestrator {
	if scorer == nil {
		scorer = rules.NewScorer(rules.DefaultPolicy())
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = concurrency
	}

	log = logger.WithFields(log).Named("scoring")

	return &Orchestrator{
		session:     s,
		scorer:      scorer,
		guard:       ai.NewGuard(classifier, cfg.Timeout, log),
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      log,
	}
}

// Run scores every lead of the current batch and publishes the results.
// Output is in upload order. Per-lead classification failures degrade that
// lead only; the run fails only on missing inputs, a concurrent run, a
// cancelled context or inputs replaced while the run was in flight.
func (o *Orchestrator) Run(ctx context.Context) (leads.Results, Summary, error) {
	end, err := o.session.BeginRun()
	if err != nil {
		return nil, Summary{}, err
	}
	defer end()

	snap, err := o.session.Snapshot()
	if err != nil {
		return nil, Summary{}, err
	}

	runID := uuid.NewString()
	log := logger.WithRun(o.logger, runID)
	start := time.Now()

	log.Info("Scoring run started",
		zap.String("offer", snap.Offer.Name),
		zap.Int("leads", len(snap.Leads)),
		zap.Int("concurrency", o.concurrency),
	)

	results, err := o.score(ctx, snap)
	if err != nil {
		log.Warn("Scoring run aborted", zap.Error(err))
		return nil, Summary{}, err
	}

	if err := o.session.Publish(snap, results); err != nil {
		log.Warn("Scoring run discarded", zap.Error(err))
		return nil, Summary{}, err
	}

	summary := summarize(runID, results, time.Since(start))
	log.Info("Scoring run finished",
		zap.Int("leads", summary.Leads),
		zap.Int("degraded", summary.Degraded),
		zap.Int("high", summary.High),
		zap.Int("medium", summary.Medium),
		zap.Int("low", summary.Low),
		zap.Duration("duration", summary.Duration),
	)

	return results, summary, nil
}

func (o *Orchestrator) score(ctx context.Context, snap session.Snapshot) (leads.Results, error) {
	results := make(leads.Results, len(snap.Leads))

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, lead := range snap.Leads {
		g.Go(func() error {
			scored, err := o.scoreOne(ctx, i, lead, snap.Offer)
			if err != nil {
				return err
			}
			results[i] = scored
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scoring run: %w", err)
	}

	return results, nil
}

func (o *Orchestrator) scoreOne(ctx context.Context, position int, lead leads.Lead, offer leads.Offer) (leads.ScoredLead, error) {
	ruleScore := o.scorer.Score(lead, offer)

	var res ai.Result
	if err := o.limiter.Wait(ctx); err != nil {
		res = ai.Fallback(fmt.Errorf("waiting for rate limiter: %w", err))
	} else {
		res = o.guard.Classify(ctx, lead, offer)
	}

	scored, err := leads.NewScoredLead(position, lead, ruleScore, res.Intent, res.Reasoning)
	if err != nil {
		return leads.ScoredLead{}, fmt.Errorf("scoring lead %d: %w", position, err)
	}
	scored.Degraded = res.Degraded
	scored.DegradedReason = res.Error

	return scored, nil
}

func summarize(runID string, results leads.Results, d time.Duration) Summary {
	s := Summary{
		RunID:    runID,
		Leads:    len(results),
		Degraded: results.Degraded(),
		Duration: d,
	}
	for _, r := range results {
		switch r.Intent {
		case leads.IntentHigh:
			s.High++
		case leads.IntentMedium:
			s.Medium++
		case leads.IntentLow:
			s.Low++
		}
	}
	return s
}
