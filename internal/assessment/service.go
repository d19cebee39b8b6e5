package assessment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"momcare/apps/backend/internal/aianalysis"
	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/observability"
	"momcare/apps/backend/internal/pregnancy"
)

const defaultAITimeout = 30 * time.Second

type Options struct {
	// Analyzer is nil when AI analysis is disabled; assessments are then
	// stored without an AI part.
	Analyzer aianalysis.Analyzer
	// AITimeout bounds analyze and recommend together; they run concurrently.
	AITimeout time.Duration
	// FallbackRetry, when positive, stops a stored fallback assessment from
	// being reused once it is older than this.
	FallbackRetry time.Duration
	Now           func() time.Time
	Logger        zerolog.Logger
	// Meter defaults to the process-wide "assessment" meter.
	Meter metric.Meter
}

// Service decides per request whether the stored assessment can be reused
// or has to be recomputed.
type Service struct {
	profiles      ProfileReader
	pregnancies   PregnancyReader
	store         Store
	evaluator     *healthrisk.Evaluator
	analyzer      aianalysis.Analyzer
	resolver      *aianalysis.Resolver
	aiTimeout     time.Duration
	fallbackRetry time.Duration
	now           func() time.Time
	log           zerolog.Logger
	outcomes      metric.Int64Counter
}

func NewService(profiles ProfileReader, pregnancies PregnancyReader, store Store, evaluator *healthrisk.Evaluator, opts Options) *Service {
	if opts.AITimeout <= 0 {
		opts.AITimeout = defaultAITimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Meter == nil {
		opts.Meter = observability.Meter("assessment")
	}
	log := opts.Logger.With().Str("component", "assessment").Logger()
	return &Service{
		profiles:      profiles,
		pregnancies:   pregnancies,
		store:         store,
		evaluator:     evaluator,
		analyzer:      opts.Analyzer,
		resolver:      aianalysis.NewResolver(opts.Logger),
		aiTimeout:     opts.AITimeout,
		fallbackRetry: opts.FallbackRetry,
		now:           opts.Now,
		log:           log,
		outcomes: observability.Int64Counter(
			opts.Meter,
			"assessment.requests",
			"Assessment requests by cache outcome",
		),
	}
}

// GetAssessment returns the stored assessment while the profile fingerprint
// still matches it, and recomputes otherwise.
func (s *Service) GetAssessment(ctx context.Context, userID string) (*RiskAssessment, error) {
	return s.assess(ctx, userID, false)
}

// RefreshAssessment always recomputes, AI included.
func (s *Service) RefreshAssessment(ctx context.Context, userID string) (*RiskAssessment, error) {
	return s.assess(ctx, userID, true)
}

// PregnancyProgress reports the progress for the user's pregnancy record.
func (s *Service) PregnancyProgress(ctx context.Context, userID string) (pregnancy.Progress, pregnancy.Stage, error) {
	record, err := s.pregnancies.PregnancyForUser(ctx, userID)
	if err != nil {
		return pregnancy.Progress{}, "", err
	}
	progress := pregnancy.Compute(record.LMP, record.DueDate, s.now())
	return progress, pregnancy.StageFor(progress.Week), nil
}

func (s *Service) assess(ctx context.Context, userID string, force bool) (*RiskAssessment, error) {
	snapshot, err := s.profiles.ProfileForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Microsecond)

	pregnancyContext, err := s.pregnancyContext(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	eval := s.evaluator.Evaluate(snapshot)
	fingerprint := healthrisk.Fingerprint(snapshot)

	stored, err := s.store.GetByProfile(ctx, snapshot.ProfileID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	logger := s.log.With().
		Str("user_id", userID).
		Str("health_profile_id", snapshot.ProfileID).
		Logger()

	outcome := "created"
	if stored != nil {
		reason := s.staleReason(stored, fingerprint, now)
		if reason == "" && !force {
			s.record(ctx, "hit")
			logger.Debug().Str("assessment_id", stored.ID).Msg("reusing stored assessment")
			return stored, nil
		}
		if force {
			reason = "forced"
		}
		outcome = reason
	}
	s.record(ctx, outcome)
	logger.Info().Str("outcome", outcome).Msg("computing assessment")

	insight := s.runAI(ctx, snapshot, pregnancyContext, eval)
	next := &RiskAssessment{
		UserID:          userID,
		HealthProfileID: snapshot.ProfileID,
		Evaluation:      eval,
		AI:              insight,
		IsAIEnhanced:    insight != nil && insight.Enhanced(),
		HealthDataHash:  fingerprint,
		HashVersion:     healthrisk.FingerprintVersion,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if insight != nil && !insight.Enhanced() {
		logger.Warn().Str("reason", insight.FallbackReason).Msg("assessment stored with fallback ai content")
	}

	if stored != nil {
		next.ID = stored.ID
		next.CreatedAt = stored.CreatedAt
		if err := s.store.Update(ctx, next); err != nil {
			return nil, err
		}
		return next, nil
	}

	next.ID = uuid.NewString()
	err = s.store.Insert(ctx, next)
	if errors.Is(err, ErrDuplicate) {
		// A concurrent request for the same profile inserted first.
		logger.Info().Msg("assessment inserted concurrently; returning stored row")
		return s.store.GetByProfile(ctx, snapshot.ProfileID)
	}
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Service) pregnancyContext(ctx context.Context, userID string, now time.Time) (*pregnancy.Context, error) {
	record, err := s.pregnancies.PregnancyForUser(ctx, userID)
	if errors.Is(err, ErrPregnancyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pregnancy.ContextFor(&record, now), nil
}

// staleReason is empty when the stored assessment can be returned as is.
func (s *Service) staleReason(stored *RiskAssessment, fingerprint string, now time.Time) string {
	switch {
	case stored.HashVersion != healthrisk.FingerprintVersion:
		return "hash_version_changed"
	case stored.HealthDataHash != fingerprint:
		return "hash_changed"
	case s.fallbackExpired(stored, now):
		return "fallback_expired"
	default:
		return ""
	}
}

func (s *Service) fallbackExpired(stored *RiskAssessment, now time.Time) bool {
	if s.fallbackRetry <= 0 || s.analyzer == nil || stored.IsAIEnhanced {
		return false
	}
	return now.Sub(stored.UpdatedAt) >= s.fallbackRetry
}

// runAI issues analyze and recommend concurrently under one timeout. Each
// result goes through the resolver, so failures never leave this function.
func (s *Service) runAI(ctx context.Context, snapshot healthrisk.Snapshot, pc *pregnancy.Context, eval healthrisk.Evaluation) *aianalysis.Insight {
	if s.analyzer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	// A failure in one call does not cancel the other.
	var (
		wg                   sync.WaitGroup
		analysisRaw, recsRaw string
		analysisErr, recsErr error
	)
	wg.Go(func() {
		analysisRaw, analysisErr = s.analyzer.Analyze(ctx, snapshot, pc)
	})
	wg.Go(func() {
		recsRaw, recsErr = s.analyzer.Recommend(ctx, snapshot, pc, eval)
	})
	wg.Wait()

	insight := aianalysis.Combine(
		s.resolver.ResolveAnalysis(analysisRaw, analysisErr, eval),
		s.resolver.ResolveRecommendations(recsRaw, recsErr, eval),
	)
	return &insight
}

func (s *Service) record(ctx context.Context, outcome string) {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("assessment.outcome", outcome)))
}
