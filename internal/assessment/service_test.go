package assessment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momcare/apps/backend/internal/aianalysis"
	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/pregnancy"
)

const testAnalysis = `{"overall_assessment": "Low overall risk.",
  "detailed_analyses": [{"category": "BMI", "data_value": "25.7", "analysis": "Slightly high.", "impact": "Minor.", "recommendation": "Watch diet.", "severity": "low"}],
  "comprehensive_recommendation": "Routine care.", "risk_score": 3, "risk_level": "low"}`

const testRecommendations = `{"category_recommendations": [{"category": "Nutrition", "priority": "high", "description": "Eat well.", "action_items": ["Folic acid"]}],
  "diet_plan": "Balanced.", "exercise_plan": "Walk.", "lifestyle_adjustments": "Rest.", "monitoring_advice": "Weigh weekly.", "warning_signs": ["Bleeding"]}`

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]healthrisk.Snapshot
}

func (f *fakeProfiles) ProfileForUser(_ context.Context, userID string) (healthrisk.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.profiles[userID]
	if !ok {
		return healthrisk.Snapshot{}, ErrProfileNotFound
	}
	return s, nil
}

func (f *fakeProfiles) set(s healthrisk.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[s.UserID] = s
}

type fakePregnancies struct {
	records map[string]pregnancy.Record
	err     error
}

func (f *fakePregnancies) PregnancyForUser(_ context.Context, userID string) (pregnancy.Record, error) {
	if f.err != nil {
		return pregnancy.Record{}, f.err
	}
	r, ok := f.records[userID]
	if !ok {
		return pregnancy.Record{}, ErrPregnancyNotFound
	}
	return r, nil
}

type memStore struct {
	mu        sync.Mutex
	rows      map[string]RiskAssessment
	inserts   int
	updates   int
	getErr    error
	insertErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]RiskAssessment{}}
}

func (m *memStore) GetByProfile(_ context.Context, id string) (*RiskAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (m *memStore) Insert(_ context.Context, a *RiskAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.rows[a.HealthProfileID]; ok {
		return ErrDuplicate
	}
	m.inserts++
	m.rows[a.HealthProfileID] = *a
	return nil
}

func (m *memStore) Update(_ context.Context, a *RiskAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.rows[a.HealthProfileID]; !ok {
		return ErrNotFound
	}
	m.updates++
	m.rows[a.HealthProfileID] = *a
	return nil
}

type fakeAnalyzer struct {
	analyzeCalls   atomic.Int32
	recommendCalls atomic.Int32
	analysis       string
	recs           string
	err            error
	block          bool
	lastContext    *pregnancy.Context
	mu             sync.Mutex
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, _ healthrisk.Snapshot, pc *pregnancy.Context) (string, error) {
	f.analyzeCalls.Add(1)
	f.mu.Lock()
	f.lastContext = pc
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.analysis, f.err
}

func (f *fakeAnalyzer) Recommend(ctx context.Context, _ healthrisk.Snapshot, _ *pregnancy.Context, _ healthrisk.Evaluation) (string, error) {
	f.recommendCalls.Add(1)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.recs, f.err
}

func (f *fakeAnalyzer) Available(context.Context) bool { return f.err == nil }

type harness struct {
	profiles *fakeProfiles
	store    *memStore
	analyzer *fakeAnalyzer
	clock    time.Time
	service  *Service
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		profiles: &fakeProfiles{profiles: map[string]healthrisk.Snapshot{}},
		store:    newMemStore(),
		analyzer: &fakeAnalyzer{analysis: testAnalysis, recs: testRecommendations},
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	h.profiles.set(healthrisk.Snapshot{
		ProfileID:       "profile-1",
		UserID:          "user-1",
		HeightCm:        165,
		CurrentWeightKg: 70,
		Age:             29,
	})
	lmp := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	pregnancies := &fakePregnancies{records: map[string]pregnancy.Record{
		"user-1": {UserID: "user-1", LMP: &lmp},
	}}
	opts := Options{
		Analyzer:  h.analyzer,
		AITimeout: time.Second,
		Now:       func() time.Time { return h.clock },
		Logger:    zerolog.Nop(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	h.service = NewService(h.profiles, pregnancies, h.store, healthrisk.NewEvaluator(healthrisk.DefaultPolicy()), opts)
	return h
}

func TestGetAssessmentCreatesAndThenReuses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, first.IsAIEnhanced)
	require.NotNil(t, first.AI)
	assert.Equal(t, aianalysis.SourceModel, first.AI.Source)
	assert.Equal(t, healthrisk.BMIOverweight, first.Evaluation.BMICategory)
	assert.Len(t, first.HealthDataHash, 64)
	assert.Equal(t, healthrisk.FingerprintVersion, first.HashVersion)

	h.clock = h.clock.Add(time.Hour)
	second, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), h.analyzer.analyzeCalls.Load())
	assert.Equal(t, int32(1), h.analyzer.recommendCalls.Load())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.HealthDataHash, second.HealthDataHash)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, 1, h.store.inserts)
	assert.Zero(t, h.store.updates)
}

func TestPregnancyContextReachesAnalyzer(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.GetAssessment(context.Background(), "user-1")
	require.NoError(t, err)

	h.analyzer.mu.Lock()
	defer h.analyzer.mu.Unlock()
	require.NotNil(t, h.analyzer.lastContext)
	assert.Equal(t, 13, h.analyzer.lastContext.CurrentWeek)
	assert.Equal(t, pregnancy.StageEarly, h.analyzer.lastContext.Stage)
}

func TestProfileChangeTriggersRecompute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)

	changed := healthrisk.Snapshot{ProfileID: "profile-1", UserID: "user-1", HeightCm: 165, CurrentWeightKg: 72, Age: 29}
	h.profiles.set(changed)
	h.clock = h.clock.Add(24 * time.Hour)

	second, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), h.analyzer.analyzeCalls.Load())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.NotEqual(t, first.HealthDataHash, second.HealthDataHash)
	assert.Equal(t, healthrisk.Fingerprint(changed), second.HealthDataHash)
	assert.Equal(t, 1, h.store.updates)
}

func TestRefreshAlwaysRecomputes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)
	_, err = h.service.RefreshAssessment(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), h.analyzer.analyzeCalls.Load())
	assert.Equal(t, 1, h.store.updates)
}

func TestStaleHashVersionTriggersRecompute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)
	old := *first
	old.HashVersion = healthrisk.FingerprintVersion - 1
	h.store.rows["profile-1"] = old

	_, err = h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), h.analyzer.analyzeCalls.Load())
}

func TestAIFailureStillReturnsCompleteAssessment(t *testing.T) {
	h := newHarness(t)
	h.analyzer.err = aianalysis.ErrUnavailable

	got, err := h.service.GetAssessment(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, got.IsAIEnhanced)
	require.NotNil(t, got.AI)
	assert.Equal(t, aianalysis.SourceFallback, got.AI.Source)
	assert.NotEmpty(t, got.AI.Analysis.OverallAssessment)
	assert.NotEmpty(t, got.AI.Analysis.DetailedAnalyses)
	assert.NotEmpty(t, got.AI.Recommendations.CategoryRecommendations)
	assert.True(t, got.Evaluation.Valid())
}

func TestPartialAIResultIsNotEnhanced(t *testing.T) {
	h := newHarness(t)
	h.analyzer.recs = "sorry, I cannot help"

	got, err := h.service.GetAssessment(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, got.IsAIEnhanced)
	assert.Equal(t, "Low overall risk.", got.AI.Analysis.OverallAssessment)
}

func TestAITimeoutFallsBack(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.AITimeout = 30 * time.Millisecond })
	h.analyzer.block = true

	start := time.Now()
	got, err := h.service.GetAssessment(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, got.IsAIEnhanced)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDisabledAIStoresDeterministicOnly(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Analyzer = nil })

	got, err := h.service.GetAssessment(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Nil(t, got.AI)
	assert.False(t, got.IsAIEnhanced)
	assert.True(t, got.Evaluation.Valid())
}

func TestFallbackRetryWindow(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.FallbackRetry = 30 * time.Minute })
	ctx := context.Background()
	h.analyzer.err = aianalysis.ErrUnavailable

	_, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)

	h.clock = h.clock.Add(10 * time.Minute)
	_, err = h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.analyzer.analyzeCalls.Load())

	h.analyzer.err = nil
	h.clock = h.clock.Add(30 * time.Minute)
	got, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.analyzer.analyzeCalls.Load())
	assert.True(t, got.IsAIEnhanced)
}

func TestFallbackIsReusedWithoutRetryWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.analyzer.err = aianalysis.ErrUnavailable

	_, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)
	h.clock = h.clock.Add(48 * time.Hour)
	got, err := h.service.GetAssessment(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), h.analyzer.analyzeCalls.Load())
	assert.False(t, got.IsAIEnhanced)
}

func TestMissingProfileIsNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.GetAssessment(context.Background(), "nobody")

	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.Zero(t, h.analyzer.analyzeCalls.Load())
}

func TestStorageErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("read", func(t *testing.T) {
		h := newHarness(t)
		h.store.getErr = boom
		_, err := h.service.GetAssessment(context.Background(), "user-1")
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, h.analyzer.analyzeCalls.Load())
	})
	t.Run("insert", func(t *testing.T) {
		h := newHarness(t)
		h.store.insertErr = boom
		got, err := h.service.GetAssessment(context.Background(), "user-1")
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, got)
	})
	t.Run("update", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.service.GetAssessment(context.Background(), "user-1")
		require.NoError(t, err)
		h.store.updateErr = boom
		_, err = h.service.RefreshAssessment(context.Background(), "user-1")
		assert.ErrorIs(t, err, boom)
	})
}

type racingStore struct {
	*memStore
	winner RiskAssessment
}

// Insert simulates a concurrent writer that committed between our read and
// our insert.
func (r *racingStore) Insert(ctx context.Context, a *RiskAssessment) error {
	r.mu.Lock()
	r.rows[a.HealthProfileID] = r.winner
	r.mu.Unlock()
	return ErrDuplicate
}

func TestConcurrentInsertReturnsWinningRow(t *testing.T) {
	h := newHarness(t)
	store := &racingStore{memStore: h.store, winner: RiskAssessment{ID: "winner", HealthProfileID: "profile-1"}}
	h.service.store = store

	got, err := h.service.GetAssessment(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "winner", got.ID)
}

func TestPregnancyProgress(t *testing.T) {
	h := newHarness(t)

	progress, stage, err := h.service.PregnancyProgress(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 13, progress.Week)
	assert.Equal(t, pregnancy.StageEarly, stage)

	_, _, err = h.service.PregnancyProgress(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrPregnancyNotFound)
}

func TestPregnancyReadFailurePropagates(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("pregnancy table unavailable")
	h.service.pregnancies = &fakePregnancies{err: boom}

	_, err := h.service.GetAssessment(context.Background(), "user-1")

	assert.ErrorIs(t, err, boom)
}
