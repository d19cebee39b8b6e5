package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"momcare/apps/backend/internal/aianalysis"
	"momcare/apps/backend/internal/assessment"
	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/pregnancy"
)

func sampleAssessment() *assessment.RiskAssessment {
	eval := healthrisk.NewEvaluator(healthrisk.DefaultPolicy()).Evaluate(healthrisk.Snapshot{
		ProfileID: "profile-1", UserID: "user-1", HeightCm: 165, CurrentWeightKg: 70, Age: 36,
	})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &assessment.RiskAssessment{
		ID:              "assessment-1",
		UserID:          "user-1",
		HealthProfileID: "profile-1",
		Evaluation:      eval,
		HealthDataHash:  healthrisk.Fingerprint(healthrisk.Snapshot{HeightCm: 165}),
		HashVersion:     healthrisk.FingerprintVersion,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func withFallbackInsight(a *assessment.RiskAssessment) *assessment.RiskAssessment {
	insight := aianalysis.Combine(
		aianalysis.ResolvedAnalysis{
			Source:         aianalysis.SourceFallback,
			Analysis:       aianalysis.FallbackAnalysis(a.Evaluation),
			FallbackReason: "timeout",
		},
		aianalysis.ResolvedRecommendations{
			Source:          aianalysis.SourceFallback,
			Recommendations: aianalysis.FallbackRecommendations(a.Evaluation),
			FallbackReason:  "timeout",
		},
	)
	a.AI = &insight
	return a
}

func TestGetAssessmentReturnsDeterministicFields(t *testing.T) {
	fake := &fakeAssessments{result: sampleAssessment()}
	router := newTestRouter(t, fake)
	token := signToken(t, "user-1", nil)

	rec := performRequest(t, router, http.MethodGet, assessmentPath, token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	body := decodeJSONMap(t, rec)
	if body["bmi_category"] != string(healthrisk.BMIOverweight) {
		t.Fatalf("expected overweight category, got %v", body["bmi_category"])
	}
	if body["age_risk_flagged"] != true {
		t.Fatalf("expected age risk flag, got %v", body["age_risk_flagged"])
	}
	if body["is_ai_enhanced"] != false {
		t.Fatalf("expected is_ai_enhanced=false, got %v", body["is_ai_enhanced"])
	}
	if body["ai_analysis"] != nil || body["ai_recommendations"] != nil {
		t.Fatalf("expected null AI payloads when AI is off, got %v / %v", body["ai_analysis"], body["ai_recommendations"])
	}
	risks, _ := body["medical_risks"].([]any)
	if len(risks) == 0 {
		t.Fatalf("expected medical risks in response")
	}
	if len(fake.calls) != 1 || fake.calls[0] != "get" {
		t.Fatalf("expected one get call, got %v", fake.calls)
	}
}

func TestGetAssessmentIncludesFallbackInsight(t *testing.T) {
	fake := &fakeAssessments{result: withFallbackInsight(sampleAssessment())}
	router := newTestRouter(t, fake)

	rec := performRequest(t, router, http.MethodGet, assessmentPath, signToken(t, "user-1", nil), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	body := decodeJSONMap(t, rec)
	if body["ai_source"] != string(aianalysis.SourceFallback) {
		t.Fatalf("expected fallback source, got %v", body["ai_source"])
	}
	analysis, ok := body["ai_analysis"].(map[string]any)
	if !ok {
		t.Fatalf("expected ai_analysis object, got %T", body["ai_analysis"])
	}
	if overall, _ := analysis["overall_assessment"].(string); overall == "" {
		t.Fatalf("expected fallback narrative, got empty overall assessment")
	}
	recs, ok := body["ai_recommendations"].(map[string]any)
	if !ok {
		t.Fatalf("expected ai_recommendations object, got %T", body["ai_recommendations"])
	}
	if signs, _ := recs["warning_signs"].([]any); len(signs) == 0 {
		t.Fatalf("expected default warning signs")
	}
}

func TestRefreshAssessmentForcesRecompute(t *testing.T) {
	fake := &fakeAssessments{result: sampleAssessment()}
	router := newTestRouter(t, fake)

	rec := performRequest(t, router, http.MethodPost, assessmentPath+"/refresh", signToken(t, "user-1", nil), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if fake.refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", fake.refreshes)
	}
}

func TestAssessmentMissingProfileIs404(t *testing.T) {
	fake := &fakeAssessments{err: assessment.ErrProfileNotFound}
	router := newTestRouter(t, fake)

	rec := performRequest(t, router, http.MethodGet, assessmentPath, signToken(t, testID(), nil), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "Health profile not found" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestAssessmentStorageFailureIs500(t *testing.T) {
	fake := &fakeAssessments{err: errors.New("insert assessment: connection reset")}
	router := newTestRouter(t, fake)

	rec := performRequest(t, router, http.MethodPost, assessmentPath+"/refresh", signToken(t, testID(), nil), nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "Failed to produce health assessment" {
		t.Fatalf("expected internal error to stay hidden, got %q", detail)
	}
}

func TestPregnancyProgress(t *testing.T) {
	fake := &fakeAssessments{
		progress: pregnancy.Progress{Week: 13, DayInWeek: 7, DaysRemaining: 189},
		stage:    pregnancy.StageEarly,
	}
	router := newTestRouter(t, fake)

	rec := performRequest(t, router, http.MethodGet, "/api/v1/pregnancy/progress", signToken(t, "user-1", nil), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	body := decodeJSONMap(t, rec)
	if body["current_week"] != float64(13) || body["current_day"] != float64(7) || body["days_remaining"] != float64(189) {
		t.Fatalf("unexpected progress body: %v", body)
	}
	if body["stage"] != "early" || body["stage_label"] != "first trimester" {
		t.Fatalf("unexpected stage: %v / %v", body["stage"], body["stage_label"])
	}
}

func TestPregnancyProgressWithoutRecordIs404(t *testing.T) {
	fake := &fakeAssessments{pregErr: assessment.ErrPregnancyNotFound}
	router := newTestRouter(t, fake)

	rec := performRequest(t, router, http.MethodGet, "/api/v1/pregnancy/progress", signToken(t, "user-1", nil), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAIHealth(t *testing.T) {
	cases := []struct {
		name  string
		probe AIProbe
		want  bool
	}{
		{name: "disabled", probe: nil, want: false},
		{name: "down", probe: &fakeProbe{available: false}, want: false},
		{name: "up", probe: &fakeProbe{available: true}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouterWithConfig(t, baseTestConfig, Deps{AI: tc.probe})
			rec := performRequest(t, router, http.MethodGet, "/health/ai", "", nil, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
			}
			if got := decodeJSONMap(t, rec)["ai_available"]; got != tc.want {
				t.Fatalf("expected ai_available=%v, got %v", tc.want, got)
			}
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := performRequest(t, router, http.MethodGet, "/health", "", nil, map[string]string{"X-Request-ID": "req-123"})
	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestValidateRuntimeSchema(t *testing.T) {
	requireIntegration(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ValidateRuntimeSchema(ctx, testPool); err != nil {
		t.Fatalf("expected migrated schema to validate: %v", err)
	}
	ok, err := columnExists(ctx, testPool, "HealthRiskAssessment", "noSuchColumn")
	if err != nil {
		t.Fatalf("column lookup failed: %v", err)
	}
	if ok {
		t.Fatalf("expected unknown column to be reported missing")
	}
}

func TestValidateRuntimeSchemaRejectsNilPool(t *testing.T) {
	if err := ValidateRuntimeSchema(context.Background(), nil); err == nil {
		t.Fatalf("expected nil pool to fail")
	}
}
