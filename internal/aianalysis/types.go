package aianalysis

// Source tells whether an AI payload came from a real model response or from
// the rule-based fallback.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

type DetailedAnalysis struct {
	Category       string `json:"category"`
	DataValue      string `json:"data_value"`
	Analysis       string `json:"analysis"`
	Impact         string `json:"impact"`
	Recommendation string `json:"recommendation"`
	Severity       string `json:"severity"`
}

func (d DetailedAnalysis) complete() bool {
	return d.Category != "" && d.DataValue != "" && d.Analysis != "" &&
		d.Impact != "" && d.Recommendation != "" && d.Severity != ""
}

type RiskAnalysis struct {
	OverallAssessment           string             `json:"overall_assessment"`
	DetailedAnalyses            []DetailedAnalysis `json:"detailed_analyses"`
	ComprehensiveRecommendation string             `json:"comprehensive_recommendation"`
	RiskScore                   int                `json:"risk_score"`
	RiskLevel                   string             `json:"risk_level"`
}

type CategoryRecommendation struct {
	Category    string   `json:"category"`
	Priority    string   `json:"priority"`
	Description string   `json:"description"`
	ActionItems []string `json:"action_items"`
}

type PersonalizedRecommendations struct {
	CategoryRecommendations []CategoryRecommendation `json:"category_recommendations"`
	DietPlan                string                   `json:"diet_plan"`
	ExercisePlan            string                   `json:"exercise_plan"`
	LifestyleAdjustments    string                   `json:"lifestyle_adjustments"`
	MonitoringAdvice        string                   `json:"monitoring_advice"`
	WarningSigns            []string                 `json:"warning_signs"`
}

type ResolvedAnalysis struct {
	Source         Source
	Analysis       RiskAnalysis
	FallbackReason string
}

type ResolvedRecommendations struct {
	Source          Source
	Recommendations PersonalizedRecommendations
	FallbackReason  string
}

// Insight is the AI half of an assessment. Both payloads are always fully
// populated; Source is SourceModel only when both came from the model.
type Insight struct {
	Source          Source                      `json:"source"`
	Analysis        RiskAnalysis                `json:"analysis"`
	Recommendations PersonalizedRecommendations `json:"recommendations"`
	FallbackReason  string                      `json:"fallback_reason,omitempty"`
}

func (i Insight) Enhanced() bool {
	return i.Source == SourceModel
}

func Combine(analysis ResolvedAnalysis, recs ResolvedRecommendations) Insight {
	insight := Insight{
		Source:          SourceModel,
		Analysis:        analysis.Analysis,
		Recommendations: recs.Recommendations,
	}
	if analysis.Source != SourceModel || recs.Source != SourceModel {
		insight.Source = SourceFallback
		insight.FallbackReason = firstNonEmpty(analysis.FallbackReason, recs.FallbackReason, "AI analysis unavailable")
	}
	return insight
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
