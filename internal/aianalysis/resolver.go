package aianalysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"momcare/apps/backend/internal/healthrisk"
)

const rawLogLimit = 1200

// Neutral defaults for fields a model response left empty.
const (
	defaultCategory         = "General"
	defaultDataValue        = "Not provided"
	defaultDetailAnalysis   = "No analysis was provided for this item."
	defaultImpact           = "Impact was not assessed."
	defaultDetailAdvice     = "Discuss this item with your obstetric care provider."
	defaultSeverity         = "medium"
	defaultComprehensive    = "Discuss these findings with your obstetric care provider at your next prenatal visit."
	defaultPriority         = "medium"
	defaultActionItem       = "Discuss this with your care provider at your next visit."
	defaultDietPlan         = "Eat a varied, balanced diet with folic acid, iron, calcium and enough protein; avoid raw or undercooked foods."
	defaultExercisePlan     = "Unless advised otherwise, aim for about 150 minutes of moderate activity such as walking or swimming each week."
	defaultLifestyle        = "Rest well, stay hydrated, avoid smoking and alcohol, and check any medication with your provider."
	defaultMonitoring       = "Attend all prenatal appointments and track weight, blood pressure and fetal movements as advised."
	unavailableOverall      = "AI analysis is currently unavailable. The assessment below is based on rule-based screening of your health profile only."
	unavailableDetail       = "Automated AI analysis could not be completed for this profile."
	unavailableImpact       = "No additional impact could be assessed automatically."
	unavailableDetailAdvice = "Review your profile with your obstetric care provider."
)

var defaultWarningSigns = []string{
	"Vaginal bleeding or fluid leakage",
	"Severe or persistent headache",
	"Blurred vision or seeing spots",
	"Severe abdominal pain",
	"Sudden swelling of the face or hands",
	"Fever above 38°C",
	"Noticeably reduced fetal movement",
}

// Resolver turns raw model text into a complete payload. It never fails:
// every input maps to either a validated model payload or the fallback, and
// the same input always maps to the same output.
type Resolver struct {
	log zerolog.Logger
}

func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{log: log.With().Str("component", "ai_resolver").Logger()}
}

func (r *Resolver) ResolveAnalysis(raw string, callErr error, base healthrisk.Evaluation) ResolvedAnalysis {
	if callErr != nil {
		return r.analysisFallback(raw, callErr.Error(), base)
	}
	analysis, err := parseAnalysis(raw)
	if err != nil {
		return r.analysisFallback(raw, err.Error(), base)
	}
	return ResolvedAnalysis{Source: SourceModel, Analysis: analysis}
}

func (r *Resolver) ResolveRecommendations(raw string, callErr error, base healthrisk.Evaluation) ResolvedRecommendations {
	if callErr != nil {
		return r.recommendationsFallback(raw, callErr.Error(), base)
	}
	recs, err := parseRecommendations(raw)
	if err != nil {
		return r.recommendationsFallback(raw, err.Error(), base)
	}
	return ResolvedRecommendations{Source: SourceModel, Recommendations: recs}
}

func (r *Resolver) analysisFallback(raw, reason string, base healthrisk.Evaluation) ResolvedAnalysis {
	r.logFallback("analysis", raw, reason)
	return ResolvedAnalysis{
		Source:         SourceFallback,
		Analysis:       FallbackAnalysis(base),
		FallbackReason: reason,
	}
}

func (r *Resolver) recommendationsFallback(raw, reason string, base healthrisk.Evaluation) ResolvedRecommendations {
	r.logFallback("recommendations", raw, reason)
	return ResolvedRecommendations{
		Source:          SourceFallback,
		Recommendations: FallbackRecommendations(base),
		FallbackReason:  reason,
	}
}

func (r *Resolver) logFallback(kind, raw, reason string) {
	recordFallback(kind)
	event := r.log.Warn().Str("payload", kind).Str("reason", reason)
	if strings.TrimSpace(raw) != "" {
		event = event.Str("raw", truncateForLog(raw, rawLogLimit))
	}
	event.Msg("ai payload replaced by fallback")
}

// FallbackAnalysis builds the canonical analysis used when the model could
// not be used. Its score is derived from the rule-based findings.
func FallbackAnalysis(base healthrisk.Evaluation) RiskAnalysis {
	details := []DetailedAnalysis{{
		Category:       defaultCategory,
		DataValue:      "Health profile",
		Analysis:       unavailableDetail,
		Impact:         unavailableImpact,
		Recommendation: unavailableDetailAdvice,
		Severity:       "low",
	}}
	for _, item := range base.MedicalRisks {
		if item.Type == "none" {
			continue
		}
		details = append(details, DetailedAnalysis{
			Category:       item.Type,
			DataValue:      "Recorded in profile",
			Analysis:       item.Description,
			Impact:         "Flagged by rule-based screening.",
			Recommendation: defaultDetailAdvice,
			Severity:       severityForItem(item.Severity),
		})
	}

	overall := unavailableOverall
	for _, note := range []string{base.BMIRisk, base.AgeRisk} {
		if note = strings.TrimSpace(note); note != "" {
			overall = fmt.Sprintf("%s %s", overall, note)
		}
	}

	score := fallbackScore(base)
	return RiskAnalysis{
		OverallAssessment:           overall,
		DetailedAnalyses:            details,
		ComprehensiveRecommendation: joinRecommendations(base.Recommendations),
		RiskScore:                   score,
		RiskLevel:                   levelForScore(score),
	}
}

func FallbackRecommendations(base healthrisk.Evaluation) PersonalizedRecommendations {
	categories := make([]CategoryRecommendation, 0, len(base.Recommendations)+1)
	for _, rec := range base.Recommendations {
		if strings.TrimSpace(rec.Description) == "" {
			continue
		}
		categories = append(categories, CategoryRecommendation{
			Category:    firstNonEmpty(rec.Category, defaultCategory),
			Priority:    defaultPriority,
			Description: rec.Description,
			ActionItems: []string{rec.Description},
		})
	}
	if len(categories) == 0 {
		categories = append(categories, CategoryRecommendation{
			Category:    "prenatal_care",
			Priority:    "high",
			Description: "Personalised AI recommendations are currently unavailable.",
			ActionItems: []string{defaultActionItem},
		})
	}
	return PersonalizedRecommendations{
		CategoryRecommendations: categories,
		DietPlan:                defaultDietPlan,
		ExercisePlan:            defaultExercisePlan,
		LifestyleAdjustments:    defaultLifestyle,
		MonitoringAdvice:        defaultMonitoring,
		WarningSigns:            append([]string(nil), defaultWarningSigns...),
	}
}

func joinRecommendations(recs []healthrisk.Recommendation) string {
	parts := make([]string, 0, len(recs))
	for _, rec := range recs {
		if text := strings.TrimSpace(rec.Description); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return defaultComprehensive
	}
	return strings.Join(parts, " ")
}

func fallbackScore(base healthrisk.Evaluation) int {
	score := 1
	for _, item := range base.MedicalRisks {
		switch item.Severity {
		case healthrisk.SeverityHigh:
			score += 3
		case healthrisk.SeverityMedium:
			score += 2
		case healthrisk.SeverityReview:
			score++
		}
	}
	return clampScore(score)
}

func severityForItem(s healthrisk.Severity) string {
	switch s {
	case healthrisk.SeverityHigh, healthrisk.SeverityMedium, healthrisk.SeverityLow:
		return string(s)
	default:
		return defaultSeverity
	}
}

// parseAnalysis validates that the overall assessment and at least one
// detailed analysis are present, then fills every other gap with defaults.
func parseAnalysis(raw string) (RiskAnalysis, error) {
	var wire analysisWire
	if err := decodeNormalized(raw, &wire); err != nil {
		return RiskAnalysis{}, err
	}

	overall := strings.TrimSpace(string(wire.OverallAssessment))
	if overall == "" {
		return RiskAnalysis{}, errors.New("overall_assessment is empty")
	}

	source := wire.DetailedAnalyses
	if len(source) == 0 {
		source = wire.DetailedAnalysis
	}
	details := make([]DetailedAnalysis, 0, len(source))
	for _, d := range source {
		if d.empty() {
			continue
		}
		details = append(details, DetailedAnalysis{
			Category:       orDefault(d.Category, defaultCategory),
			DataValue:      orDefault(d.DataValue, defaultDataValue),
			Analysis:       orDefault(d.Analysis, defaultDetailAnalysis),
			Impact:         orDefault(d.Impact, defaultImpact),
			Recommendation: orDefault(d.Recommendation, defaultDetailAdvice),
			Severity:       normalizeLevel(string(d.Severity), defaultSeverity),
		})
	}
	if len(details) == 0 {
		return RiskAnalysis{}, errors.New("detailed_analyses is empty")
	}

	level := normalizeLevel(string(wire.RiskLevel), "")
	score, ok := parseScore(wire.RiskScore)
	if !ok {
		score = scoreForLevel(level)
	}
	if level == "" {
		level = levelForScore(score)
	}

	return RiskAnalysis{
		OverallAssessment:           overall,
		DetailedAnalyses:            details,
		ComprehensiveRecommendation: orDefault(wire.ComprehensiveRecommendation, defaultComprehensive),
		RiskScore:                   score,
		RiskLevel:                   level,
	}, nil
}

// parseRecommendations requires at least one category recommendation.
func parseRecommendations(raw string) (PersonalizedRecommendations, error) {
	var wire recommendationsWire
	if err := decodeNormalized(raw, &wire); err != nil {
		return PersonalizedRecommendations{}, err
	}

	source := wire.CategoryRecommendations
	if len(source) == 0 {
		source = wire.Recommendations
	}
	categories := make([]CategoryRecommendation, 0, len(source))
	for _, c := range source {
		items := nonEmpty(c.ActionItems)
		description := strings.TrimSpace(string(c.Description))
		if strings.TrimSpace(string(c.Category)) == "" && description == "" && len(items) == 0 {
			continue
		}
		if len(items) == 0 {
			items = []string{firstNonEmpty(description, defaultActionItem)}
		}
		categories = append(categories, CategoryRecommendation{
			Category:    orDefault(c.Category, defaultCategory),
			Priority:    normalizeLevel(string(c.Priority), defaultPriority),
			Description: firstNonEmpty(description, items[0]),
			ActionItems: items,
		})
	}
	if len(categories) == 0 {
		return PersonalizedRecommendations{}, errors.New("category_recommendations is empty")
	}

	warnings := nonEmpty(wire.WarningSigns)
	if len(warnings) == 0 {
		warnings = append([]string(nil), defaultWarningSigns...)
	}

	return PersonalizedRecommendations{
		CategoryRecommendations: categories,
		DietPlan:                orDefault(wire.DietPlan, defaultDietPlan),
		ExercisePlan:            orDefault(wire.ExercisePlan, defaultExercisePlan),
		LifestyleAdjustments:    orDefault(wire.LifestyleAdjustments, defaultLifestyle),
		MonitoringAdvice:        orDefault(wire.MonitoringAdvice, defaultMonitoring),
		WarningSigns:            warnings,
	}, nil
}

func parseScore(raw any) (int, bool) {
	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		value = parsed
	default:
		return 0, false
	}
	if value <= 0 {
		return 0, false
	}
	return clampScore(int(value + 0.5)), true
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

func levelForScore(score int) string {
	switch {
	case score >= 7:
		return "high"
	case score >= 4:
		return "medium"
	default:
		return "low"
	}
}

func scoreForLevel(level string) int {
	switch level {
	case "high":
		return 8
	case "low":
		return 3
	default:
		return 5
	}
}

// normalizeLevel maps the many ways a model spells a level onto
// low/medium/high.
func normalizeLevel(value, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low", "mild", "minor", "低", "低风险":
		return "low"
	case "medium", "moderate", "mid", "中", "中等", "中风险":
		return "medium"
	case "high", "severe", "critical", "高", "高风险":
		return "high"
	default:
		return fallback
	}
}

func orDefault(value looseString, fallback string) string {
	if trimmed := strings.TrimSpace(string(value)); trimmed != "" {
		return trimmed
	}
	return fallback
}

func nonEmpty(values []looseString) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(string(v)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}
