package aianalysis

import (
	"fmt"
	"strings"

	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/pregnancy"
)

const systemPrompt = "You are an experienced obstetrician reviewing a pregnant patient's health profile. " +
	"Be accurate and cautious, never give a definitive diagnosis, and always answer with a single JSON object " +
	"that follows the requested schema exactly, with no text before or after it."

const analysisSchema = `{
  "overall_assessment": "string, 2-4 sentences",
  "detailed_analyses": [
    {
      "category": "string, e.g. BMI, Age, Blood type, Medical history",
      "data_value": "string, the patient's value for this category",
      "analysis": "string",
      "impact": "string, impact on the pregnancy",
      "recommendation": "string",
      "severity": "low | medium | high"
    }
  ],
  "comprehensive_recommendation": "string",
  "risk_score": "integer from 1 (lowest) to 10 (highest)",
  "risk_level": "low | medium | high"
}`

const recommendationSchema = `{
  "category_recommendations": [
    {
      "category": "string, e.g. Nutrition, Exercise, Sleep, Mental health, Prenatal checks",
      "priority": "high | medium | low",
      "description": "string",
      "action_items": ["string", "..."]
    }
  ],
  "diet_plan": "string",
  "exercise_plan": "string",
  "lifestyle_adjustments": "string",
  "monitoring_advice": "string",
  "warning_signs": ["string", "..."]
}`

const probePrompt = "Reply with the single word: ok"

func buildAnalysisPrompt(s healthrisk.Snapshot, pc *pregnancy.Context) string {
	var b strings.Builder
	b.WriteString("Analyse the pregnancy health risks for the following profile.\n\n")
	writeProfile(&b, s, pc)
	b.WriteString("\nReturn ONLY a JSON object with this schema:\n")
	b.WriteString(analysisSchema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- detailed_analyses must contain at least 4 entries and every entry must fill all 6 fields.\n")
	b.WriteString("- risk_score must be an integer between 1 and 10.\n")
	b.WriteString("- Flag free-text history for clinician review instead of diagnosing it.\n")
	return b.String()
}

func buildRecommendationPrompt(s healthrisk.Snapshot, pc *pregnancy.Context, eval healthrisk.Evaluation) string {
	var b strings.Builder
	b.WriteString("Write personalised pregnancy recommendations for the following profile.\n\n")
	writeProfile(&b, s, pc)
	if len(eval.MedicalRisks) > 0 {
		b.WriteString("\nRule-based risk findings:\n")
		for _, item := range eval.MedicalRisks {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", item.Severity, item.Type, item.Description)
		}
	}
	b.WriteString("\nReturn ONLY a JSON object with this schema:\n")
	b.WriteString(recommendationSchema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- category_recommendations must contain at least 5 entries, each with at least 2 action_items.\n")
	b.WriteString("- warning_signs lists symptoms that need immediate medical attention.\n")
	return b.String()
}

func writeProfile(b *strings.Builder, s healthrisk.Snapshot, pc *pregnancy.Context) {
	bmi := healthrisk.BMI(s.CurrentWeightKg, s.HeightCm)
	fmt.Fprintf(b, "Height: %s cm\n", valueOrUnknown(s.HeightCm))
	fmt.Fprintf(b, "Pre-pregnancy weight: %s kg\n", valueOrUnknown(s.PrePregnancyWeightKg))
	fmt.Fprintf(b, "Current weight: %s kg\n", valueOrUnknown(s.CurrentWeightKg))
	fmt.Fprintf(b, "BMI: %s\n", valueOrUnknown(bmi))
	fmt.Fprintf(b, "Blood type: %s\n", textOrNone(s.BloodType))
	if s.Age > 0 {
		fmt.Fprintf(b, "Age: %d\n", s.Age)
	} else {
		b.WriteString("Age: unknown\n")
	}
	fmt.Fprintf(b, "Medical history: %s\n", textOrNone(s.MedicalHistory))
	fmt.Fprintf(b, "Family history: %s\n", textOrNone(s.FamilyHistory))
	fmt.Fprintf(b, "Allergy history: %s\n", textOrNone(s.AllergyHistory))
	fmt.Fprintf(b, "Obstetric history: %s\n", textOrNone(s.ObstetricHistory))
	fmt.Fprintf(b, "Smoking: %s\n", yesNo(s.IsSmoking))
	fmt.Fprintf(b, "Drinking alcohol: %s\n", yesNo(s.IsDrinking))
	if pc != nil {
		fmt.Fprintf(b, "Gestational week: %d (%s)\n", pc.CurrentWeek, pc.Stage.Label())
	} else {
		b.WriteString("Gestational week: no pregnancy record yet\n")
	}
}

func valueOrUnknown(v float64) string {
	if v <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.1f", v)
}

func textOrNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return "none"
	}
	return strings.TrimSpace(v)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
