package healthrisk

import (
	"fmt"
	"math"
	"strings"
)

const historyExcerptLimit = 80

// Evaluator derives the deterministic risk fields from a snapshot.
type Evaluator struct {
	policy Policy
}

func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy.withDefaults()}
}

func (e *Evaluator) Policy() Policy {
	return e.policy
}

// BMI returns weight / height(m)^2 rounded to two decimals, or 0 when either
// input is missing.
func BMI(weightKg, heightCm float64) float64 {
	if heightCm <= 0 || weightKg <= 0 {
		return 0
	}
	meters := heightCm / 100
	return roundTo(weightKg/(meters*meters), 2)
}

func (e *Evaluator) Evaluate(s Snapshot) Evaluation {
	bmi := BMI(s.CurrentWeightKg, s.HeightCm)
	category := e.policy.Category(bmi)

	eval := Evaluation{
		BMI:         bmi,
		BMICategory: category,
		BMIRisk:     bmiNarrative(bmi, category),
	}
	eval.AgeRisk, eval.AgeRiskFlagged = e.ageNarrative(s.Age)

	risks := make([]RiskItem, 0, 8)
	recs := []Recommendation{{
		Category:    "prenatal_care",
		Description: "Keep every scheduled prenatal visit and bring this assessment to your obstetric care provider.",
	}}

	if eval.AgeRiskFlagged {
		risks = append(risks, RiskItem{Type: "age", Description: eval.AgeRisk, Severity: e.policy.AgeSeverity})
		if s.Age >= e.policy.AdvancedMaternalAge {
			recs = append(recs, Recommendation{
				Category:    "screening",
				Description: "Ask your provider about prenatal screening options offered for advanced maternal age, such as NIPT or diagnostic testing.",
			})
		} else {
			recs = append(recs, Recommendation{
				Category:    "nutrition",
				Description: "Adolescent pregnancies need extra calcium, iron and folate; ask for a nutrition review.",
			})
		}
	}

	if severity, ok := e.policy.BMISeverity[category]; ok {
		risks = append(risks, RiskItem{Type: "bmi", Description: eval.BMIRisk, Severity: severity})
	}
	if rec, ok := bmiRecommendation(category); ok {
		recs = append(recs, rec)
	}
	if rec, ok := e.weightGainRecommendation(s, category); ok {
		recs = append(recs, rec)
	}

	if s.IsSmoking {
		risks = append(risks, RiskItem{
			Type:        "smoking",
			Description: "Smoking during pregnancy is linked to low birth weight, preterm birth and placental problems.",
			Severity:    e.policy.LifestyleSeverity,
		})
		recs = append(recs, Recommendation{
			Category:    "lifestyle",
			Description: "Stop smoking and avoid second-hand smoke; ask your provider about cessation support.",
		})
	}
	if s.IsDrinking {
		risks = append(risks, RiskItem{
			Type:        "drinking",
			Description: "No amount of alcohol is known to be safe during pregnancy.",
			Severity:    e.policy.LifestyleSeverity,
		})
		recs = append(recs, Recommendation{
			Category:    "lifestyle",
			Description: "Avoid alcohol completely for the rest of the pregnancy.",
		})
	}

	histories := []struct {
		kind  string
		label string
		text  string
	}{
		{kind: "medical_history", label: "Medical history", text: s.MedicalHistory},
		{kind: "family_history", label: "Family history", text: s.FamilyHistory},
		{kind: "allergy_history", label: "Allergy history", text: s.AllergyHistory},
		{kind: "obstetric_history", label: "Obstetric history", text: s.ObstetricHistory},
	}
	recordedHistory := false
	for _, h := range histories {
		text := strings.TrimSpace(h.text)
		if text == "" {
			continue
		}
		recordedHistory = true
		risks = append(risks, RiskItem{
			Type:        h.kind,
			Description: fmt.Sprintf("%s recorded: %s. Flagged for clinician review.", h.label, excerpt(text, historyExcerptLimit)),
			Severity:    SeverityReview,
		})
	}
	if recordedHistory {
		recs = append(recs, Recommendation{
			Category:    "medical_review",
			Description: "Review your recorded history with your obstetrician so any condition can be classified and monitored.",
		})
	}
	if strings.TrimSpace(s.AllergyHistory) != "" {
		recs = append(recs, Recommendation{
			Category:    "medication_safety",
			Description: "Tell every care provider about your allergies before any medication or procedure.",
		})
	}

	if len(risks) == 0 {
		risks = append(risks, RiskItem{
			Type:        "none",
			Description: "No known risk factors were identified from the available profile data.",
			Severity:    SeverityLow,
		})
	}

	eval.MedicalRisks = risks
	eval.Recommendations = recs
	return eval
}

func (e *Evaluator) ageNarrative(age int) (string, bool) {
	switch {
	case age <= 0:
		return "Age not provided; age-related risk could not be assessed.", false
	case age >= e.policy.AdvancedMaternalAge:
		return fmt.Sprintf("Advanced maternal age (%d, threshold %d): higher likelihood of chromosomal conditions, gestational diabetes and hypertension.", age, e.policy.AdvancedMaternalAge), true
	case age < e.policy.AdolescentAgeBelow:
		return fmt.Sprintf("Adolescent pregnancy (%d, below %d): higher likelihood of anaemia, preterm birth and low birth weight.", age, e.policy.AdolescentAgeBelow), true
	default:
		return fmt.Sprintf("Age %d is within the typical range; no age-related risk flagged.", age), false
	}
}

func bmiNarrative(bmi float64, category BMICategory) string {
	switch category {
	case BMIUnderweight:
		return fmt.Sprintf("BMI %.2f is underweight: risk of low birth weight and preterm birth.", bmi)
	case BMINormal:
		return fmt.Sprintf("BMI %.2f is within the normal range.", bmi)
	case BMIOverweight:
		return fmt.Sprintf("BMI %.2f is overweight: monitor for gestational diabetes and hypertension.", bmi)
	case BMIObese:
		return fmt.Sprintf("BMI %.2f is obese: elevated risk of gestational diabetes, preeclampsia and caesarean delivery.", bmi)
	default:
		return "Height or weight not provided; BMI could not be calculated."
	}
}

func bmiRecommendation(category BMICategory) (Recommendation, bool) {
	switch category {
	case BMIUnderweight:
		return Recommendation{Category: "diet", Description: "Increase energy and protein intake with regular balanced meals."}, true
	case BMIOverweight, BMIObese:
		return Recommendation{Category: "diet", Description: "Favour whole foods and limit refined sugar; ask about glucose screening."}, true
	case BMINormal:
		return Recommendation{Category: "diet", Description: "Keep a balanced diet with folic acid, iron and calcium."}, true
	default:
		return Recommendation{}, false
	}
}

// weightGainRecommendation bases the band on the pre-pregnancy BMI when a
// pre-pregnancy weight is recorded, otherwise on the current category.
func (e *Evaluator) weightGainRecommendation(s Snapshot, current BMICategory) (Recommendation, bool) {
	category := current
	if pre := BMI(s.PrePregnancyWeightKg, s.HeightCm); pre > 0 {
		category = e.policy.Category(pre)
	}
	low, high, ok := weightGainBand(category)
	if !ok {
		return Recommendation{}, false
	}
	text := fmt.Sprintf("Recommended total weight gain for a %s pre-pregnancy BMI is %.1f-%.1f kg.", category, low, high)
	if s.PrePregnancyWeightKg > 0 && s.CurrentWeightKg > 0 {
		gained := roundTo(s.CurrentWeightKg-s.PrePregnancyWeightKg, 1)
		text += fmt.Sprintf(" Gained so far: %.1f kg.", gained)
	}
	return Recommendation{Category: "weight_gain", Description: text}, true
}

func excerpt(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}

func roundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
