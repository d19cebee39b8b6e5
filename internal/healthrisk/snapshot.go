package healthrisk

// Snapshot is the read-only view of a health profile at assessment time.
// Zero values mean "not recorded".
type Snapshot struct {
	ProfileID string
	UserID    string

	HeightCm             float64
	PrePregnancyWeightKg float64
	CurrentWeightKg      float64
	BloodType            string
	Age                  int

	MedicalHistory   string
	FamilyHistory    string
	AllergyHistory   string
	ObstetricHistory string

	IsSmoking  bool
	IsDrinking bool
}

type BMICategory string

const (
	BMIUnknown     BMICategory = "unknown"
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObese       BMICategory = "obese"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
	// SeverityReview marks free-text findings a clinician has to classify.
	SeverityReview Severity = "review"
)

type RiskItem struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

type Recommendation struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Evaluation holds the deterministic part of a risk assessment.
type Evaluation struct {
	BMI             float64          `json:"bmi"`
	BMICategory     BMICategory      `json:"bmi_category"`
	BMIRisk         string           `json:"bmi_risk"`
	AgeRisk         string           `json:"age_risk"`
	AgeRiskFlagged  bool             `json:"age_risk_flagged"`
	MedicalRisks    []RiskItem       `json:"medical_risks"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Valid reports whether the evaluation carries every deterministic field.
func (e Evaluation) Valid() bool {
	return e.BMICategory != "" &&
		e.BMIRisk != "" &&
		e.AgeRisk != "" &&
		len(e.MedicalRisks) > 0 &&
		len(e.Recommendations) > 0
}
