package healthrisk

// Policy holds the clinical thresholds used by the evaluator. The defaults are
// the WHO adult BMI bands and the conventional maternal age cut-offs; they are
// configurable because no single clinical source is authoritative for every
// deployment.
type Policy struct {
	UnderweightBelow float64
	OverweightFrom   float64
	ObeseFrom        float64

	AdvancedMaternalAge int
	AdolescentAgeBelow  int

	BMISeverity       map[BMICategory]Severity
	AgeSeverity       Severity
	LifestyleSeverity Severity
}

func DefaultPolicy() Policy {
	return Policy{
		UnderweightBelow:    18.5,
		OverweightFrom:      25,
		ObeseFrom:           30,
		AdvancedMaternalAge: 35,
		AdolescentAgeBelow:  18,
		BMISeverity: map[BMICategory]Severity{
			BMIUnderweight: SeverityMedium,
			BMIOverweight:  SeverityLow,
			BMIObese:       SeverityHigh,
		},
		AgeSeverity:       SeverityMedium,
		LifestyleSeverity: SeverityMedium,
	}
}

// withDefaults fills unset fields so a partially configured policy still
// classifies every input.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.UnderweightBelow <= 0 {
		p.UnderweightBelow = d.UnderweightBelow
	}
	if p.OverweightFrom <= 0 {
		p.OverweightFrom = d.OverweightFrom
	}
	if p.ObeseFrom <= 0 {
		p.ObeseFrom = d.ObeseFrom
	}
	if p.AdvancedMaternalAge <= 0 {
		p.AdvancedMaternalAge = d.AdvancedMaternalAge
	}
	if p.AdolescentAgeBelow <= 0 {
		p.AdolescentAgeBelow = d.AdolescentAgeBelow
	}
	if p.BMISeverity == nil {
		p.BMISeverity = d.BMISeverity
	}
	if p.AgeSeverity == "" {
		p.AgeSeverity = d.AgeSeverity
	}
	if p.LifestyleSeverity == "" {
		p.LifestyleSeverity = d.LifestyleSeverity
	}
	return p
}

func (p Policy) Category(bmi float64) BMICategory {
	switch {
	case bmi <= 0:
		return BMIUnknown
	case bmi < p.UnderweightBelow:
		return BMIUnderweight
	case bmi < p.OverweightFrom:
		return BMINormal
	case bmi < p.ObeseFrom:
		return BMIOverweight
	default:
		return BMIObese
	}
}

// weightGainBand is the recommended total gestational weight gain in kg
// for a pre-pregnancy BMI category (IOM 2009, singleton pregnancy).
func weightGainBand(category BMICategory) (float64, float64, bool) {
	switch category {
	case BMIUnderweight:
		return 12.5, 18, true
	case BMINormal:
		return 11.5, 16, true
	case BMIOverweight:
		return 7, 11.5, true
	case BMIObese:
		return 5, 9, true
	default:
		return 0, 0, false
	}
}
