package healthrisk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// FingerprintVersion is hashed into every fingerprint and stored next to it.
// Bump it whenever fingerprintFields changes so existing rows stop matching.
const FingerprintVersion = 1

// fingerprintFields is the fixed hashing order. Identity fields (profile and
// user IDs) are not part of it.
var fingerprintFields = []struct {
	name  string
	value func(Snapshot) string
}{
	{"heightCm", func(s Snapshot) string { return formatFloat(s.HeightCm) }},
	{"prePregnancyWeightKg", func(s Snapshot) string { return formatFloat(s.PrePregnancyWeightKg) }},
	{"currentWeightKg", func(s Snapshot) string { return formatFloat(s.CurrentWeightKg) }},
	{"bloodType", func(s Snapshot) string { return s.BloodType }},
	{"age", func(s Snapshot) string { return strconv.Itoa(s.Age) }},
	{"medicalHistory", func(s Snapshot) string { return s.MedicalHistory }},
	{"familyHistory", func(s Snapshot) string { return s.FamilyHistory }},
	{"allergyHistory", func(s Snapshot) string { return s.AllergyHistory }},
	{"obstetricHistory", func(s Snapshot) string { return s.ObstetricHistory }},
	{"isSmoking", func(s Snapshot) string { return strconv.FormatBool(s.IsSmoking) }},
	{"isDrinking", func(s Snapshot) string { return strconv.FormatBool(s.IsDrinking) }},
}

// Fingerprint returns the 64 character hex SHA-256 of the snapshot's
// assessment-relevant fields. Each field is written as
// name 0x1f length 0x1f value 0x1e so no two field sequences collide.
func Fingerprint(s Snapshot) string {
	hasher := sha256.New()
	_, _ = hasher.Write([]byte("healthrisk.v" + strconv.Itoa(FingerprintVersion)))
	_, _ = hasher.Write([]byte{0x1e})
	for _, field := range fingerprintFields {
		value := field.value(s)
		_, _ = hasher.Write([]byte(field.name))
		_, _ = hasher.Write([]byte{0x1f})
		_, _ = hasher.Write([]byte(strconv.Itoa(len(value))))
		_, _ = hasher.Write([]byte{0x1f})
		_, _ = hasher.Write([]byte(value))
		_, _ = hasher.Write([]byte{0x1e})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
