package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/pregnancy"
)

// PGProfileReader reads the "HealthProfile" table owned by the profile CRUD
// service. The latest row wins if a user somehow has more than one.
type PGProfileReader struct {
	db dbQuerier
}

func NewPGProfileReader(db dbQuerier) *PGProfileReader {
	return &PGProfileReader{db: db}
}

func (r *PGProfileReader) ProfileForUser(ctx context.Context, userID string) (healthrisk.Snapshot, error) {
	var (
		s                  healthrisk.Snapshot
		height             *float64
		prePregnancyWeight *float64
		currentWeight      *float64
		bloodType          *string
		age                *int32
		medicalHistory     *string
		familyHistory      *string
		allergyHistory     *string
		obstetricHistory   *string
		isSmoking          *bool
		isDrinking         *bool
	)
	err := r.db.QueryRow(
		ctx,
		`SELECT id, "userId", height, "prePregnancyWeight", "currentWeight", "bloodType", age,
		        "medicalHistory", "familyHistory", "allergyHistory", "obstetricHistory",
		        "isSmoking", "isDrinking"
		 FROM "HealthProfile"
		 WHERE "userId" = $1
		 ORDER BY "updatedAt" DESC
		 LIMIT 1`,
		userID,
	).Scan(
		&s.ProfileID,
		&s.UserID,
		&height,
		&prePregnancyWeight,
		&currentWeight,
		&bloodType,
		&age,
		&medicalHistory,
		&familyHistory,
		&allergyHistory,
		&obstetricHistory,
		&isSmoking,
		&isDrinking,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return healthrisk.Snapshot{}, ErrProfileNotFound
	}
	if err != nil {
		return healthrisk.Snapshot{}, fmt.Errorf("load health profile: %w", err)
	}

	s.HeightCm = derefFloat(height)
	s.PrePregnancyWeightKg = derefFloat(prePregnancyWeight)
	s.CurrentWeightKg = derefFloat(currentWeight)
	s.BloodType = derefString(bloodType)
	if age != nil {
		s.Age = int(*age)
	}
	s.MedicalHistory = derefString(medicalHistory)
	s.FamilyHistory = derefString(familyHistory)
	s.AllergyHistory = derefString(allergyHistory)
	s.ObstetricHistory = derefString(obstetricHistory)
	s.IsSmoking = isSmoking != nil && *isSmoking
	s.IsDrinking = isDrinking != nil && *isDrinking
	return s, nil
}

type PGPregnancyReader struct {
	db dbQuerier
}

func NewPGPregnancyReader(db dbQuerier) *PGPregnancyReader {
	return &PGPregnancyReader{db: db}
}

func (r *PGPregnancyReader) PregnancyForUser(ctx context.Context, userID string) (pregnancy.Record, error) {
	record := pregnancy.Record{UserID: userID}
	var lmp, dueDate *time.Time
	err := r.db.QueryRow(
		ctx,
		`SELECT "lastMenstrualPeriod", "dueDate"
		 FROM "PregnancyInfo"
		 WHERE "userId" = $1
		 ORDER BY "updatedAt" DESC
		 LIMIT 1`,
		userID,
	).Scan(&lmp, &dueDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return pregnancy.Record{}, ErrPregnancyNotFound
	}
	if err != nil {
		return pregnancy.Record{}, fmt.Errorf("load pregnancy info: %w", err)
	}
	record.LMP = lmp
	record.DueDate = dueDate
	return record, nil
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
