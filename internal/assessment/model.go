package assessment

import (
	"context"
	"errors"
	"time"

	"momcare/apps/backend/internal/aianalysis"
	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/pregnancy"
)

var (
	ErrProfileNotFound   = errors.New("health profile not found")
	ErrPregnancyNotFound = errors.New("pregnancy record not found")
	// ErrNotFound means no assessment is stored for the profile yet.
	ErrNotFound = errors.New("assessment not found")
	// ErrDuplicate is returned by Insert when the profile already has a row.
	ErrDuplicate = errors.New("assessment already exists for health profile")
)

// RiskAssessment is the latest assessment of one health profile. AI is nil
// when no AI analysis was requested; otherwise it is always complete and
// Source tells whether it came from the model or the fallback.
type RiskAssessment struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	HealthProfileID string                `json:"health_profile_id"`
	Evaluation      healthrisk.Evaluation `json:"evaluation"`
	AI              *aianalysis.Insight   `json:"ai,omitempty"`
	IsAIEnhanced    bool                  `json:"is_ai_enhanced"`
	HealthDataHash  string                `json:"health_data_hash"`
	HashVersion     int                   `json:"hash_version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type Store interface {
	GetByProfile(ctx context.Context, healthProfileID string) (*RiskAssessment, error)
	Insert(ctx context.Context, a *RiskAssessment) error
	Update(ctx context.Context, a *RiskAssessment) error
}

// ProfileReader returns ErrProfileNotFound when the user has no profile.
type ProfileReader interface {
	ProfileForUser(ctx context.Context, userID string) (healthrisk.Snapshot, error)
}

// PregnancyReader returns ErrPregnancyNotFound when no record exists.
type PregnancyReader interface {
	PregnancyForUser(ctx context.Context, userID string) (pregnancy.Record, error)
}
