package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"momcare/apps/backend/internal/aianalysis"
	"momcare/apps/backend/internal/healthrisk"
)

const uniqueViolation = "23505"

type dbQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PGStore keeps one "HealthRiskAssessment" row per health profile.
type PGStore struct {
	db dbQuerier
}

func NewPGStore(db dbQuerier) *PGStore {
	return &PGStore{db: db}
}

const selectAssessment = `SELECT id, "userId", "healthProfileId", bmi, "bmiCategory", "bmiRisk", "ageRisk",
	"medicalRisksJson", "recommendationsJson", "aiSource", "aiAnalysisJson", "aiRecommendationsJson",
	"aiFallbackReason", "isAiEnhanced", "healthDataHash", "hashVersion", "createdAt", "updatedAt"
	FROM "HealthRiskAssessment"
	WHERE "healthProfileId" = $1`

func (s *PGStore) GetByProfile(ctx context.Context, healthProfileID string) (*RiskAssessment, error) {
	var (
		a                 RiskAssessment
		medicalRisksJSON  []byte
		recommendationsJS []byte
		aiSource          *string
		aiAnalysisJSON    []byte
		aiRecsJSON        []byte
		aiFallbackReason  *string
	)
	err := s.db.QueryRow(ctx, selectAssessment, healthProfileID).Scan(
		&a.ID,
		&a.UserID,
		&a.HealthProfileID,
		&a.Evaluation.BMI,
		&a.Evaluation.BMICategory,
		&a.Evaluation.BMIRisk,
		&a.Evaluation.AgeRisk,
		&medicalRisksJSON,
		&recommendationsJS,
		&aiSource,
		&aiAnalysisJSON,
		&aiRecsJSON,
		&aiFallbackReason,
		&a.IsAIEnhanced,
		&a.HealthDataHash,
		&a.HashVersion,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load assessment: %w", err)
	}

	if err := json.Unmarshal(medicalRisksJSON, &a.Evaluation.MedicalRisks); err != nil {
		return nil, fmt.Errorf("decode medical risks: %w", err)
	}
	if err := json.Unmarshal(recommendationsJS, &a.Evaluation.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	a.Evaluation.AgeRiskFlagged = ageRiskFlagged(a.Evaluation)

	if aiSource != nil {
		insight := aianalysis.Insight{Source: aianalysis.Source(*aiSource)}
		if err := json.Unmarshal(aiAnalysisJSON, &insight.Analysis); err != nil {
			return nil, fmt.Errorf("decode ai analysis: %w", err)
		}
		if err := json.Unmarshal(aiRecsJSON, &insight.Recommendations); err != nil {
			return nil, fmt.Errorf("decode ai recommendations: %w", err)
		}
		if aiFallbackReason != nil {
			insight.FallbackReason = *aiFallbackReason
		}
		a.AI = &insight
	}

	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func (s *PGStore) Insert(ctx context.Context, a *RiskAssessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cols, err := encodeColumns(a)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		ctx,
		`INSERT INTO "HealthRiskAssessment" (
		   id, "userId", "healthProfileId", bmi, "bmiCategory", "bmiRisk", "ageRisk",
		   "medicalRisksJson", "recommendationsJson", "aiSource", "aiAnalysisJson", "aiRecommendationsJson",
		   "aiFallbackReason", "isAiEnhanced", "healthDataHash", "hashVersion", "createdAt", "updatedAt"
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID,
		a.UserID,
		a.HealthProfileID,
		a.Evaluation.BMI,
		string(a.Evaluation.BMICategory),
		a.Evaluation.BMIRisk,
		a.Evaluation.AgeRisk,
		cols.medicalRisks,
		cols.recommendations,
		cols.aiSource,
		cols.aiAnalysis,
		cols.aiRecommendations,
		cols.aiFallbackReason,
		a.IsAIEnhanced,
		a.HealthDataHash,
		a.HashVersion,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// Update rewrites the row in place; identity and createdAt never change.
func (s *PGStore) Update(ctx context.Context, a *RiskAssessment) error {
	cols, err := encodeColumns(a)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(
		ctx,
		`UPDATE "HealthRiskAssessment"
		 SET bmi = $2, "bmiCategory" = $3, "bmiRisk" = $4, "ageRisk" = $5,
		     "medicalRisksJson" = $6, "recommendationsJson" = $7, "aiSource" = $8,
		     "aiAnalysisJson" = $9, "aiRecommendationsJson" = $10, "aiFallbackReason" = $11,
		     "isAiEnhanced" = $12, "healthDataHash" = $13, "hashVersion" = $14, "updatedAt" = $15
		 WHERE id = $1`,
		a.ID,
		a.Evaluation.BMI,
		string(a.Evaluation.BMICategory),
		a.Evaluation.BMIRisk,
		a.Evaluation.AgeRisk,
		cols.medicalRisks,
		cols.recommendations,
		cols.aiSource,
		cols.aiAnalysis,
		cols.aiRecommendations,
		cols.aiFallbackReason,
		a.IsAIEnhanced,
		a.HealthDataHash,
		a.HashVersion,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type encodedColumns struct {
	medicalRisks      string
	recommendations   string
	aiSource          any
	aiAnalysis        any
	aiRecommendations any
	aiFallbackReason  any
}

func encodeColumns(a *RiskAssessment) (encodedColumns, error) {
	var cols encodedColumns
	medicalRisks, err := json.Marshal(a.Evaluation.MedicalRisks)
	if err != nil {
		return cols, fmt.Errorf("encode medical risks: %w", err)
	}
	recommendations, err := json.Marshal(a.Evaluation.Recommendations)
	if err != nil {
		return cols, fmt.Errorf("encode recommendations: %w", err)
	}
	cols.medicalRisks = string(medicalRisks)
	cols.recommendations = string(recommendations)

	if a.AI == nil {
		return cols, nil
	}
	analysis, err := json.Marshal(a.AI.Analysis)
	if err != nil {
		return cols, fmt.Errorf("encode ai analysis: %w", err)
	}
	recs, err := json.Marshal(a.AI.Recommendations)
	if err != nil {
		return cols, fmt.Errorf("encode ai recommendations: %w", err)
	}
	cols.aiSource = string(a.AI.Source)
	cols.aiAnalysis = string(analysis)
	cols.aiRecommendations = string(recs)
	if a.AI.FallbackReason != "" {
		cols.aiFallbackReason = a.AI.FallbackReason
	}
	return cols, nil
}

// ageRiskFlagged is not a column; an age item in the risk list carries it.
func ageRiskFlagged(e healthrisk.Evaluation) bool {
	for _, item := range e.MedicalRisks {
		if item.Type == "age" {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
