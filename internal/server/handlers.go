package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"momcare/apps/backend/internal/aianalysis"
	"momcare/apps/backend/internal/assessment"
	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/pregnancy"
)

type assessmentResponse struct {
	ID                string                                  `json:"id"`
	HealthProfileID   string                                  `json:"health_profile_id"`
	BMI               float64                                 `json:"bmi"`
	BMICategory       healthrisk.BMICategory                  `json:"bmi_category"`
	BMIRisk           string                                  `json:"bmi_risk"`
	AgeRisk           string                                  `json:"age_risk"`
	AgeRiskFlagged    bool                                    `json:"age_risk_flagged"`
	MedicalRisks      []healthrisk.RiskItem                   `json:"medical_risks"`
	Recommendations   []healthrisk.Recommendation             `json:"recommendations"`
	AIAnalysis        *aianalysis.RiskAnalysis                `json:"ai_analysis"`
	AIRecommendations *aianalysis.PersonalizedRecommendations `json:"ai_recommendations"`
	AISource          aianalysis.Source                       `json:"ai_source,omitempty"`
	IsAIEnhanced      bool                                    `json:"is_ai_enhanced"`
	CreatedAt         time.Time                               `json:"created_at"`
	UpdatedAt         time.Time                               `json:"updated_at"`
}

type progressResponse struct {
	CurrentWeek   int             `json:"current_week"`
	CurrentDay    int             `json:"current_day"`
	DaysRemaining int             `json:"days_remaining"`
	Stage         pregnancy.Stage `json:"stage"`
	StageLabel    string          `json:"stage_label"`
}

func toAssessmentResponse(a *assessment.RiskAssessment) assessmentResponse {
	resp := assessmentResponse{
		ID:              a.ID,
		HealthProfileID: a.HealthProfileID,
		BMI:             a.Evaluation.BMI,
		BMICategory:     a.Evaluation.BMICategory,
		BMIRisk:         a.Evaluation.BMIRisk,
		AgeRisk:         a.Evaluation.AgeRisk,
		AgeRiskFlagged:  a.Evaluation.AgeRiskFlagged,
		MedicalRisks:    a.Evaluation.MedicalRisks,
		Recommendations: a.Evaluation.Recommendations,
		IsAIEnhanced:    a.IsAIEnhanced,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.AI != nil {
		analysis := a.AI.Analysis
		recs := a.AI.Recommendations
		resp.AIAnalysis = &analysis
		resp.AIRecommendations = &recs
		resp.AISource = a.AI.Source
	}
	return resp
}

func (a *App) getAssessment(c *gin.Context) {
	a.respondWithAssessment(c, a.assessments.GetAssessment)
}

func (a *App) refreshAssessment(c *gin.Context) {
	a.respondWithAssessment(c, a.assessments.RefreshAssessment)
}

func (a *App) respondWithAssessment(c *gin.Context, load func(context.Context, string) (*assessment.RiskAssessment, error)) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Token subject missing")
		return
	}

	result, err := load(c.Request.Context(), userID)
	if errors.Is(err, assessment.ErrProfileNotFound) {
		writeError(c, http.StatusNotFound, "Health profile not found")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Str("user_id", userID).Msg("health assessment failed")
		writeError(c, http.StatusInternalServerError, "Failed to produce health assessment")
		return
	}
	c.JSON(http.StatusOK, toAssessmentResponse(result))
}

func (a *App) pregnancyProgress(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Token subject missing")
		return
	}

	progress, stage, err := a.assessments.PregnancyProgress(c.Request.Context(), userID)
	if errors.Is(err, assessment.ErrPregnancyNotFound) {
		writeError(c, http.StatusNotFound, "Pregnancy information not found")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Str("user_id", userID).Msg("pregnancy progress failed")
		writeError(c, http.StatusInternalServerError, "Failed to compute pregnancy progress")
		return
	}
	c.JSON(http.StatusOK, progressResponse{
		CurrentWeek:   progress.Week,
		CurrentDay:    progress.DayInWeek,
		DaysRemaining: progress.DaysRemaining,
		Stage:         stage,
		StageLabel:    stage.Label(),
	})
}
