package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"momcare/apps/backend/internal/assessment"
	"momcare/apps/backend/internal/config"
	"momcare/apps/backend/internal/observability"
	"momcare/apps/backend/internal/pregnancy"
)

const (
	userIDKey    = "authUserID"
	probeTimeout = 5 * time.Second
)

// Assessments is the part of assessment.Service the HTTP layer needs.
type Assessments interface {
	GetAssessment(ctx context.Context, userID string) (*assessment.RiskAssessment, error)
	RefreshAssessment(ctx context.Context, userID string) (*assessment.RiskAssessment, error)
	PregnancyProgress(ctx context.Context, userID string) (pregnancy.Progress, pregnancy.Stage, error)
}

// AIProbe reports whether the AI provider currently answers.
type AIProbe interface {
	Available(ctx context.Context) bool
}

type Deps struct {
	Assessments Assessments
	// AI is nil when AI analysis is switched off.
	AI     AIProbe
	Logger zerolog.Logger
}

type App struct {
	cfg         config.Config
	assessments Assessments
	ai          AIProbe
	log         zerolog.Logger
}

func New(cfg config.Config, deps Deps) *App {
	return &App{
		cfg:         cfg,
		assessments: deps.Assessments,
		ai:          deps.AI,
		log:         deps.Logger.With().Str("component", "http").Logger(),
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(observability.RequestLogger(a.log), observability.Recovery(a.log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", observability.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", observability.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	router.GET("/health/ai", a.aiHealth)

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.GET("/health-assessment", a.getAssessment)
	api.POST("/health-assessment/refresh", a.refreshAssessment)
	api.GET("/pregnancy/progress", a.pregnancyProgress)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "momcare-api",
	})
}

func (a *App) aiHealth(c *gin.Context) {
	available := false
	if a.ai != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		available = a.ai.Available(ctx)
		cancel()
	}
	c.JSON(http.StatusOK, gin.H{"ai_available": available})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		c.Set(userIDKey, sub)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func userIDFromContext(c *gin.Context) (string, bool) {
	raw, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	return id, ok && id != ""
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
