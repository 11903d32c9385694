// Package httpapi exposes the scoring session over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/lead-scorer/internal/leads"
	"github.com/spigell/lead-scorer/internal/scoring"
	"github.com/spigell/lead-scorer/internal/session"
)

// DefaultMaxUploadBytes caps lead uploads when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// Runner executes a scoring run over the session.
type Runner interface {
	Run(ctx context.Context) (leads.Results, scoring.Summary, error)
}

// Config tunes the HTTP surface.
type Config struct {
	CORSOrigins    []string `mapstructure:"cors-origins"`
	MaxUploadBytes int64    `mapstructure:"max-upload-bytes"`
}

type handler struct {
	session        *session.Session
	scorer         Runner
	maxUploadBytes int64
}

// NewRouter builds the gin engine serving s.
func NewRouter(s *session.Session, scorer Runner, cfg Config, log *zap.Logger) *gin.Engine {
	h := &handler{
		session:        s,
		scorer:         scorer,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = DefaultMaxUploadBytes
	}

	engine := gin.New()
	engine.MaxMultipartMemory = h.maxUploadBytes
	engine.Use(RequestID())
	engine.Use(AccessLog(log))
	engine.Use(Recovery(log))
	engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	engine.GET("/", h.index)
	engine.GET("/health", h.health)

	engine.POST("/offer", h.setOffer)
	engine.PUT("/offer", h.setOffer)
	engine.GET("/offer", h.getOffer)

	engine.POST("/leads/upload", h.uploadLeads)
	engine.POST("/leads", h.setLeads)
	engine.GET("/leads", h.getLeads)

	engine.POST("/score", h.score)
	engine.GET("/results", h.results)
	engine.GET("/results/export", h.exportResults)

	engine.DELETE("/session", h.resetSession)

	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
