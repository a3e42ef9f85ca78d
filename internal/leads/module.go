// Package leads provides the lead intake bounded context: the idempotent
// intake gateway and the read-side lookups for leads and their insights.
package leads

import (
	"lead_triage_backend/internal/leads/cache"
	"lead_triage_backend/internal/leads/handler"
	"lead_triage_backend/internal/leads/repository"
	"lead_triage_backend/internal/leads/service"
	"lead_triage_backend/internal/stream"
	"lead_triage_backend/internal/stream/outbox"
	"lead_triage_backend/platform/config"
	"lead_triage_backend/platform/logger"
	"lead_triage_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the leads bounded context module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the leads module with all its
// dependencies. redisClient may be nil; the gateway then runs without the
// response cache fast path.
func NewModule(pool *pgxpool.Pool, redisClient *redis.Client, publisher *stream.Publisher, cfg config.IntakeConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	var responseCache service.ResponseCache
	if redisClient != nil {
		responseCache = cache.New(redisClient, cfg.GetIdempotencyCacheTTL())
	}

	svc := service.New(repo, responseCache, publisher, outbox.New(pool), log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead routes on the provided router group.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	leadsGroup := api.Group("/leads")
	leadsGroup.POST("", m.handler.Create)
	leadsGroup.GET("/:id", m.handler.GetByID)
	leadsGroup.GET("/:id/insight", m.handler.GetInsight)
}
