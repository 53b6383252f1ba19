package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/domain/integration"
	"github.com/erp/erpcore/internal/infrastructure/erp"
	"github.com/erp/erpcore/internal/infrastructure/logger"
	"github.com/erp/erpcore/internal/interfaces/http/dto"
	"github.com/erp/erpcore/internal/interfaces/http/middleware"
)

// ErrCodeERPUnavailable reports a tenant whose backend failed its health probe
const ErrCodeERPUnavailable = "ERP_UNAVAILABLE"

// IntegrationService is the part of the provider factory the ops API uses
type IntegrationService interface {
	Statistics() []integration.ActorStatistics
	SupportedTypes() []string
	ProviderFor(ctx context.Context, tenant *integration.TenantContext) (integration.Provider, error)
	Remove(ctx context.Context, tenantID uuid.UUID) error
}

// IntegrationHandler exposes actor statistics, supported ERP types and
// per-tenant health
type IntegrationHandler struct {
	BaseHandler
	service IntegrationService
}

// NewIntegrationHandler creates an IntegrationHandler
func NewIntegrationHandler(service IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{service: service}
}

// ProvidersResponse lists the registered ERP types
type ProvidersResponse struct {
	Types []string `json:"types"`
}

// ActorsResponse lists live tenant actors
type ActorsResponse struct {
	Actors []integration.ActorStatistics `json:"actors"`
	Count  int                           `json:"count"`
}

// TenantHealthResponse is the result of a tenant health probe
type TenantHealthResponse struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	ERPType   string    `json:"erp_type"`
	Available bool      `json:"available"`
	LatencyMS int64     `json:"latency_ms"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// CapabilitiesResponse is a tenant's capability descriptor
type CapabilitiesResponse struct {
	TenantID     uuid.UUID                `json:"tenant_id"`
	ERPType      string                   `json:"erp_type"`
	Capabilities integration.Capabilities `json:"capabilities"`
}

// RegisterRoutes implements router.RouteRegistrar
func (h *IntegrationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/integration")
	g.GET("/actors", h.ListActors)
	g.GET("/providers", h.ListProviders)
	g.GET("/tenants/:id/health", h.TenantHealth)
	g.GET("/tenants/:id/capabilities", h.TenantCapabilities)
	g.DELETE("/tenants/:id/actor", h.RemoveActor)
}

// ListActors returns per-tenant actor counters
func (h *IntegrationHandler) ListActors(c *gin.Context) {
	stats := h.service.Statistics()
	if stats == nil {
		stats = []integration.ActorStatistics{}
	}
	h.Success(c, ActorsResponse{Actors: stats, Count: len(stats)})
}

// ListProviders returns the supported ERP types
func (h *IntegrationHandler) ListProviders(c *gin.Context) {
	h.Success(c, ProvidersResponse{Types: h.service.SupportedTypes()})
}

// TenantHealth probes the tenant's backend. An unavailable backend answers
// 503 with the probe result; a failed probe answers with the failure.
func (h *IntegrationHandler) TenantHealth(c *gin.Context) {
	tenant, provider, ok := h.resolve(c)
	if !ok {
		return
	}

	res, err := provider.CheckHealth(c.Request.Context(), tenant)
	if err != nil {
		h.Error(c, err)
		return
	}
	if res.IsFailure() {
		c.JSON(http.StatusBadGateway, dto.NewErrorResponse(dto.FailureInfo(res.Failure()), middleware.GetRequestID(c)))
		return
	}

	status := res.Value()
	body := TenantHealthResponse{
		TenantID:  tenant.TenantID(),
		ERPType:   provider.Type().String(),
		Available: status.Available,
		LatencyMS: status.Latency.Milliseconds(),
		Message:   status.Message,
		CheckedAt: status.CheckedAt,
	}
	if !status.Available {
		logger.L(c.Request.Context()).Warn("Tenant ERP backend unavailable", zap.String("message", status.Message))
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success:   false,
			Data:      body,
			Error:     &dto.ErrorInfo{Code: ErrCodeERPUnavailable, Message: status.Message, Retryable: true},
			RequestID: middleware.GetRequestID(c),
		})
		return
	}
	h.Success(c, body)
}

// TenantCapabilities returns what the tenant's backend supports
func (h *IntegrationHandler) TenantCapabilities(c *gin.Context) {
	tenant, provider, ok := h.resolve(c)
	if !ok {
		return
	}
	caps, err := provider.Capabilities(c.Request.Context(), tenant)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, CapabilitiesResponse{
		TenantID:     tenant.TenantID(),
		ERPType:      provider.Type().String(),
		Capabilities: caps,
	})
}

// RemoveActor disposes the tenant's actor; the next request recreates it
func (h *IntegrationHandler) RemoveActor(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), tenantID); err != nil {
		h.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *IntegrationHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		h.BadRequest(c, "tenant id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// resolve builds the tenant context and obtains its provider handle
func (h *IntegrationHandler) resolve(c *gin.Context) (*integration.TenantContext, integration.Provider, bool) {
	id, ok := h.tenantID(c)
	if !ok {
		return nil, nil, false
	}
	tenant, err := integration.NewTenantContext(id, nil)
	if err != nil {
		h.BadRequest(c, err.Error())
		return nil, nil, false
	}

	ctx, _ := logger.WithTenant(c.Request.Context(), logger.GetGinLogger(c), tenant)
	c.Request = c.Request.WithContext(ctx)

	provider, err := h.service.ProviderFor(ctx, tenant)
	if errors.Is(err, erp.ErrTenantNotConfigured) {
		h.NotFound(c, "tenant has no ERP configuration")
		return nil, nil, false
	}
	if err != nil {
		h.Error(c, err)
		return nil, nil, false
	}
	return tenant, provider, true
}

var _ IntegrationService = (*erp.ProviderFactory)(nil)
