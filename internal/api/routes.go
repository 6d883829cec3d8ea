// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-risk/internal/control"
	"github.com/joeblew999/plat-risk/internal/layer"
	"github.com/joeblew999/plat-risk/internal/service"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Atlas   *service.AtlasService
	DB      *sql.DB
	DataDir string
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services) {
	h := NewAPIHandler(svc)
	h.RegisterHealth(api)
	h.RegisterLayers(api)
	h.RegisterViewport(api)
	h.RegisterDatasets(api)

	NewInfoHandler(svc.DataDir, svc.DB != nil).RegisterRoutes(api)
	NewDBHandler(svc.DB).RegisterRoutes(api)
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
	Loaded  bool   `json:"loaded" doc:"Whether an atlas has been built"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

// APIHandler holds the atlas REST handlers.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	_, err := h.svc.Atlas.Current()
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version, Loaded: err == nil}}, nil
}

func (h *APIHandler) snapshot() (*service.Snapshot, error) {
	snap, err := h.svc.Atlas.Current()
	if err != nil {
		return nil, problem(err)
	}
	return snap, nil
}

// problem maps domain errors onto HTTP status codes.
func problem(err error) error {
	switch {
	case errors.Is(err, service.ErrNotLoaded):
		return huma.Error503ServiceUnavailable("Atlas is still loading")
	case errors.Is(err, control.ErrUnknownLayer), errors.Is(err, layer.ErrFeatureIndex):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, control.ErrNotBase), errors.Is(err, control.ErrNotOverlay):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError("Internal error", err)
	}
}
