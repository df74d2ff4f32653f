// Package scenarioapi exposes the template/scenario engine (scenario.Service)
// over HTTP: template CRUD plus import/export, and run launch/cancel —
// the same operations the bridge-server CLI's replay command already
// performs, offered here for operator tooling that would rather drive
// the bridge over REST than shell out to the binary.
package scenarioapi

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/meddatabridge/pam-bridge/internal/domain/endpoint"
	"github.com/meddatabridge/pam-bridge/internal/domain/scenario"
)

type Handler struct {
	svc       *scenario.Service
	endpoints endpoint.Repository
}

func NewHandler(svc *scenario.Service, endpoints endpoint.Repository) *Handler {
	return &Handler{svc: svc, endpoints: endpoints}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/templates", h.ListTemplates)
	api.POST("/templates", h.ImportTemplate)
	api.GET("/templates/:id", h.GetTemplate)
	api.DELETE("/templates/:id", h.DeleteTemplate)
	api.GET("/templates/:id/export", h.ExportTemplate)

	api.POST("/runs", h.LaunchRun)
	api.GET("/runs/:id", h.GetRun)
	api.POST("/runs/:id/cancel", h.CancelRun)

	api.GET("/templates/:id/stats", h.TemplateStats)
}

func (h *Handler) ListTemplates(c echo.Context) error {
	templates, err := h.svc.Repo.ListTemplates(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, templates)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Repo.GetTemplateByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if t == nil {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Repo.DeleteTemplate(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ImportTemplate accepts one scenario template document in the same wire
// format ExportTemplate produces, and persists it, failing on a duplicate
// key unless the document supplies override_key.
func (h *Handler) ImportTemplate(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	t, err := h.svc.ImportTemplate(c.Request().Context(), body)
	if err != nil {
		if _, ok := err.(*scenario.ErrDuplicateKey); ok {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ExportTemplate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doc, err := h.svc.ExportTemplate(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, doc)
}

// launchRequest is the run-launch request body: either TemplateID or
// TemplateKey identifies the template (TemplateID wins if both are set).
type launchRequest struct {
	TemplateID        *uuid.UUID `json:"template_id,omitempty"`
	TemplateKey       string     `json:"template_key,omitempty"`
	EndpointID        uuid.UUID  `json:"endpoint_id"`
	Protocol          string     `json:"protocol"`
	DryRun            bool       `json:"dry_run"`
	StopOnError       bool       `json:"stop_on_error"`
	IPPPrefixOverride string     `json:"ipp_prefix_override,omitempty"`
	NDAPrefixOverride string     `json:"nda_prefix_override,omitempty"`
}

// LaunchRun materializes and replays a template against an endpoint, the
// HTTP counterpart of the bridge-server CLI's `replay` subcommand.
func (h *Handler) LaunchRun(c echo.Context) error {
	var req launchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	var tmpl *scenario.ScenarioTemplate
	var err error
	switch {
	case req.TemplateID != nil:
		tmpl, err = h.svc.Repo.GetTemplateByID(ctx, *req.TemplateID)
	case req.TemplateKey != "":
		tmpl, err = h.svc.Repo.GetTemplateByKey(ctx, req.TemplateKey)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "template_id or template_key is required")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if tmpl == nil {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}

	ep, err := h.endpoints.GetByID(ctx, req.EndpointID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ep == nil {
		return echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}

	protocol := scenario.ProtocolHL7v2
	if req.Protocol == string(scenario.ProtocolFHIR) {
		protocol = scenario.ProtocolFHIR
	}

	run, err := h.svc.LaunchRun(ctx, tmpl, ep, protocol, scenario.LaunchOptions{
		DryRun:            req.DryRun,
		StopOnError:       req.StopOnError,
		IPPPrefixOverride: req.IPPPrefixOverride,
		NDAPrefixOverride: req.NDAPrefixOverride,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, run)
}

func (h *Handler) GetRun(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Repo.GetRunByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if r == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, r)
}

// TemplateStats answers the run statistics aggregation endpoint, scoped to
// one template.
func (h *Handler) TemplateStats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	stats, err := h.svc.Stats(c.Request().Context(), &id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) CancelRun(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
