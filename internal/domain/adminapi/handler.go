// Package adminapi exposes the canonical store over HTTP for operators and
// downstream reporting tools: patients, dossiers, venues, the structure
// hierarchy, and the message log, all read-only. It never mutates domain
// state — every write path runs through the inbound pipeline, the outbound
// generator, or the scenario engine instead.
package adminapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/meddatabridge/pam-bridge/internal/domain/dossier"
	"github.com/meddatabridge/pam-bridge/internal/domain/messagelog"
	"github.com/meddatabridge/pam-bridge/internal/domain/patient"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
	"github.com/meddatabridge/pam-bridge/pkg/pagination"
)

// Handler wires the admin read API's routes to the domain services that
// already hold the canonical store, mirroring how the teacher's own
// person.Handler holds nothing but a *Service per resource.
type Handler struct {
	Patients  *patient.Service
	Dossiers  *dossier.Service
	Venues    *venue.Service
	Structure *structure.Service
	Log       *messagelog.Service
}

func NewHandler(patients *patient.Service, dossiers *dossier.Service, venues *venue.Service, structSvc *structure.Service, log *messagelog.Service) *Handler {
	return &Handler{Patients: patients, Dossiers: dossiers, Venues: venues, Structure: structSvc, Log: log}
}

// RegisterRoutes mounts the admin read API under api, an echo.Group
// already scoped to e.g. "/api/v1/admin".
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients", h.FindPatientByIdentifier)
	api.GET("/dossiers/:id", h.GetDossier)
	api.GET("/venues/:id", h.GetVenue)
	api.GET("/venues/:id/movements", h.GetVenueMovements)
	api.GET("/structure/:juridicalEntityId/tree", h.GetStructureTree)
	api.GET("/messages", h.ListMessages)
	api.GET("/messages/:id", h.GetMessage)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.Patients.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

// FindPatientByIdentifier resolves a patient owning (namespace_id, value),
// the admin read API's "GET patient by identifier".
func (h *Handler) FindPatientByIdentifier(c echo.Context) error {
	namespaceID, err := uuid.Parse(c.QueryParam("namespace_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or missing namespace_id")
	}
	value := c.QueryParam("value")
	if value == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing value")
	}
	p, err := h.Patients.Resolve(c.Request().Context(), namespaceID, value)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetDossier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.Dossiers.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if d == nil {
		return echo.NewHTTPError(http.StatusNotFound, "dossier not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetVenue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.Venues.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if v == nil {
		return echo.NewHTTPError(http.StatusNotFound, "venue not found")
	}
	return c.JSON(http.StatusOK, v)
}

// GetVenueMovements returns just the movement history, since Movement is
// embedded on Venue rather than queried separately.
func (h *Handler) GetVenueMovements(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.Venues.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if v == nil {
		return echo.NewHTTPError(http.StatusNotFound, "venue not found")
	}
	return c.JSON(http.StatusOK, v.Movements)
}

func (h *Handler) GetStructureTree(c echo.Context) error {
	juridicalEntityID, err := uuid.Parse(c.Param("juridicalEntityId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid juridical entity id")
	}
	tree, err := h.Structure.Tree(c.Request().Context(), juridicalEntityID)
	if err != nil {
		var nf *structure.NotFoundError
		if errors.As(err, &nf) {
			return echo.NewHTTPError(http.StatusNotFound, "juridical entity not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tree)
}

// ListMessages answers the admin read API's "GET message log by
// correlation id/status/endpoint", every filter optional.
func (h *Handler) ListMessages(c echo.Context) error {
	var f messagelog.Filter
	if v := c.QueryParam("correlation_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid correlation_id")
		}
		f.CorrelationID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		s := messagelog.Status(v)
		f.Status = &s
	}
	if v := c.QueryParam("endpoint_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid endpoint_id")
		}
		f.EndpointID = &id
	}

	pg := pagination.FromContext(c)
	entries, total, err := h.Log.Find(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetMessage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.Log.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if e == nil {
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	return c.JSON(http.StatusOK, e)
}
