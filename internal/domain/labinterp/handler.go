package labinterp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicapp/clinic/internal/platform/auth"
	"github.com/clinicapp/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, physician, nurse, lab_tech
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "lab_tech"))
	readGroup.GET("/lab-catalog", h.ListCategories)
	readGroup.GET("/lab-catalog/:id", h.GetCategory)
	readGroup.GET("/lab-results", h.ListLabResults)
	readGroup.GET("/lab-results/:id", h.GetLabResult)
	readGroup.GET("/lab-results/:id/interpretation", h.InterpretLabResult)
	readGroup.GET("/patients/:patient_id/lab-interpretations", h.InterpretPatient)
	readGroup.POST("/lab-interpretations", h.InterpretRaw)

	// Write endpoints – admin, physician, lab_tech
	writeGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_tech"))
	writeGroup.POST("/lab-results", h.CreateLabResult)
	writeGroup.PUT("/lab-results/:id", h.UpdateLabResult)
	writeGroup.DELETE("/lab-results/:id", h.DeleteLabResult)
}

// -- Catalog Handlers --

func (h *Handler) ListCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Catalog().Categories())
}

func (h *Handler) GetCategory(c echo.Context) error {
	cat, ok := h.svc.Catalog().Category(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "lab category not found")
	}
	return c.JSON(http.StatusOK, cat)
}

// -- Lab Result Handlers --

func (h *Handler) CreateLabResult(c echo.Context) error {
	var lr LabResult
	if err := c.Bind(&lr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateLabResult(c.Request().Context(), &lr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, lr)
}

func (h *Handler) GetLabResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	lr, err := h.svc.GetLabResult(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "lab result not found")
	}
	return c.JSON(http.StatusOK, lr)
}

func (h *Handler) ListLabResults(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pid, err := uuid.Parse(patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	items, total, err := h.svc.ListLabResultsByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateLabResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var lr LabResult
	if err := c.Bind(&lr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	lr.ID = id
	if err := h.svc.UpdateLabResult(c.Request().Context(), &lr); err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "lab result not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, lr)
}

func (h *Handler) DeleteLabResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteLabResult(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Interpretation Handlers --

// interpretRequest is the body of POST /lab-interpretations.
type interpretRequest struct {
	Category   string          `json:"category,omitempty"`
	RawResults json.RawMessage `json:"raw_results"`
}

func (h *Handler) InterpretRaw(c echo.Context) error {
	var req interpretRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in, err := h.svc.InterpretRaw(c.Request().Context(), req.Category, req.RawResults)
	if err != nil {
		if errors.Is(err, ErrUnknownCategory) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) InterpretLabResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	in, err := h.svc.InterpretLabResult(c.Request().Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "lab result not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) InterpretPatient(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	pg := pagination.FromContext(c)
	items, err := h.svc.InterpretPatient(c.Request().Context(), pid, pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
