package reporting

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/pkg/dates"
)

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	svc *Service
}

// NewHandler creates a new reporting handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports")
	g.GET("/financial", h.Financial)
	g.GET("/patients", h.Patients)
	g.GET("/sessions", h.Sessions)
	g.GET("/appointments", h.Appointments)
	g.GET("/dashboard", h.Dashboard)
}

// request resolves the principal and the optional startDate/endDate window.
func request(c echo.Context) (auth.Principal, Filter, error) {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return pr, Filter{}, err
	}
	r, err := dates.ParseRange(c.QueryParam("startDate"), c.QueryParam("endDate"))
	if err != nil {
		return pr, Filter{}, apperr.Validation(err.Error())
	}
	return pr, Filter{Range: r}, nil
}

func (h *Handler) Financial(c echo.Context) error {
	pr, f, err := request(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.Financial(c.Request().Context(), pr, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Patients(c echo.Context) error {
	pr, f, err := request(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.Patients(c.Request().Context(), pr, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Sessions(c echo.Context) error {
	pr, f, err := request(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.Sessions(c.Request().Context(), pr, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Appointments(c echo.Context) error {
	pr, f, err := request(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.Appointments(c.Request().Context(), pr, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Dashboard(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), pr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
