package scheduling

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/pkg/dates"
	"github.com/psiclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/upcoming", h.Upcoming)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

func parseFilter(c echo.Context) (ListFilter, error) {
	f := ListFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("patientId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, apperr.Validation("invalid patientId")
		}
		f.PatientID = &id
	}
	r, err := dates.ParseRange(c.QueryParam("startDate"), c.QueryParam("endDate"))
	if err != nil {
		return f, apperr.Validation(err.Error())
	}
	f.Range = r
	return f, nil
}

func (h *Handler) Create(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperr.BadBody(err)
	}
	a, err := h.svc.Create(c.Request().Context(), pr, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), pr, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pr, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Upcoming(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	items, err := h.svc.Upcoming(c.Request().Context(), pr)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Update(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperr.BadBody(err)
	}
	a, err := h.svc.Update(c.Request().Context(), pr, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), pr, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
