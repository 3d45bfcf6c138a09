package patient

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/search/:query", h.Search)
	g.GET("/:id/stats", h.Stats)
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

func (h *Handler) Create(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperr.BadBody(err)
	}
	p, err := h.svc.Create(c.Request().Context(), pr, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
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
	p, err := h.svc.Get(c.Request().Context(), pr, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status"), Search: c.QueryParam("search")}
	items, total, err := h.svc.List(c.Request().Context(), pr, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Search(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	items, err := h.svc.Search(c.Request().Context(), pr, c.Param("query"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Stats(c echo.Context) error {
	pr, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), pr, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
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
	p, err := h.svc.Update(c.Request().Context(), pr, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// deleteResponse is the body of DELETE /patients/:id.
type deleteResponse struct {
	Message string `json:"message"`
	CascadeResult
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
	res, err := h.svc.Delete(c.Request().Context(), pr, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleteResponse{Message: res.Summary(), CascadeResult: *res})
}
