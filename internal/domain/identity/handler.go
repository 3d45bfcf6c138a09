package identity

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
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)
	api.GET("/auth/verify", h.Verify)
	api.PUT("/auth/password", h.ChangePassword)

	admin := api.Group("/users", auth.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin))
	admin.GET("", h.ListUsers)
	admin.POST("", h.CreateUser)
	admin.PATCH("/:id/active", h.SetActive)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadBody(err)
	}
	res, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Register is kept so clients get a clear answer; accounts are created by
// administrators or the CLI.
func (h *Handler) Register(c echo.Context) error {
	return apperr.Forbidden("registration is disabled")
}

func (h *Handler) Verify(c echo.Context) error {
	p, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	u, err := h.svc.CurrentUser(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid": true,
		"user":  u,
	})
}

func (h *Handler) ChangePassword(c echo.Context) error {
	p, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadBody(err)
	}
	if err := h.svc.ChangePassword(c.Request().Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CreateUser(c echo.Context) error {
	p, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadBody(err)
	}
	u, err := h.svc.CreateUser(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) SetActive(c echo.Context) error {
	p, err := auth.MustPrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperr.Validation("invalid id")
	}
	var req SetActiveRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadBody(err)
	}
	if req.IsActive == nil {
		return apperr.Validation("isActive is required")
	}
	u, err := h.svc.SetActive(c.Request().Context(), p, id, *req.IsActive)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
