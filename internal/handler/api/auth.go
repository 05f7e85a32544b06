package api

import (
	"context"
	"errors"

	"PricePortal/internal/domain/models"
	xhttp "PricePortal/pkg/http"
	xlogger "PricePortal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AccountService is the auth usecase as seen by HTTP.
type AccountService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (*models.AccessToken, error)
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=150,excludesall= "`
	Password string `json:"password" validate:"required,max=128"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type registerResponse struct {
	Username string `json:"username"`
}

// AuthHandler serves registration and token endpoints.
type AuthHandler struct {
	logger   *xlogger.Logger
	accounts AccountService
	throttle echo.MiddlewareFunc
}

// NewAuthHandler wires the handlers; throttle may be nil to disable rate limiting.
func NewAuthHandler(logger *xlogger.Logger, accounts AccountService, throttle echo.MiddlewareFunc) *AuthHandler {
	return &AuthHandler{logger: logger.Component("auth_handler"), accounts: accounts, throttle: throttle}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.throttle != nil {
		mw = append(mw, h.throttle)
	}
	e.POST("/api/token/", h.Token, mw...)
	e.POST("/api/token/refresh/", h.RefreshToken, mw...)
	e.POST("/api/register/", h.Register, mw...)
}

func (h *AuthHandler) Token(c echo.Context) error {
	req := &credentialsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ErrorResponse(c, verr)
	}
	pair, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, "login", err)
	}
	return xhttp.SuccessResponse(c, pair)
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	req := &refreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ErrorResponse(c, verr)
	}
	access, err := h.accounts.Refresh(c.Request().Context(), req.Refresh)
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return xhttp.SuccessResponse(c, access)
}

func (h *AuthHandler) Register(c echo.Context) error {
	req := &credentialsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ErrorResponse(c, verr)
	}
	u, err := h.accounts.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, "register", err)
	}
	return xhttp.CreatedResponse(c, registerResponse{Username: u.Username})
}

func (h *AuthHandler) fail(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	if !asAppError(err, &appErr) {
		h.logger.Error("auth usecase error", xlogger.String("op", op), xlogger.Error(err))
	}
	return xhttp.ErrorResponse(c, err)
}

func asAppError(err error, target **xhttp.AppError) bool {
	return errors.As(err, target)
}
