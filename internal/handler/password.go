package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskflo/taskflo/internal/service"
)

// genericResetMsg is the one and only body ForgotPassword produces for a
// well-formed request.  Registered and unregistered addresses, store
// hiccups and dispatch failures all get this exact acknowledgement, so the
// endpoint cannot be used to probe which emails have accounts.
const genericResetMsg = "If that email is registered, a password reset link has been sent."

// PasswordHandler exposes the password-recovery endpoints on top of the
// recovery service.
type PasswordHandler struct {
	Recovery *service.Recovery
}

func NewPasswordHandler(r *service.Recovery) *PasswordHandler {
	return &PasswordHandler{Recovery: r}
}

type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ForgotPassword handles POST /v1/auth/forgot-password.  The only
// distinguishable rejection is a missing email field, which carries no
// information about account existence.
func (h *PasswordHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Email is required"})
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	h.Recovery.RequestReset(ctx, req.Email)
	return c.JSON(http.StatusOK, echo.Map{"message": genericResetMsg})
}

// ResetPassword handles POST /v1/auth/reset-password.  Validation failures
// are reported specifically; everything that depends on the token collapses
// into one "Invalid or expired token" answer.
func (h *PasswordHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Token and password are required"})
	}
	if req.Token == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Token and password are required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Password must be at least 8 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Recovery.RedeemReset(ctx, req.Token, req.Password); err != nil {
		if err == service.ErrInvalidOrExpired {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Something went wrong"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successful"})
}
