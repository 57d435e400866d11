// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/taskflo/taskflo/internal/handler"
	"github.com/taskflo/taskflo/internal/middleware"
)

// Register attaches every route of the API to the provided Echo instance.
// The /v1/auth group is public and rate limited (login, registration and
// both password-recovery endpoints are the brute-forceable surface); the
// /v1 group requires a valid Bearer access token, so task handlers always
// see an authenticated principal.
func Register(e *echo.Echo, a *handler.AuthHandler, p *handler.PasswordHandler, t *handler.TaskHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1/auth")
	if limit != nil {
		auth.Use(limit)
	}
	auth.POST("/register", a.Register)
	auth.POST("/login", a.Login)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/logout", a.Logout)
	auth.POST("/forgot-password", p.ForgotPassword)
	auth.POST("/reset-password", p.ResetPassword)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.GET("/me", a.Me)
	v1.POST("/tasks", t.Create)
	v1.GET("/tasks", t.List)
	v1.PATCH("/tasks/:id", t.SetCompleted)
	v1.DELETE("/tasks/:id", t.Delete)
}
