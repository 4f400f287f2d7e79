package controller

import "github.com/labstack/echo/v4"

// RouteMiddlewares carries the middlewares the api layer wants applied to
// specific routes.
type RouteMiddlewares struct {
	RequireAuth echo.MiddlewareFunc
	LoginLimit  echo.MiddlewareFunc
}

func RegisterHandlersWithBaseURL(e *echo.Echo, c *Controller, mw RouteMiddlewares, base string) {
	g := e.Group(base)
	g.GET("/ping", c.CheckServer)

	auth := g.Group("/auth")
	auth.POST("/register", c.Register, mw.LoginLimit)
	auth.POST("/login", c.Login, mw.LoginLimit)
	auth.POST("/refresh", c.Refresh)
	auth.POST("/logout", c.Logout)
	auth.POST("/logout-all", c.LogoutAll, mw.RequireAuth)
	auth.GET("/me", c.Me, mw.RequireAuth)
	auth.POST("/verify/request", c.RequestVerification, mw.RequireAuth, mw.LoginLimit)
	auth.GET("/verify", c.VerifyEmail)
}
