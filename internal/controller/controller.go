package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/service"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/util"
)

const (
	RefreshTokenCookieName = "refresh_token"
	refreshCookiePath      = "/api/v1/auth"

	// ContextUserIDKey is set by the bearer-auth middleware.
	ContextUserIDKey = "userID"
)

type Controller struct {
	log          *zap.SugaredLogger
	authService  *service.AuthService
	verification *service.VerificationService
	cfg          *util.ServerConfig
}

func NewController(log *zap.SugaredLogger, authService *service.AuthService, verification *service.VerificationService, cfg *util.ServerConfig) *Controller {
	return &Controller{
		log:          log,
		authService:  authService,
		verification: verification,
		cfg:          cfg,
	}
}

// (GET /api/v1/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/v1/auth/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := c.authService.Register(ctx.Request().Context(), req)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, models.NewUserResponse(user))
}

// (POST /api/v1/auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pair, _, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password, clientMetadata(ctx))
	if err != nil {
		return err
	}

	ctx.SetCookie(c.newRefreshCookie(pair.RefreshToken, time.Until(pair.RefreshExpiresAt)))

	return ctx.JSON(http.StatusOK, models.TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
	})
}

// (POST /api/v1/auth/refresh).
//
// The refresh token travels only in the HttpOnly cookie, never in the body,
// so it stays out of reach of script. A rejected rotation clears the cookie
// and yields one generic 401; a store failure keeps the cookie, the session
// is still valid server-side.
func (c *Controller) Refresh(ctx echo.Context) error {
	cookie, err := ctx.Cookie(RefreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		ctx.SetCookie(c.expiredRefreshCookie())
		return service.ErrSessionInvalid
	}

	pair, err := c.authService.Refresh(ctx.Request().Context(), cookie.Value, clientMetadata(ctx))
	if err != nil {
		if errors.Is(err, service.ErrSessionInvalid) {
			ctx.SetCookie(c.expiredRefreshCookie())
		}
		return err
	}

	ctx.SetCookie(c.newRefreshCookie(pair.RefreshToken, time.Until(pair.RefreshExpiresAt)))

	return ctx.JSON(http.StatusOK, models.TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
	})
}

// (POST /api/v1/auth/logout).
//
// Always succeeds, whether or not a matching session existed.
func (c *Controller) Logout(ctx echo.Context) error {
	var presented string
	if cookie, err := ctx.Cookie(RefreshTokenCookieName); err == nil {
		presented = cookie.Value
	}

	if err := c.authService.Logout(ctx.Request().Context(), presented, clientMetadata(ctx)); err != nil {
		return err
	}

	ctx.SetCookie(c.expiredRefreshCookie())

	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Successfully logged out"})
}

// (POST /api/v1/auth/logout-all).
func (c *Controller) LogoutAll(ctx echo.Context) error {
	userID, ok := ctx.Get(ContextUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	revoked, err := c.authService.LogoutAll(ctx.Request().Context(), userID, clientMetadata(ctx))
	if err != nil {
		return err
	}

	ctx.SetCookie(c.expiredRefreshCookie())

	return ctx.JSON(http.StatusOK, map[string]any{
		"message":          "All sessions logged out",
		"sessions_revoked": revoked,
	})
}

// (GET /api/v1/auth/me).
func (c *Controller) Me(ctx echo.Context) error {
	userID, ok := ctx.Get(ContextUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	user, err := c.authService.GetUser(ctx.Request().Context(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.NewUserResponse(user))
}

// (POST /api/v1/auth/verify/request).
func (c *Controller) RequestVerification(ctx echo.Context) error {
	userID, ok := ctx.Get(ContextUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	user, err := c.authService.GetUser(ctx.Request().Context(), userID)
	if err != nil {
		return err
	}

	token, err := c.verification.Request(ctx.Request().Context(), user, clientMetadata(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"message":    "Verification token issued",
		"token":      token.Token,
		"expires_at": token.ExpiresAt,
	})
}

// (GET /api/v1/auth/verify).
func (c *Controller) VerifyEmail(ctx echo.Context) error {
	token := ctx.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token query parameter is required")
	}

	user, err := c.verification.Confirm(ctx.Request().Context(), token, clientMetadata(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.NewUserResponse(user))
}

func (c *Controller) newRefreshCookie(value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshTokenCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// expiredRefreshCookie emits Max-Age=0 so the client drops the cookie.
func (c *Controller) expiredRefreshCookie() *http.Cookie {
	cookie := c.newRefreshCookie("", 0)
	cookie.MaxAge = -1
	return cookie
}

func clientMetadata(ctx echo.Context) models.ClientMetadata {
	return models.ClientMetadata{
		IPAddress: ctx.RealIP(),
		UserAgent: ctx.Request().UserAgent(),
	}
}
