package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/models"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/service"
)

const (
	tokenHeader       = "X-Token"
	sessionContextKey = "session"
	censoredValue     = "$censored"
)

var (
	Module = fx.Options(
		fx.Provide(NewHTTPServer),
		fx.Invoke(func(*HTTPServer) {}),
	)
)

type (
	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		e       *echo.Echo
		general *service.General
		logger  *zap.SugaredLogger
	}
)

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, general *service.General, logger *zap.SugaredLogger) *HTTPServer {
	instance := New(cfg, general, logger)
	e := instance.e

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.ListenAddr()
				logger.Infow("Starting HTTP server.", "addr", listen)
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					logger.Fatalw("shutting down the server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return instance
}

// New builds the echo instance without binding a listener.
func New(cfg *config.Config, general *service.General, logger *zap.SugaredLogger) *HTTPServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	instance := HTTPServer{
		e:       e,
		general: general,
		logger:  logger,
	}

	e.POST("/signup", instance.Signup)
	e.POST("/login", instance.Login)
	e.POST("/bookmarks", instance.SaveBookmarks)
	e.POST("/logout", instance.Logout)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(instance.RequestLogger())
	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: func(echo.Context) bool { return !cfg.Debug },
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			logger.Debugw("body dump",
				"path", c.Path(),
				"request", string(censorBody(reqBody)),
				"response", string(resBody),
			)
		},
	}))
	e.Use(middleware.Recover())

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = instance.ErrorHandler

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	return &instance
}

func (s *HTTPServer) Handler() http.Handler {
	return s.e
}

func (s *HTTPServer) Signup(c echo.Context) error {
	req := models.CredentialsReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.general.Signup(c.Request().Context(), *req.Username, *req.Password); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.MessageResp{Message: models.MsgUserCreated})
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := models.CredentialsReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := s.general.Login(c.Request().Context(), *req.Username, *req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.LoginResp{
		Message:   models.MsgLoginSuccess,
		Username:  res.Username,
		Bookmarks: res.Bookmarks,
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) SaveBookmarks(c echo.Context) error {
	req := models.BookmarksReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	err := s.general.SaveBookmarks(c.Request().Context(), GetSessionFromContext(c), *req.Username, req.Bookmarks)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.MessageResp{Message: models.MsgBookmarksSaved})
}

func (s *HTTPServer) Logout(c echo.Context) error {
	if err := s.general.Logout(c.Request().Context(), c.Request().Header.Get(tokenHeader)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.MessageResp{Message: models.MsgLoggedOut})
}

// AuthMiddleware attaches the session of a valid X-Token header to the
// context. Requests without one pass through, operations decide whether
// they need it.
func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(tokenHeader)
		if token == "" {
			return next(c)
		}

		session, err := s.general.Authenticate(c.Request().Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthorized) {
				return err
			}
			return next(c)
		}

		c.Set(sessionContextKey, session)
		return next(c)
	}
}

func (s *HTTPServer) ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := http.StatusInternalServerError, models.MsgInternalError
	var he *echo.HTTPError
	switch {
	case errors.Is(err, service.ErrUserExists):
		status, msg = http.StatusBadRequest, models.MsgUserExists
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = http.StatusBadRequest, models.MsgInvalidCredentials
	case errors.Is(err, service.ErrUserNotFound):
		status, msg = http.StatusBadRequest, models.MsgUserNotFound
	case errors.Is(err, service.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, models.MsgUnauthorized
	case errors.As(err, &he):
		status = he.Code
		switch status {
		case http.StatusNotFound:
			if rErr := c.NoContent(status); rErr != nil {
				s.logger.Errorw("write response", "error", rErr)
			}
			return
		case http.StatusBadRequest:
			msg = models.MsgInvalidRequest
		default:
			msg = http.StatusText(status)
		}
	default:
		s.logger.Errorw("request failed", "path", c.Path(), "error", err)
	}

	if rErr := c.JSON(status, models.MessageResp{Message: msg}); rErr != nil {
		s.logger.Errorw("write response", "error", rErr)
	}
}

func (s *HTTPServer) RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Infow("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	})
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// GetSessionFromContext returns nil when the request carried no valid token.
func GetSessionFromContext(c echo.Context) *service.Session {
	session, ok := c.Get(sessionContextKey).(*service.Session)
	if !ok {
		return nil
	}
	return session
}

// censorBody hides the password of a JSON body before it is logged.
func censorBody(body []byte) []byte {
	fields := map[string]interface{}{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}
	if _, ok := fields["password"]; !ok {
		return body
	}
	fields["password"] = censoredValue
	censored, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return censored
}
