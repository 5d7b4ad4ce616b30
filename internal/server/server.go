// Package server exposes the ranking operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/logger"
	"github.com/spigell/roommate-matcher/internal/matcherr"
	"github.com/spigell/roommate-matcher/internal/ranking"
	"github.com/spigell/roommate-matcher/internal/scoring"
)

const shutdownTimeout = 10 * time.Second

// Ranker is the ranking surface served over HTTP.
type Ranker interface {
	Recommend(ctx context.Context, userID string, opts ranking.RecommendOptions) ([]*scoring.CompatibilityScore, error)
	Compare(ctx context.Context, userA, userB string, enhanced bool) (*scoring.CompatibilityScore, error)
}

// Check is a named dependency probe reported by /healthz.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Server wires the ranking API, health and metrics endpoints.
type Server struct {
	echo   *echo.Echo
	ranker Ranker
	checks []Check
	logger *zap.Logger
}

// RecommendationsResponse is the body of the recommendations endpoint.
type RecommendationsResponse struct {
	Recommendations []*scoring.CompatibilityScore `json:"recommendations"`
}

// NoMatchResponse is returned by the compare endpoint when the pair is not a match.
type NoMatchResponse struct {
	Match *scoring.CompatibilityScore `json:"match"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse reports the state of every configured check.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func New(ranker Ranker, log *zap.Logger, checks ...Check) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		ranker: ranker,
		checks: checks,
		logger: logger.WithFields(log),
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(requestID(), s.accessLog())

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.GET("/recommendations/:userId", s.recommendations)
	api.GET("/compare/:userA/:userB", s.compare)

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("address", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) recommendations(c echo.Context) error {
	opts := ranking.RecommendOptions{Region: strings.TrimSpace(c.QueryParam("region"))}

	if raw := c.QueryParam("minScore"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 || value > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "minScore must be a number between 0 and 100")
		}
		opts.MinScore = &value
	}

	if raw := c.QueryParam("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		opts.Limit = value
	}

	if raw := c.QueryParam("enhanced"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "enhanced must be a boolean")
		}
		opts.Enhanced = &value
	}

	scores, err := s.ranker.Recommend(c.Request().Context(), c.Param("userId"), opts)
	if err != nil {
		return err
	}
	if scores == nil {
		scores = []*scoring.CompatibilityScore{}
	}

	return c.JSON(http.StatusOK, RecommendationsResponse{Recommendations: scores})
}

func (s *Server) compare(c echo.Context) error {
	enhanced := false
	if raw := c.QueryParam("enhanced"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "enhanced must be a boolean")
		}
		enhanced = value
	}

	score, err := s.ranker.Compare(c.Request().Context(), c.Param("userA"), c.Param("userB"), enhanced)
	if err != nil {
		return err
	}
	if score == nil {
		return c.JSON(http.StatusOK, NoMatchResponse{})
	}

	return c.JSON(http.StatusOK, score)
}

func (s *Server) health(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	code := http.StatusOK

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
	}
	for _, check := range s.checks {
		if err := check.Ping(c.Request().Context()); err != nil {
			resp.Checks[check.Name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	return c.JSON(code, resp)
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, message := statusFor(err)
	id := c.Response().Header().Get(echo.HeaderXRequestID)

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String(logger.FieldRequest, id), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String(logger.FieldRequest, id), zap.Int("status", code), zap.Error(err))
	}

	if err := c.JSON(code, ErrorResponse{Message: message, RequestID: id}); err != nil {
		s.logger.Warn("writing error response", zap.Error(err))
	}
}

func statusFor(err error) (int, string) {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	case errors.Is(err, matcherr.ErrProfileNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, matcherr.ErrSelfComparison):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, matcherr.ErrInvalidProfile):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

// requestID propagates X-Request-ID, generating one when the client sent none.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

func (s *Server) accessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			s.logger.Info("request",
				zap.String(logger.FieldRequest, c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}
