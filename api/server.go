package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"bgg-proxy/bgg"
	"bgg-proxy/metrics"
)

// Fetcher is the part of the BGG client the handlers depend on.
type Fetcher interface {
	FetchCollection(ctx context.Context, username string) (string, error)
}

type Server struct {
	fetcher Fetcher
}

func New(f Fetcher) *Server {
	return &Server{fetcher: f}
}

// Register mounts the proxy routes and middleware on e.
func (s *Server) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(cors())
	e.GET("/get-bgg-games", s.getGames)
}

// cors allows any origin. The proxy exists so browser storefront embeds can
// call it directly; restricting origins is a deployment decision.
func cors() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	})
}

type collectionResponse struct {
	Status string     `json:"status"`
	Count  int        `json:"count"`
	Items  []bgg.Game `json:"items"`
}

type processingResponse struct {
	Status  string  `json:"status"`
	Message *string `json:"message"`
}

func (s *Server) getGames(c echo.Context) error {
	username := strings.TrimSpace(c.QueryParam("username"))
	if username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}

	raw, err := s.fetcher.FetchCollection(c.Request().Context(), username)
	if err != nil {
		metrics.CollectionRequests.WithLabelValues("error").Inc()
		return httpError(err)
	}

	col, err := bgg.ParseCollection(raw)
	if err != nil {
		metrics.CollectionRequests.WithLabelValues("error").Inc()
		log.Warn().Str("username", username).Err(err).Msg("api: unparsable upstream payload")
		return httpError(err)
	}

	if col.Status == bgg.StatusProcessing {
		metrics.CollectionRequests.WithLabelValues("processing").Inc()
		log.Info().Str("username", username).Msg("api: collection still being generated upstream")
		return c.JSON(http.StatusOK, processingResponse{Status: col.Status, Message: col.Message})
	}

	metrics.CollectionRequests.WithLabelValues("ok").Inc()
	log.Info().Str("username", username).Int("count", len(col.Items)).Msg("api: collection served")
	return c.JSON(http.StatusOK, collectionResponse{
		Status: col.Status,
		Count:  len(col.Items),
		Items:  col.Items,
	})
}

// httpError maps a classified domain failure onto echo's error shape.
func httpError(err error) error {
	var be *bgg.Error
	if errors.As(err, &be) {
		return echo.NewHTTPError(be.Code, be.Detail)
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
