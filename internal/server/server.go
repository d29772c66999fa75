// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"weather-agent/internal/agent"
	"weather-agent/internal/common/config"
	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/logger"
	"weather-agent/internal/dates"
	"weather-agent/internal/tools"
)

// WeatherAgent is the surface the HTTP layer needs from the orchestrator.
type WeatherAgent interface {
	Handle(ctx context.Context, query string) (*agent.WeatherResult, error)
	ListTools() []tools.Descriptor
	InvokeTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

type Server struct {
	app      *fiber.App
	agent    WeatherAgent
	cfg      *config.Config
	clock    clockwork.Clock
	validate *validator.Validate
	logger   logger.Logger
}

type weatherRequest struct {
	Query  string `json:"query" validate:"required,min=1"`
	UserID string `json:"user_id"`
}

type coordinatesRequest struct {
	Place string `json:"place" validate:"required,min=1"`
}

type parseDateRequest struct {
	Expression string `json:"expression" validate:"required,min=1"`
}

func New(cfg *config.Config, weatherAgent WeatherAgent, clock clockwork.Clock, log logger.Logger) *Server {
	s := &Server{
		agent:    weatherAgent,
		cfg:      cfg,
		clock:    clock,
		validate: validator.New(),
		logger:   log.With(map[string]interface{}{"component": "http"}),
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		DisableStartupMessage: true,
	})

	app.Use(s.requestID)

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)

	v1 := app.Group("/api/v1")
	v1.Post("/weather", s.handleWeather)
	v1.Get("/tools", s.handleTools)
	v1.Post("/coordinates", s.handleCoordinates)
	v1.Post("/parse-date", s.handleParseDate)

	s.app = app
	return s
}

// App exposes the fiber app for tests and the entrypoint.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("X-Request-ID", id)
	c.Locals("requestID", id)
	return c.Next()
}

func (s *Server) requestLogger(c *fiber.Ctx) logger.Logger {
	return s.logger.With(map[string]interface{}{
		"requestID": c.Locals("requestID"),
		"path":      c.Path(),
	})
}

// writeError maps a typed failure to its HTTP status. Bodies never echo raw
// provider responses; the StandardError detail strings already summarize.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	stdErr := commonerrors.Normalize(err)
	status := commonerrors.HTTPStatus(stdErr.Code)

	s.requestLogger(c).WithError(err).Warn("request failed", map[string]interface{}{
		"status": status,
		"code":   string(stdErr.Code),
	})

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   stdErr.Message,
		"code":    string(stdErr.Code),
		"details": stdErr.Details,
	})
}

func (s *Server) writeBadRequest(c *fiber.Ctx, details string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   "Invalid request body",
		"details": details,
	})
}

func (s *Server) handleWeather(c *fiber.Ctx) error {
	var req weatherRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeBadRequest(c, "body must be valid JSON")
	}
	if err := s.validate.Struct(req); err != nil {
		return s.writeBadRequest(c, err.Error())
	}

	log := s.requestLogger(c)
	log.Info("weather query received", map[string]interface{}{
		"queryLength": len(req.Query),
		"userID":      req.UserID,
	})

	result, err := s.agent.Handle(c.UserContext(), req.Query)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleTools(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tools": s.agent.ListTools()})
}

func (s *Server) handleCoordinates(c *fiber.Ctx) error {
	var req coordinatesRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeBadRequest(c, "body must be valid JSON")
	}
	if err := s.validate.Struct(req); err != nil {
		return s.writeBadRequest(c, err.Error())
	}

	result, err := s.agent.InvokeTool(c.UserContext(), agent.ToolGetCoordinates, map[string]interface{}{
		"place": req.Place,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleParseDate(c *fiber.Ctx) error {
	var req parseDateRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeBadRequest(c, "body must be valid JSON")
	}
	if err := s.validate.Struct(req); err != nil {
		return s.writeBadRequest(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"expression": req.Expression,
		"iso_date":   dates.Resolve(req.Expression, s.clock.Now()),
		"success":    true,
	})
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	descriptors := s.agent.ListTools()
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}

	return c.JSON(fiber.Map{
		"service": s.cfg.App.Name,
		"version": s.cfg.App.Version,
		"capabilities": []string{
			"natural language weather queries",
			"relative date resolution",
			"place geocoding",
			"daily forecasts",
		},
		"tools": names,
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"agent_ready": s.agent != nil,
		"timestamp":   s.clock.Now().UTC().Format(time.RFC3339),
	})
}
