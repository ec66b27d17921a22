package master

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 16 // 64 KB

// RegisterRequest is the body of POST /servers/register.
type RegisterRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	MaxPlayers int    `json:"maxPlayers"`
	Version    string `json:"version"`
	Region     string `json:"region"`
	Load
}

// RegisterResponse carries the id to heartbeat with.
type RegisterResponse struct {
	ID string `json:"id"`
}

// HeartbeatRequest is the body of POST /servers/heartbeat.
type HeartbeatRequest struct {
	ID string `json:"id"`
	Load
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewApp returns the master server's HTTP API.
func NewApp(reg *Registry, logger zerolog.Logger) *fiber.App {
	logger = logger.With().Str("component", "master").Logger()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             maxRequestBody,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/servers", func(c *fiber.Ctx) error {
		return c.JSON(reg.List())
	})

	app.Post("/servers/register", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
		if req.Name == "" || req.Address == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name and address required")
		}

		id := reg.Register(ServerInfo{
			Name:       req.Name,
			Address:    req.Address,
			Players:    req.Players,
			MaxPlayers: req.MaxPlayers,
			Queued:     req.Queued,
			Matches:    req.Matches,
			Version:    req.Version,
			Region:     req.Region,
		})

		logger.Info().
			Str("server_id", id).
			Str("name", req.Name).
			Str("address", req.Address).
			Msg("Registered server")

		return c.Status(fiber.StatusCreated).JSON(RegisterResponse{ID: id})
	})

	app.Post("/servers/heartbeat", func(c *fiber.Ctx) error {
		var req HeartbeatRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid json")
		}
		if !reg.Heartbeat(req.ID, req.Load) {
			return fiber.NewError(fiber.StatusNotFound, "unknown server")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}
