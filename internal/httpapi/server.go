package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/socraticlab/recall/internal/assistant"
	"github.com/socraticlab/recall/internal/indexer"
	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

// Server exposes the chat and retrieval surface over HTTP.
type Server struct {
	app      *fiber.App
	store    store.Store
	indexer  *indexer.Indexer
	ranker   *ranker.Ranker
	chat     *assistant.ChatService
	sessions *SessionManager
	logger   *zap.Logger
}

// New wires the routes. The chat service may be nil; chat endpoints then
// answer 503.
func New(st store.Store, idx *indexer.Indexer, rk *ranker.Ranker, chat *assistant.ChatService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "recall",
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler,
		}),
		store:    st,
		indexer:  idx,
		ranker:   rk,
		chat:     chat,
		sessions: NewSessionManager(),
		logger:   logger,
	}
	s.app.Use(recover.New())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Post("/set_user", s.handleSetUser)
	s.app.Get("/logout", s.handleLogout)

	s.app.Post("/create_project", s.handleCreateProject)
	s.app.Get("/projects", s.handleListProjects)
	s.app.Post("/select_project", s.handleSelectProject)
	s.app.Post("/rename_project", s.handleRenameProject)
	s.app.Delete("/delete_project/:name", s.handleDeleteProject)

	s.app.Post("/chat", s.handleChat)
	s.app.Post("/summarize", s.handleSummarize)
	s.app.Post("/next_step", s.handleNextStep)

	s.app.Post("/search", s.handleSearch)
	s.app.Get("/memory", s.handleMemory)
	s.app.Post("/report", s.handleReport)
	s.app.Post("/reset", s.handleReset)
}

// App exposes the fiber app for tests and the main's listener.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// errorHandler keeps unexpected errors JSON-shaped like the rest of the
// API.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrEmptyText),
		errors.Is(err, types.ErrUnknownMode),
		errors.Is(err, assistant.ErrInvalidStep):
		return fiber.StatusBadRequest
	case errors.Is(err, types.ErrInvalidScope):
		return fiber.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, types.ErrProviderUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
