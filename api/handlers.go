package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/rag"
	"github.com/papercomputeco/researcher/pkg/research"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns the chunk and vector counts and the settings the
// database was built with.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.index.Stats(c.Context())
	if err != nil {
		s.logger.Error("failed to read stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to read stats"})
	}
	return c.JSON(stats)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, rag.ErrNoData):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, research.ErrEmptyQuestion):
		return fiber.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
