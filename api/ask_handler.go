package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/research"
)

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	Model    string `json:"model,omitempty"`
}

// handleAskEndpoint handles POST /v1/ask requests.
func (s *Server) handleAskEndpoint(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if req.TopK < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "top_k must be a positive integer",
		})
	}

	answer, err := s.asker.Ask(c.Context(), req.Question, research.AskOptions{
		TopK:  req.TopK,
		Model: req.Model,
	})
	if err != nil {
		status := errorStatus(err)
		if status >= fiber.StatusInternalServerError {
			s.logger.Error("ask failed", "error", err)
		}
		return c.Status(status).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(answer)
}
