package chat

import (
	"errors"

	"breederchat/internal/core/record"
	"breederchat/internal/core/scrape"
	"breederchat/internal/logger"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, log: logger.New("ChatHandler")}
}

// unavailableResponse keeps the turn's results next to the error.
type unavailableResponse struct {
	scrape.ErrorResponse
	Results   []record.Record `json:"results"`
	SessionID string          `json:"sessionId"`
}

// HandleChat is POST /v1/chat.
func (h *Handler) HandleChat(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return scrape.WriteError(c, &scrape.Error{Code: scrape.CodeInvalidRequest, Message: "invalid request body", Err: err})
	}

	resp, err := h.service.Handle(c.UserContext(), req)
	var ce *Error
	switch {
	case err == nil:
		return c.JSON(resp)
	case errors.As(err, &ce):
		code := scrape.CodeUpstreamUnavailable
		return c.Status(code.HTTPStatus()).JSON(unavailableResponse{
			ErrorResponse: scrape.ErrorResponse{Error: ce.Message, Code: code, Details: ce.Err.Error()},
			Results:       ce.Response.Results,
			SessionID:     ce.Response.SessionID,
		})
	default:
		return scrape.WriteError(c, err)
	}
}
