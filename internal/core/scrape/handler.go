package scrape

import (
	"errors"
	"net/url"

	"breederchat/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/oapi-codegen/runtime"
)

// ErrorResponse is the error body shared by every endpoint.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   string    `json:"error"`
	Code    ErrorCode `json:"code"`
	Details string    `json:"details,omitempty"`
	URL     string    `json:"url,omitempty"`
	Page    int       `json:"page,omitempty"`
}

// WriteError renders err with the status its code maps to.
func WriteError(c *fiber.Ctx, err error) error {
	var se *Error
	if !errors.As(err, &se) {
		se = &Error{Code: CodeServiceError, Message: "internal error", Err: err}
	}
	return c.Status(se.Code.HTTPStatus()).JSON(ErrorResponse{
		Error:   se.Message,
		Code:    se.Code,
		Details: se.Details,
		URL:     se.URL,
		Page:    se.Page,
	})
}

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, log: logger.New("ScrapeHandler")}
}

// HandlePostScrape accepts the JSON request body.
func (h *Handler) HandlePostScrape(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return WriteError(c, newError(CodeInvalidRequest, "invalid request body", err))
	}
	return h.run(c, req)
}

// HandleGetScrape accepts url, pagination, start, end and session_id as query parameters.
func (h *Handler) HandleGetScrape(c *fiber.Ctx) error {
	req, err := bindQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return WriteError(c, err)
	}
	return h.run(c, req)
}

func (h *Handler) run(c *fiber.Ctx, req Request) error {
	res, err := h.service.Scrape(c.UserContext(), req)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(res)
}

func bindQuery(raw string) (Request, error) {
	q, err := url.ParseQuery(raw)
	if err != nil {
		return Request{}, newError(CodeInvalidRequest, "invalid query", err)
	}

	// Optional parameters bind into pointers; nil means absent.
	var (
		rawURL, sessionID *string
		pagination        *bool
		start, end        *int
	)
	binds := []struct {
		name string
		dest interface{}
	}{
		{"url", &rawURL},
		{"pagination", &pagination},
		{"session_id", &sessionID},
		{"start", &start},
		{"end", &end},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return Request{}, newError(CodeInvalidRequest, "invalid query parameter "+b.name, err)
		}
	}

	var req Request
	if rawURL != nil {
		req.URL = *rawURL
	}
	if pagination != nil {
		req.Pagination = *pagination
	}
	if sessionID != nil {
		req.SessionID = *sessionID
	}
	switch {
	case start == nil && end == nil:
	case start != nil && end != nil:
		req.PageRange = &PageRange{Start: *start, End: *end}
	default:
		return Request{}, newError(CodeInvalidRequest, "start and end must be given together", nil)
	}
	return req, nil
}

// HandleGetSession returns the state of one session.
func (h *Handler) HandleGetSession(c *fiber.Ctx) error {
	sess, ok := h.service.Sessions().Get(c.Params("id"))
	if !ok {
		return WriteError(c, &Error{Code: CodeNotFound, Message: "session not found"})
	}
	sess.Lock()
	snap := sess.Snapshot()
	sess.Unlock()
	return c.JSON(snap)
}
