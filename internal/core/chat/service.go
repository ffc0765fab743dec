package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"breederchat/internal/core/record"
	"breederchat/internal/core/scrape"
	"breederchat/internal/core/session"
	"breederchat/internal/logger"
	"breederchat/internal/metrics"
)

type Request struct {
	Message       string          `json:"message"`
	SessionID     string          `json:"sessionId,omitempty"`
	ScrapedData   []record.Record `json:"scrapedData,omitempty"`
	IsFollowUp    bool            `json:"isFollowUp,omitempty"`
	OriginalQuery string          `json:"originalQuery,omitempty"`
}

type Response struct {
	Text      string          `json:"text"`
	Results   []record.Record `json:"results"`
	SessionID string          `json:"sessionId"`
	Intent    Intent          `json:"intent"`
	Page      int             `json:"page,omitempty"`
	HasMore   bool            `json:"hasMore,omitempty"`
	Warning   string          `json:"warning,omitempty"`
}

// Error reports a responder failure. Response still carries the turn's results.
type Error struct {
	Message  string
	Response *Response
	Err      error
}

func (e *Error) Error() string { return fmt.Sprintf("chat: %s: %v", e.Message, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

type Options struct {
	// HistoryWindow is how many prior messages the responder sees.
	HistoryWindow int
}

type Service struct {
	scraper   *scrape.Service
	sessions  *session.Store
	responder Responder
	criteria  CriteriaExtractor
	metrics   *metrics.Metrics
	opts      Options
	log       *logger.Logger
}

// NewService wires the chat flow. criteria may be nil, in which case only
// the regex classifier derives filters.
func NewService(scraper *scrape.Service, responder Responder, criteria CriteriaExtractor, m *metrics.Metrics, opts Options) *Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 5
	}
	if responder == nil {
		responder = SummaryResponder{}
	}
	return &Service{
		scraper:   scraper,
		sessions:  scraper.Sessions(),
		responder: responder,
		criteria:  criteria,
		metrics:   m,
		opts:      opts,
		log:       logger.New("ChatService"),
	}
}

// Handle runs one chat turn. Scrape errors that the user should correct are
// returned as *scrape.Error; exhaustion outcomes become a note in the reply.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, &scrape.Error{Code: scrape.CodeInvalidRequest, Message: "message is required"}
	}

	cls := Classify(msg)
	if len(req.ScrapedData) > 0 && cls.IsScrape() {
		cls.Intent = IntentPlainChat
	}
	resp := &Response{Intent: cls.Intent, SessionID: req.SessionID}

	// One lock covers the scrape, the reply and the history append, so turns
	// on a session never interleave.
	var (
		sreq     scrape.Request
		sess     *session.Session
		id       string
		note     string
		resolved bool
	)
	if cls.IsScrape() {
		sreq = cls.ScrapeRequest(req.SessionID)
		var err error
		sess, id, err = s.scraper.Resolve(sreq)
		if err != nil && !noteworthy(err, &note) {
			return nil, err
		}
		resolved = err == nil
	}
	if sess == nil {
		sess, id = s.sessions.GetOrCreate(req.SessionID)
	}
	resp.SessionID = id
	sess.Lock()
	defer sess.Unlock()

	if resolved {
		res, err := s.scraper.ScrapeLocked(ctx, sess, id, sreq)
		switch {
		case err == nil:
			resp.Page = res.Page
			resp.HasMore = res.HasMore
			resp.Warning = res.Warning
			note = res.Message
		case !noteworthy(err, &note):
			return nil, err
		}
	}

	base := sess.Results
	if len(req.ScrapedData) > 0 {
		base = record.Merge(nil, req.ScrapedData)
	}

	criteria := cls.Criteria
	if cls.Intent == IntentPlainChat && s.criteria != nil && len(base) > 0 {
		if c, err := s.criteria.ExtractCriteria(ctx, msg); err != nil {
			s.log.LogWarnf("criteria extraction: %v", err)
		} else if !c.IsEmpty() {
			criteria = c
			resp.Intent = IntentFilter
		}
	}
	resp.Results = record.Filter(base, criteria)
	if resp.Results == nil {
		resp.Results = []record.Record{}
	}

	original := req.OriginalQuery
	if req.IsFollowUp && original == "" {
		original = firstUserMessage(sess.Messages)
	}
	in := ReplyInput{
		Message:       msg,
		OriginalQuery: original,
		History:       sess.RecentMessages(s.opts.HistoryWindow),
		Records:       resp.Results,
		Total:         len(base),
		Criteria:      criteria,
		Note:          note,
	}
	sess.AppendMessage(session.RoleUser, msg)

	text, err := s.responder.Reply(ctx, in)
	if err != nil {
		s.metrics.ChatReply("error")
		s.log.LogErrorf("responder failed for session %s: %v", id, err)
		return resp, &Error{Message: "the assistant is temporarily unavailable", Response: resp, Err: err}
	}
	s.metrics.ChatReply("ok")

	sess.AppendMessage(session.RoleAssistant, text)
	resp.Text = text
	return resp, nil
}

// noteworthy reports whether err is an exhaustion outcome, storing its
// message in note.
func noteworthy(err error, note *string) bool {
	var se *scrape.Error
	if errors.As(err, &se) && isExhaustion(se.Code) {
		*note = se.Message
		return true
	}
	return false
}

func isExhaustion(code scrape.ErrorCode) bool {
	return code == scrape.CodeNoMoreResults || code == scrape.CodeNotFound || code == scrape.CodeNoPriorURL
}

func firstUserMessage(msgs []session.Message) string {
	for _, m := range msgs {
		if m.Role == session.RoleUser {
			return m.Content
		}
	}
	return ""
}
