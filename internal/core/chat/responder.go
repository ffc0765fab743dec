package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"breederchat/internal/core/record"
	"breederchat/internal/core/session"
	"breederchat/internal/logger"
	"breederchat/internal/platform/eino"
	"breederchat/prompts"

	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ReplyInput is everything a responder sees for one turn.
type ReplyInput struct {
	Message       string
	OriginalQuery string
	History       []session.Message
	// Records is the set the reply is about, already filtered.
	Records  []record.Record
	Total    int
	Criteria record.Criteria
	// Note carries orchestrator outcomes such as "no more results".
	Note string
}

type Responder interface {
	Reply(ctx context.Context, in ReplyInput) (string, error)
}

type CriteriaExtractor interface {
	ExtractCriteria(ctx context.Context, message string) (record.Criteria, error)
}

// LLMResponder answers through the configured chat model.
type LLMResponder struct {
	llm        *eino.Service
	assistant  prompt.ChatTemplate
	criteria   prompt.ChatTemplate
	maxRecords int
	log        *logger.Logger
}

func NewLLMResponder(llm *eino.Service, p *prompts.SystemPrompts) *LLMResponder {
	if p == nil {
		p = prompts.NewSystemPrompts()
	}
	return &LLMResponder{
		llm:        llm,
		assistant:  p.Assistant,
		criteria:   p.Criteria,
		maxRecords: 50,
		log:        logger.New("LLMResponder"),
	}
}

func (r *LLMResponder) Reply(ctx context.Context, in ReplyInput) (string, error) {
	shown := in.Records
	if len(shown) > r.maxRecords {
		shown = shown[:r.maxRecords]
	}

	vars := map[string]any{
		"results":        renderRecords(shown),
		"total":          len(in.Records),
		"shown":          len(shown),
		"filter":         describeCriteria(in.Criteria),
		"note":           orNone(in.Note),
		"original_query": orNone(in.OriginalQuery),
		"history":        toSchemaMessages(in.History),
		"question":       in.Message,
	}
	messages, err := r.assistant.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("format assistant template: %w", err)
	}

	resp, usage, err := r.llm.Generate(ctx, messages, model.WithTemperature(0.3))
	if err != nil {
		return "", err
	}
	r.log.LogDebugf("reply tokens in=%d out=%d", usage.InputTokens, usage.OutputTokens)

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("llm returned an empty reply")
	}
	return text, nil
}

// ExtractCriteria asks the model for filter criteria under a JSON schema.
func (r *LLMResponder) ExtractCriteria(ctx context.Context, message string) (record.Criteria, error) {
	messages, err := r.criteria.Format(ctx, map[string]any{"question": message})
	if err != nil {
		return record.Criteria{}, fmt.Errorf("format criteria template: %w", err)
	}

	resp, _, err := r.llm.Generate(ctx, messages,
		model.WithTemperature(0),
		model.WithMaxTokens(200),
		gemini.WithResponseJSONSchema(criteriaSchema()),
	)
	if err != nil {
		return record.Criteria{}, err
	}

	var c record.Criteria
	if err := json.Unmarshal([]byte(eino.StripCodeFence(resp.Content)), &c); err != nil {
		return record.Criteria{}, fmt.Errorf("parse criteria response: %w", err)
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Location = strings.TrimSpace(c.Location)
	return c, nil
}

func criteriaSchema() *jsonschema.Schema {
	field := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: string(schema.String), Description: desc}
	}
	return &jsonschema.Schema{
		Type:     string(schema.Object),
		Required: []string{"name", "phone", "location"},
		Properties: orderedmap.New[string, *jsonschema.Schema](
			orderedmap.WithInitialData[string, *jsonschema.Schema](
				orderedmap.Pair[string, *jsonschema.Schema]{Key: "name", Value: field("Part of the breeder name to match, or empty")},
				orderedmap.Pair[string, *jsonschema.Schema]{Key: "phone", Value: field("Part of the phone number to match, or empty")},
				orderedmap.Pair[string, *jsonschema.Schema]{Key: "location", Value: field("Part of the location to match, or empty")},
			),
		),
	}
}

func toSchemaMessages(history []session.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case session.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

// SummaryResponder builds replies without a model. It is used when no LLM
// is configured.
type SummaryResponder struct {
	MaxListed int
}

func (r SummaryResponder) Reply(_ context.Context, in ReplyInput) (string, error) {
	limit := r.MaxListed
	if limit <= 0 {
		limit = 10
	}

	var b strings.Builder
	if in.Note != "" {
		b.WriteString(in.Note)
		b.WriteString("\n\n")
	}
	switch {
	case in.Total == 0 && len(in.Records) == 0:
		b.WriteString("I don't have any breeder data yet. Send me a directory URL to get started.")
		return b.String(), nil
	case len(in.Records) == 0:
		fmt.Fprintf(&b, "None of the %d breeders match %s.", in.Total, describeCriteria(in.Criteria))
		return b.String(), nil
	case !in.Criteria.IsEmpty():
		fmt.Fprintf(&b, "%d of %d breeders match %s:\n", len(in.Records), in.Total, describeCriteria(in.Criteria))
	default:
		fmt.Fprintf(&b, "I have %d breeders:\n", len(in.Records))
	}

	shown := in.Records
	if len(shown) > limit {
		shown = shown[:limit]
	}
	b.WriteString(renderRecords(shown))
	if rest := len(in.Records) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n...and %d more.", rest)
	}
	return b.String(), nil
}

func renderRecords(recs []record.Record) string {
	if len(recs) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, fmt.Sprintf("- %s | %s | %s", r.Name, r.Phone, r.Location))
	}
	return strings.Join(lines, "\n")
}

func describeCriteria(c record.Criteria) string {
	var parts []string
	if c.Name != "" {
		parts = append(parts, fmt.Sprintf("name %q", c.Name))
	}
	if c.Phone != "" {
		parts = append(parts, fmt.Sprintf("phone %q", c.Phone))
	}
	if c.Location != "" {
		parts = append(parts, fmt.Sprintf("location %q", c.Location))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
