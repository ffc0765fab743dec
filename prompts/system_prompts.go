package prompts

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// SystemPrompts holds the chat templates used by the breeder assistant.
type SystemPrompts struct {
	// Assistant answers a user turn over the current record set.
	Assistant prompt.ChatTemplate
	// Criteria turns a free-text question into filter criteria.
	Criteria prompt.ChatTemplate
}

// NewSystemPrompts creates and initializes all prompt templates
func NewSystemPrompts() *SystemPrompts {
	return &SystemPrompts{
		Assistant: createAssistantTemplate(),
		Criteria:  createCriteriaTemplate(),
	}
}

// Variables: results, total, shown, filter, note, original_query, history, question.
func createAssistantTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`You are a helpful assistant for people looking for dog breeders.
You answer questions using ONLY the breeder records listed below. Each record has a name, a phone number and a location; "-" means the value is unknown.

RULES:
1. Never invent breeders, phone numbers or locations that are not in the records.
2. When the user asks for a list, present the matching breeders as a short bulleted list.
3. If the records do not answer the question, say so and suggest loading more pages or a different directory URL.
4. Keep answers short and friendly.

Records available: {total} (showing {shown})
Active filter: {filter}
Original question: {original_query}
Notes: {note}

RECORDS:
{results}`),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage(`{question}`),
	)
}

// Variables: question.
func createCriteriaTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`You extract filter criteria for a list of dog breeders.
Each breeder has a name, a phone number and a location.
Return the substring the user wants to match for each field, or an empty string when the user did not constrain that field.
Do not guess. Only fill a field the user explicitly mentions.`),
		schema.UserMessage(`USER QUESTION: {question}`),
	)
}
