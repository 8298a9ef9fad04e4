package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"

	"ward/session"
)

const suggestionSystemPrompt = "You are a clinical decision-support assistant " +
	"listening to a doctor-patient encounter. Given the transcript excerpt, " +
	"propose up to three concise suggestions for the clinician. " +
	"Respond with a JSON array of objects with fields: " +
	`"content", "category" (clinical, medication, follow_up, or differential), ` +
	`"urgency" (low, medium, or high), and "confidence" (0 to 1). ` +
	"Respond with the JSON array only."

// OpenAISuggester generates suggestions with an OpenAI chat model.
type OpenAISuggester struct {
	client *openai.Client
	model  string
	logger *log.Logger
}

func NewOpenAISuggester(apiKey, model string, logger *log.Logger) *OpenAISuggester {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAISuggester{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

func (s *OpenAISuggester) GenerateSuggestions(
	ctx context.Context,
	sess *session.Session,
	window []session.TranscriptLine,
	source session.Source,
) ([]session.Suggestion, error) {
	if len(window) == 0 {
		return nil, nil
	}

	req := openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 500,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: suggestionSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: FormatWindow(window),
			},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	suggestions, err := ParseSuggestions(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	s.logger.Info("suggestions generated",
		"session", sess.ID,
		"source", source,
		"count", len(suggestions),
	)
	return suggestions, nil
}

// FormatWindow renders a transcript window as one timestamped line per
// utterance, the shape the prompt expects.
func FormatWindow(window []session.TranscriptLine) string {
	var b strings.Builder
	for _, line := range window {
		fmt.Fprintf(&b, "%s %s: %s\n",
			line.Timestamp.Format("15:04:05"),
			line.Speaker,
			line.Text,
		)
	}
	return b.String()
}

type rawSuggestion struct {
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Urgency    string  `json:"urgency"`
	Confidence float64 `json:"confidence"`
}

// ParseSuggestions decodes the model's JSON array, tolerating the code fences
// chat models like to wrap JSON in.
func ParseSuggestions(content string) ([]session.Suggestion, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw []rawSuggestion
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}

	suggestions := make([]session.Suggestion, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		suggestions = append(suggestions, session.Suggestion{
			Content:    strings.TrimSpace(r.Content),
			Category:   r.Category,
			Urgency:    r.Urgency,
			Confidence: r.Confidence,
		})
	}
	return suggestions, nil
}
