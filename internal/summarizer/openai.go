package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 2048

	// Keeps prompts bounded for very long documents.
	maxPromptContentRunes = 6000

	systemPrompt = `Describe what changed between two versions of a document in one ultra-short sentence.

Rules:
- ≤20 words (hard limit 30).
- Mention the substance of the change (added topic, removed section, rewording, fixes), not word counts.
- If there is no previous version, describe what the document is about.
- Neutral tone, no lists, no quotes.
- Output exactly one line in the same language as the document.`
)

// OpenAISummarizer calls OpenAI's Responses API to produce change notes.
type OpenAISummarizer struct {
	client openai.Client
}

// NewOpenAISummarizer builds a new summarizer instance.
func NewOpenAISummarizer(apiKey string) (*OpenAISummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	return &OpenAISummarizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Summarize produces a single change note for a new version.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	current := strings.TrimSpace(input.Current)
	if current == "" {
		return "", errors.New("input is empty")
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModelGPT5Mini2025_08_07,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(buildUserPrompt(input)),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		note := strings.TrimSpace(resp.OutputText())
		if note == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return note, nil
	}
}

func buildUserPrompt(input Input) string {
	var b strings.Builder

	if title := strings.TrimSpace(input.Title); title != "" {
		b.WriteString("Title:\n")
		b.WriteString(title)
		b.WriteString("\n")
	}

	if previous := strings.TrimSpace(input.Previous); previous != "" {
		b.WriteString("Previous version:\n")
		b.WriteString(truncateRunes(previous, maxPromptContentRunes))
		b.WriteString("\n")
	}

	b.WriteString("Current version:\n")
	b.WriteString(truncateRunes(strings.TrimSpace(input.Current), maxPromptContentRunes))

	return b.String()
}
