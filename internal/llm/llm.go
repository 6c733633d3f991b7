package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	jsoniter "github.com/json-iterator/go"

	"github.com/joescharf/tracker/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxCandidates bounds how many existing titles go into one prompt.
const maxCandidates = 200

// Completer sends one system/user prompt pair and returns the text reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client wraps the Anthropic API.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

// SimilarTitleFinder flags near-duplicate titles ("Login fails" vs "Can't
// log in"). Exact matches are found locally without a model call.
type SimilarTitleFinder struct {
	llm Completer
}

// NewSimilarTitleFinder creates a finder that asks llm about near matches.
func NewSimilarTitleFinder(llm Completer) *SimilarTitleFinder {
	return &SimilarTitleFinder{llm: llm}
}

type similarResponse struct {
	Match string `json:"match"`
}

// FindDuplicate returns the existing issue that duplicates title, or nil.
func (f *SimilarTitleFinder) FindDuplicate(ctx context.Context, title string, existing []*models.Issue) (*models.Issue, error) {
	if len(existing) == 0 {
		return nil, nil
	}
	for _, issue := range existing {
		if strings.EqualFold(strings.TrimSpace(issue.Title), strings.TrimSpace(title)) {
			return issue, nil
		}
	}

	candidates := existing
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	system, user := buildSimilarPrompt(title, candidates)

	text, err := f.llm.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var resp similarResponse
	if err := json.Unmarshal([]byte(stripFence(text)), &resp); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if resp.Match == "" {
		return nil, nil
	}
	for _, issue := range candidates {
		if issue.ID == resp.Match {
			return issue, nil
		}
	}
	// The model named an id that was not offered.
	return nil, nil
}

// buildSimilarPrompt constructs the system and user prompts for duplicate
// detection.
func buildSimilarPrompt(title string, candidates []*models.Issue) (system string, user string) {
	system = `You detect duplicate issues in an issue tracker. Given a new issue title and a list of existing issues, decide whether the new title describes the same problem or request as one of them.

Return ONLY a JSON object with one field:
- "match": the id of the existing issue it duplicates, or "" if none does

Rules:
- Only report a match when both titles clearly describe the same work; related or overlapping topics are not duplicates
- Ignore differences in case, punctuation, word order and phrasing
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("New issue title: ")
	sb.WriteString(title)
	sb.WriteString("\n\nExisting issues:\n")
	for _, issue := range candidates {
		fmt.Fprintf(&sb, "- id=%s title=%q\n", issue.ID, issue.Title)
	}
	user = sb.String()
	return
}

// stripFence removes markdown code fencing the model sometimes adds.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
