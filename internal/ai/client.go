// Package ai wraps an OpenAI-compatible chat model behind the advisory
// services used by the bot: free-text parsing, category suggestion and
// natural-language transaction search. Every result is a suggestion and must
// be validated before it reaches the ledger.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/hray3182/SpendWise/internal/models"
)

// ErrNoOutput is returned when the model answers without usable content.
var ErrNoOutput = errors.New("ai returned no output")

type Client struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		now:    time.Now,
	}
}

// complete sends one system and one user message and decodes the structured
// answer into out.
func (c *Client) complete(ctx context.Context, name string, schema json.RawMessage, system, user string, out any) error {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: schema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return ErrNoOutput
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return ErrNoOutput
	}

	log.Debug().Str("flow", name).Str("content", content).Msg("ai response")

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to parse AI response: %w", err)
	}
	return nil
}

type ParseInput struct {
	Text   string
	Locale string
}

type ParseOutput struct {
	Type        models.TransactionType `json:"type"`
	Amount      float64                `json:"amount"`
	Description string                 `json:"description"`
}

// ParseTransactionText extracts type, amount and description from a free-text
// message. Locales without a prompt fall back to English.
func (c *Client) ParseTransactionText(ctx context.Context, in ParseInput) (ParseOutput, error) {
	var out ParseOutput
	err := c.complete(ctx, "parse_transaction", parseSchema, parsePrompt(in.Locale), in.Text, &out)
	if err != nil {
		return ParseOutput{}, err
	}
	return out, nil
}

type SuggestInput struct {
	Description string
	Categories  []string
}

type SuggestOutput struct {
	Category string `json:"category"`
}

// SuggestCategory picks the category from in.Categories that best fits the
// description.
func (c *Client) SuggestCategory(ctx context.Context, in SuggestInput) (SuggestOutput, error) {
	var out SuggestOutput
	err := c.complete(ctx, "suggest_category", suggestSchema, suggestCategoryPrompt, suggestUserMessage(in), &out)
	if err != nil {
		return SuggestOutput{}, err
	}
	return out, nil
}

type Suggestion struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Confident reports whether the model's confidence reaches threshold.
func (s Suggestion) Confident(threshold float64) bool {
	return s.Confidence >= threshold
}

// SuggestExpenseCategory is SuggestCategory with a confidence score in [0, 1].
func (c *Client) SuggestExpenseCategory(ctx context.Context, in SuggestInput) (Suggestion, error) {
	var out Suggestion
	err := c.complete(ctx, "suggest_expense_category", suggestionSchema, suggestExpensePrompt, suggestUserMessage(in), &out)
	if err != nil {
		return Suggestion{}, err
	}
	out.Confidence = min(max(out.Confidence, 0), 1)
	return out, nil
}

type QueryInput struct {
	Query        string
	Transactions []models.Transaction
}

type QueryOutput struct {
	MatchingIDs []string `json:"matching_ids"`
}

// QueryTransactions returns the ids of the transactions matching a natural
// language query. A blank query matches nothing and skips the model.
func (c *Client) QueryTransactions(ctx context.Context, in QueryInput) (QueryOutput, error) {
	if strings.TrimSpace(in.Query) == "" || len(in.Transactions) == 0 {
		return QueryOutput{MatchingIDs: []string{}}, nil
	}

	txs, err := json.Marshal(in.Transactions)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("failed to encode transactions: %w", err)
	}
	user := fmt.Sprintf("User Query:\n%q\n\nFull Transaction List (in JSON format):\n%s", in.Query, txs)

	var out QueryOutput
	if err := c.complete(ctx, "query_transactions", querySchema, queryPrompt(c.now()), user, &out); err != nil {
		return QueryOutput{}, err
	}
	if out.MatchingIDs == nil {
		out.MatchingIDs = []string{}
	}
	return out, nil
}
