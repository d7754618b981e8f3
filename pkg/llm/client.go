package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 500
	requestTimeout     = 60 * time.Second
)

// Client talks to the external completion service.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ Provider = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (c *Client) GenerateAnswer(ctx context.Context, question, retrievalContext string, options ...Option) (string, error) {
	opts := &Options{
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	for _, opt := range options {
		opt(opts)
	}

	if strings.TrimSpace(retrievalContext) == "" {
		return NoContextAnswer, nil
	}

	prompt := buildPrompt(question, retrievalContext, opts.FileNames)

	encoded, err := json.Marshal(generateRequest{
		Prompt:      prompt,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm api error (status %d): %s", resp.StatusCode, string(raw))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Text, nil
}

// buildPrompt frames the retrieved context verbatim and pins the model to it.
// Citations must follow the [Source N] tags already present in the context.
func buildPrompt(question, retrievalContext string, fileNames []string) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant that answers questions strictly from the provided document excerpts.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Use ONLY the excerpts below. Do not rely on outside knowledge.\n")
	sb.WriteString("- Cite the excerpts you used with their [Source N] tags.\n")
	sb.WriteString("- If the excerpts do not contain the answer, reply exactly: \"")
	sb.WriteString(NoContextAnswer)
	sb.WriteString("\"\n")

	if len(fileNames) > 0 {
		sb.WriteString("\nThe excerpts come from these files: ")
		sb.WriteString(strings.Join(fileNames, ", "))
		sb.WriteString("\n")
	}

	sb.WriteString("\nDocument excerpts:\n")
	sb.WriteString(retrievalContext)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}
