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

	"github.com/nugget/ore-agent/internal/httpkit"
)

// preferredModels are the base names tried in order when picking a
// default model from whatever the server has installed.
var preferredModels = []string{"llama3.2", "llama3.1", "llama3", "mistral", "llama2", "qwen2.5"}

// OllamaClient talks to a local (or configured) Ollama server.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaClient creates a client for the given server and model.
// An empty baseURL defaults to the local server.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(5 * time.Minute), // Large local models need time
		),
	}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.model
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`

	// Usage stats, present when done is true.
	TotalDuration      int64 `json:"total_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

func (r *ollamaChatResponse) metadata() map[string]any {
	meta := map[string]any{}
	if r.EvalCount > 0 {
		meta["eval_count"] = r.EvalCount
	}
	if r.PromptEvalCount > 0 {
		meta["prompt_eval_count"] = r.PromptEvalCount
	}
	if r.EvalDuration > 0 {
		meta["eval_duration"] = r.EvalDuration
	}
	if r.PromptEvalDuration > 0 {
		meta["prompt_eval_duration"] = r.PromptEvalDuration
	}
	return meta
}

// Reason sends a single non-streaming chat request.
func (c *OllamaClient) Reason(ctx context.Context, messages []Message) (*Response, error) {
	body, err := c.post(ctx, ollamaChatRequest{
		Model:    c.model,
		Messages: toWire(messages),
		Stream:   false,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return newResponse(chatResp.Message.Content, c.model, chatResp.metadata()), nil
}

// StreamReason reads the newline-delimited JSON stream, forwarding
// each token to callback, and returns the assembled response.
func (c *OllamaClient) StreamReason(ctx context.Context, messages []Message, callback StreamCallback) (*Response, error) {
	body, err := c.post(ctx, ollamaChatRequest{
		Model:    c.model,
		Messages: toWire(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var content strings.Builder
	var final ollamaChatResponse
	decoder := json.NewDecoder(body)

	for {
		var chunk ollamaChatResponse
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Message.Content != "" {
			content.WriteString(chunk.Message.Content)
			if callback != nil {
				callback(chunk.Message.Content)
			}
		}
		if chunk.Done {
			final = chunk
			break
		}
	}

	return newResponse(content.String(), c.model, final.metadata()), nil
}

func (c *OllamaClient) post(ctx context.Context, req ollamaChatRequest) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// Ping checks if the server is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}
	return nil
}

// ListModels returns the model names the server has installed.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// DefaultModel picks a default from the installed models: the first
// preferred base name that is available, else the first installed.
// Returns the full name including tag (e.g. "llama3.2:latest"), or ""
// when nothing is installed.
func (c *OllamaClient) DefaultModel(ctx context.Context) (string, error) {
	available, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(available) == 0 {
		return "", nil
	}

	baseToFull := make(map[string]string, len(available))
	for _, full := range available {
		base, _, _ := strings.Cut(full, ":")
		if _, seen := baseToFull[base]; !seen {
			baseToFull[base] = full
		}
	}
	for _, preferred := range preferredModels {
		if full, ok := baseToFull[preferred]; ok {
			return full, nil
		}
	}
	return available[0], nil
}
