package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nugget/ore-agent/internal/httpkit"
)

// DefaultDeepSeekBaseURL is the hosted OpenAI-compatible endpoint.
const DefaultDeepSeekBaseURL = "https://api.deepseek.com"

// DeepSeekClient talks to the DeepSeek API (OpenAI-compatible chat
// completions). The API key comes from configuration or the
// DEEPSEEK_API_KEY environment variable.
type DeepSeekClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewDeepSeekClient creates a client. An empty apiKey falls back to
// DEEPSEEK_API_KEY; a missing key is a construction-time error so the
// failure surfaces before the first turn.
func NewDeepSeekClient(baseURL, apiKey, model string) (*DeepSeekClient, error) {
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}
	if model == "" {
		model = "deepseek-chat"
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY"))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY is not set; set it to use the deepseek backend")
	}
	return &DeepSeekClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(2 * time.Minute)),
	}, nil
}

// Model returns the configured model name.
func (c *DeepSeekClient) Model() string {
	return c.model
}

type deepseekRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type deepseekUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type deepseekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *deepseekUsage `json:"usage"`
}

type deepseekChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *deepseekUsage `json:"usage"`
}

func usageMetadata(usage *deepseekUsage, durationMS int64) map[string]any {
	meta := map[string]any{"duration_ms": durationMS}
	if usage != nil {
		meta["prompt_tokens"] = usage.PromptTokens
		meta["completion_tokens"] = usage.CompletionTokens
		meta["total_tokens"] = usage.TotalTokens
	}
	return meta
}

// Reason sends a single chat completion request.
func (c *DeepSeekClient) Reason(ctx context.Context, messages []Message) (*Response, error) {
	start := time.Now()
	body, err := c.post(ctx, deepseekRequest{
		Model:    c.model,
		Messages: toWire(messages),
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var completion deepseekResponse
	if err := json.NewDecoder(body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var content string
	if len(completion.Choices) > 0 {
		content = completion.Choices[0].Message.Content
	}
	meta := usageMetadata(completion.Usage, time.Since(start).Milliseconds())
	return newResponse(content, c.model, meta), nil
}

// StreamReason reads the SSE stream, forwarding each delta to
// callback, and returns the assembled response.
func (c *DeepSeekClient) StreamReason(ctx context.Context, messages []Message, callback StreamCallback) (*Response, error) {
	start := time.Now()
	body, err := c.post(ctx, deepseekRequest{
		Model:    c.model,
		Messages: toWire(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var content strings.Builder
	var usage *deepseekUsage

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk deepseekChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			content.WriteString(chunk.Choices[0].Delta.Content)
			if callback != nil {
				callback(chunk.Choices[0].Delta.Content)
			}
		}
		// The final chunk may carry usage.
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	meta := usageMetadata(usage, time.Since(start).Milliseconds())
	return newResponse(content.String(), c.model, meta), nil
}

func (c *DeepSeekClient) post(ctx context.Context, req deepseekRequest) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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

// Ping sends a minimal models request to verify reachability and the
// API key.
func (c *DeepSeekClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
