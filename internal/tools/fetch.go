package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/ore-agent/internal/capability"
	"github.com/nugget/ore-agent/internal/httpkit"
)

// Fetch performs an HTTP GET and returns the body as text. Requires
// the network permission. Args: url=<http(s) url>.
type Fetch struct {
	client   *http.Client
	maxBytes int64
}

// NewFetch creates the fetch tool. Zero values take the defaults of a
// 30 second timeout and a 256 KiB body cap.
func NewFetch(timeout time.Duration, maxBytes int64) *Fetch {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if maxBytes == 0 {
		maxBytes = 256 * 1024
	}
	return &Fetch{
		client:   httpkit.NewClient(httpkit.WithTimeout(timeout)),
		maxBytes: maxBytes,
	}
}

func (*Fetch) Name() string { return "fetch" }

func (*Fetch) Description() string {
	return "Fetch a URL over HTTP GET. Args: url=<http(s) url>. Requires network."
}

func (*Fetch) RequiredPermissions() capability.Set {
	return capability.NewSet(capability.Network)
}

func (*Fetch) RoutingHints() []string {
	return []string{"fetch url", "download page", "fetch the page"}
}

// ExtractArgs picks the first http(s) token from the prompt.
func (*Fetch) ExtractArgs(prompt string) map[string]string {
	for _, token := range strings.Fields(prompt) {
		token = strings.Trim(token, `"'<>.,`)
		if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") {
			return map[string]string{"url": token}
		}
	}
	return map[string]string{}
}

func (t *Fetch) Run(ctx context.Context, args map[string]string) *Result {
	url := strings.TrimSpace(args["url"])
	if url == "" {
		return NewErrorResult(t.Name(), "missing required argument: url=...")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return NewErrorResult(t.Name(), fmt.Sprintf("unsupported URL scheme: %s", url))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewErrorResult(t.Name(), err.Error())
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return NewErrorResult(t.Name(), err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return NewErrorResult(t.Name(), err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r := NewErrorResult(t.Name(), fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url))
		r.Output = string(body)
		r.Metadata["http_status"] = resp.StatusCode
		return r
	}

	result := NewResult(t.Name(), string(body))
	result.Metadata["http_status"] = resp.StatusCode
	result.Metadata["content_type"] = resp.Header.Get("Content-Type")
	return result
}
