package paste

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// Bin is an uploaded text document.
type Bin struct {
	Key string
	URL string
}

// Uploader stores text on an external paste service.
type Uploader interface {
	Post(ctx context.Context, text, title string) (*Bin, error)
}

// Client talks to a sourcebin-compatible API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for baseURL (e.g. https://sourceb.in).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type binFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type createBinRequest struct {
	Title string    `json:"title,omitempty"`
	Files []binFile `json:"files"`
}

type createBinResponse struct {
	Key string `json:"key"`
}

// Post uploads text under title and returns where it can be viewed.
func (c *Client) Post(ctx context.Context, text, title string) (*Bin, error) {
	body, err := json.Marshal(createBinRequest{
		Title: title,
		Files: []binFile{{Name: title, Content: text}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode bin: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bins", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post bin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("post bin: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out createBinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode bin response: %w", err)
	}
	if out.Key == "" {
		return nil, fmt.Errorf("post bin: response carried no key")
	}
	return &Bin{Key: out.Key, URL: c.baseURL + "/" + out.Key}, nil
}
