package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPExtractor posts the attachment reference to an extraction service
// and reads back {"text": "..."}.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
}

func NewHTTPExtractor(endpoint string, client *http.Client) *HTTPExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExtractor{endpoint: endpoint, client: client}
}

type extractResponse struct {
	Text string `json:"text"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, src Source) (string, error) {
	body, err := json.Marshal(src)
	if err != nil {
		return "", fmt.Errorf("encode extraction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call extractor: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("extractor returned %d", resp.StatusCode)
	}
	var out extractResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode extraction response: %w", err)
	}
	return out.Text, nil
}
