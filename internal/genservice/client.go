package genservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studio/api/internal/pipeline"
)

// Client talks to the remote generation service over its JSON API. It
// implements pipeline.Generator; the pipeline stays unaware of transport
// details.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) GenerateAngles(ctx context.Context, req pipeline.AngleRequest) (pipeline.AngleResult, error) {
	var result pipeline.AngleResult
	if err := c.post(ctx, "/v1/angles", req, &result); err != nil {
		return pipeline.AngleResult{}, err
	}
	if len(result.AngleCandidates) == 0 {
		return pipeline.AngleResult{}, fmt.Errorf("generation service returned no angle candidates")
	}
	return result, nil
}

func (c *Client) GenerateOutline(ctx context.Context, req pipeline.OutlineRequest) (pipeline.OutlineResult, error) {
	// The outline endpoint answers with the outline fields at the top level,
	// same as the angle and draft endpoints.
	var outline pipeline.Outline
	if err := c.post(ctx, "/v1/outline", req, &outline); err != nil {
		return pipeline.OutlineResult{}, err
	}
	if len(outline.Sections) == 0 {
		return pipeline.OutlineResult{}, fmt.Errorf("generation service returned an empty outline")
	}
	return pipeline.OutlineResult{Outline: outline}, nil
}

func (c *Client) GenerateDraft(ctx context.Context, req pipeline.DraftRequest) (pipeline.DraftResult, error) {
	var result pipeline.DraftResult
	if err := c.post(ctx, "/v1/draft", req, &result); err != nil {
		return pipeline.DraftResult{}, err
	}
	if strings.TrimSpace(result.DraftBody) == "" {
		return pipeline.DraftResult{}, fmt.Errorf("generation service returned an empty draft")
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("generation service: HTTP %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(respBody)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
