package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DocIntelClient calls an Azure Document Intelligence compatible REST API:
// submit the document for analysis, then poll the returned operation until it
// finishes and read back the extracted content.
type DocIntelClient struct {
	endpoint     string
	apiKey       string
	model        string
	apiVersion   string
	timeout      time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
}

func NewDocIntelClient(endpoint, apiKey, model, apiVersion string, timeout time.Duration) *DocIntelClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &DocIntelClient{
		endpoint:     endpoint,
		apiKey:       apiKey,
		model:        model,
		apiVersion:   apiVersion,
		timeout:      timeout,
		pollInterval: 2 * time.Second,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Analyze extracts the text content of blob. The configured timeout bounds
// the whole operation, submission and polling included; an analysis that is
// still running at the deadline fails rather than pinning the caller.
func (c *DocIntelClient) Analyze(ctx context.Context, blob []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	operationURL, err := c.submit(ctx, blob)
	if err != nil {
		return "", err
	}
	return c.poll(ctx, operationURL)
}

func (c *DocIntelClient) submit(ctx context.Context, blob []byte) (string, error) {
	reqBody := map[string]string{
		"base64Source": base64.StdEncoding.EncodeToString(blob),
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal analyze request failed: %w", err)
	}

	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		c.endpoint, c.model, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build analyze request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("analyze status %d: %s", resp.StatusCode, string(raw))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("analyze response missing operation location")
	}
	return operationURL, nil
}

func (c *DocIntelClient) poll(ctx context.Context, operationURL string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, content, err := c.fetchResult(ctx, operationURL)
		if err != nil {
			return "", err
		}
		switch status {
		case "succeeded":
			return content, nil
		case "failed":
			return "", fmt.Errorf("document analysis failed")
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("document analysis timed out: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *DocIntelClient) fetchResult(ctx context.Context, operationURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build result request failed: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("result request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read result response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("result status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Status        string `json:"status"`
		AnalyzeResult struct {
			Content string `json:"content"`
		} `json:"analyzeResult"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", "", fmt.Errorf("parse result json failed: %w", err)
	}
	return parsed.Status, parsed.AnalyzeResult.Content, nil
}
