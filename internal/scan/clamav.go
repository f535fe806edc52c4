// Package scan gates uploads through a ClamAV REST endpoint. A positive
// infection verdict and an unreachable scanner are both treated as blocking
// outcomes; a file is only ingested after a clean scan.
package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

var (
	ErrInfected    = errors.New("file is infected")
	ErrUnavailable = errors.New("virus scan unavailable")
)

type ClamAVClient struct {
	scanURL    string
	httpClient *http.Client
}

func NewClamAVClient(scanURL string) *ClamAVClient {
	return &ClamAVClient{
		scanURL:    scanURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Scan submits blob to the scanner and returns nil only on a clean verdict.
func (c *ClamAVClient) Scan(ctx context.Context, filename string, blob []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("FILES", filename)
	if err != nil {
		return fmt.Errorf("%w: build scan form failed: %v", ErrUnavailable, err)
	}
	if _, err := part.Write(blob); err != nil {
		return fmt.Errorf("%w: write scan form failed: %v", ErrUnavailable, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: close scan form failed: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scanURL, &body)
	if err != nil {
		return fmt.Errorf("%w: build scan request failed: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: scan request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read scan response failed: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: scan status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed struct {
		Success bool `json:"success"`
		Data    struct {
			Result []struct {
				Name       string `json:"name"`
				IsInfected bool   `json:"is_infected"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%w: parse scan response failed: %v", ErrUnavailable, err)
	}
	if !parsed.Success {
		return fmt.Errorf("%w: scanner reported failure", ErrUnavailable)
	}
	for _, result := range parsed.Data.Result {
		if result.IsInfected {
			return fmt.Errorf("%w: %s", ErrInfected, result.Name)
		}
	}
	return nil
}
