package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/kdimtricp/breedid/internal/imaging"
)

type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type identifyRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type identifyResponse struct {
	Breed      string   `json:"breed"`
	Confidence float64  `json:"confidence"`
	Features   []string `json:"features"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) Identify(ctx context.Context, still *imaging.Still) (*Prediction, error) {
	if still == nil || len(still.Data) == 0 {
		return nil, fmt.Errorf("no image to identify")
	}

	reqBody := identifyRequest{
		Image:    still.Base64(),
		MIMEType: still.MIMEType,
		Width:    still.Width,
		Height:   still.Height,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var identifyResp identifyResponse
	if err := json.Unmarshal(body, &identifyResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("inference service returned %s", resp.Status)
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if identifyResp.Error != nil {
		return nil, fmt.Errorf("inference service error: %s", identifyResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned %s", resp.Status)
	}
	if identifyResp.Breed == "" {
		return nil, fmt.Errorf("inference service returned no breed")
	}

	return &Prediction{
		Breed:      identifyResp.Breed,
		Confidence: int(math.Round(identifyResp.Confidence)),
		Features:   identifyResp.Features,
	}, nil
}
