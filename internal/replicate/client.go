package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Prediction statuses reported by the API. Anything that is neither
// succeeded nor failed counts as still running.
const (
	PredictionSucceeded = "succeeded"
	PredictionFailed    = "failed"
)

var (
	// ErrSubmission means the API rejected the job or returned no
	// pollable prediction id. No credit has been spent at this point.
	ErrSubmission = errors.New("image generation submission failed")
	// ErrGenerationFailed means the API explicitly reported failure.
	ErrGenerationFailed = errors.New("image generation failed")
	// ErrPollTimeout means the prediction did not reach a terminal state
	// within the poll bound.
	ErrPollTimeout = errors.New("image generation timed out")
)

// Prediction is the subset of the API response the worker cares about.
type Prediction struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Detail string   `json:"detail"`
	Error  string   `json:"error"`
}

// Client talks to the Replicate predictions API.
type Client struct {
	baseURL      string
	apiKey       string
	modelVersion string
	http         *http.Client
}

func NewClient(baseURL, apiKey, modelVersion string) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		modelVersion: modelVersion,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

type predictionInput struct {
	Image   string `json:"image"`
	Prompt  string `json:"prompt"`
	APrompt string `json:"a_prompt"`
	NPrompt string `json:"n_prompt"`
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

// Submit creates a prediction for imageURL with the prompt derived from
// theme and room, returning a pollable prediction handle.
func (c *Client) Submit(ctx context.Context, imageURL, theme, room string) (*Prediction, error) {
	body, err := json.Marshal(predictionRequest{
		Version: c.modelVersion,
		Input: predictionInput{
			Image:   imageURL,
			Prompt:  BuildPrompt(theme, room),
			APrompt: qualitySuffix,
			NPrompt: negativePrompt,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	defer resp.Body.Close()

	var prediction Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("%w: invalid response body", ErrSubmission)
	}
	if resp.StatusCode != http.StatusCreated {
		detail := prediction.Detail
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrSubmission, detail)
	}
	if prediction.ID == "" {
		return nil, fmt.Errorf("%w: no prediction id returned", ErrSubmission)
	}

	return &prediction, nil
}

// Get fetches the current state of a prediction.
func (c *Client) Get(ctx context.Context, predictionID string) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/predictions/"+predictionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll prediction: %w", err)
	}
	defer resp.Body.Close()

	var prediction Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := prediction.Detail
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to poll prediction: %s", detail)
	}

	return &prediction, nil
}

// Wait polls a prediction at the given interval until it reaches a
// terminal state, up to maxAttempts polls. The output URL is returned on
// success; ErrGenerationFailed or ErrPollTimeout otherwise.
func (c *Client) Wait(ctx context.Context, predictionID string, interval time.Duration, maxAttempts int) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}

		prediction, err := c.Get(ctx, predictionID)
		if err != nil {
			return "", err
		}

		switch prediction.Status {
		case PredictionSucceeded:
			if len(prediction.Output) == 0 {
				return "", fmt.Errorf("%w: succeeded with no output", ErrGenerationFailed)
			}
			return prediction.Output[0], nil
		case PredictionFailed:
			if prediction.Error != "" {
				return "", fmt.Errorf("%w: %s", ErrGenerationFailed, prediction.Error)
			}
			return "", ErrGenerationFailed
		}
	}
	return "", ErrPollTimeout
}
