package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskproof/contexts/verification/submission-pipeline/ports"
)

// Client talks to the external vision and reasoning HTTP services. Every
// call carries a bounded timeout; upstream failures are surfaced as errors
// so the scorer can degrade to human review.
type Client struct {
	httpClient       *http.Client
	visionBaseURL    string
	reasoningBaseURL string
	logger           *slog.Logger
}

func NewClient(visionBaseURL string, reasoningBaseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: timeout},
		visionBaseURL:    strings.TrimRight(visionBaseURL, "/"),
		reasoningBaseURL: strings.TrimRight(reasoningBaseURL, "/"),
		logger:           logger,
	}
}

func (c *Client) CheckCompliance(ctx context.Context, photoURL string, rules string) (ports.VisionAnswer, error) {
	var response struct {
		Answer string `json:"answer"`
	}
	err := c.post(ctx, c.visionBaseURL+"/v1/vision/compliance", map[string]any{
		"image_url": photoURL,
		"rules":     rules,
	}, &response)
	if err != nil {
		return ports.VisionAnswerUnclear, err
	}
	return parseAnswer(response.Answer), nil
}

func (c *Client) DescribeScene(ctx context.Context, photoURL string) (ports.SceneLabels, error) {
	var response struct {
		Subject    string `json:"subject"`
		Background string `json:"background"`
	}
	err := c.post(ctx, c.visionBaseURL+"/v1/vision/describe", map[string]any{
		"image_url": photoURL,
	}, &response)
	if err != nil {
		return ports.SceneLabels{}, err
	}
	if strings.TrimSpace(response.Subject) == "" || strings.TrimSpace(response.Background) == "" {
		return ports.SceneLabels{}, fmt.Errorf("describe scene returned empty labels for %s", photoURL)
	}
	return ports.SceneLabels{Subject: response.Subject, Background: response.Background}, nil
}

func (c *Client) ScoreLabels(ctx context.Context, photoURL string, labels []string) (map[string]float64, error) {
	var response struct {
		Scores map[string]float64 `json:"scores"`
	}
	err := c.post(ctx, c.visionBaseURL+"/v1/vision/similarity", map[string]any{
		"image_url": photoURL,
		"labels":    labels,
	}, &response)
	if err != nil {
		return nil, err
	}
	if len(response.Scores) == 0 {
		return nil, fmt.Errorf("similarity scoring returned no scores for %s", photoURL)
	}
	return response.Scores, nil
}

func (c *Client) SamePerson(ctx context.Context, photoURL string, enrolledURL string) (ports.VisionAnswer, error) {
	var response struct {
		Answer string `json:"answer"`
	}
	err := c.post(ctx, c.reasoningBaseURL+"/v1/reasoning/same-person", map[string]any{
		"image_url":    photoURL,
		"enrolled_url": enrolledURL,
	}, &response)
	if err != nil {
		return ports.VisionAnswerUnclear, err
	}
	return parseAnswer(response.Answer), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode vision request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build vision request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		if c.logger != nil {
			c.logger.Warn("vision upstream returned non-200",
				"event", "vision_call_failed",
				"module", "verification/submission-pipeline",
				"layer", "adapter",
				"url", url,
				"status_code", response.StatusCode,
			)
		}
		return fmt.Errorf("call %s: unexpected status %d", url, response.StatusCode)
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// parseAnswer normalizes free-text model verdicts. Anything that is not an
// unambiguous yes or no is treated as unclear.
func parseAnswer(raw string) ports.VisionAnswer {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimRight(normalized, ".!")
	switch {
	case normalized == "yes" || strings.HasPrefix(normalized, "yes,") || strings.HasPrefix(normalized, "yes "):
		return ports.VisionAnswerYes
	case normalized == "no" || strings.HasPrefix(normalized, "no,") || strings.HasPrefix(normalized, "no "):
		return ports.VisionAnswerNo
	default:
		return ports.VisionAnswerUnclear
	}
}
