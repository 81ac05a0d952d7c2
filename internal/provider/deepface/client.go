package deepface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Model      string
	Detector   string
	RetryCount int
	// MaxImageSide bounds the longest side of frames sent to the service.
	MaxImageSide int
	Dimension    int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:5005",
		Timeout:      30 * time.Second,
		Model:        "Facenet",
		Detector:     "opencv",
		RetryCount:   3,
		MaxImageSide: 1280,
		Dimension:    128,
	}
}

// skipDetector tells DeepFace the image is already a cropped face.
const skipDetector = "skip"

const maxBackoff = 30 * time.Second

// Client talks to the DeepFace /represent endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
	backoff    func(attempt int) time.Duration
}

func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		backoff:    backoffFor,
	}
}

// Represent detects every face in the image and returns one embedding per face.
func (c *Client) Represent(ctx context.Context, imageDataURI string) (*RepresentResponse, error) {
	return c.represent(ctx, imageDataURI, c.config.Detector)
}

// RepresentCropped embeds an image that is already a single face.
func (c *Client) RepresentCropped(ctx context.Context, imageDataURI string) (*RepresentResponse, error) {
	return c.represent(ctx, imageDataURI, skipDetector)
}

func (c *Client) represent(ctx context.Context, imageDataURI, detector string) (*RepresentResponse, error) {
	body, err := json.Marshal(RepresentRequest{
		Img:      imageDataURI,
		Model:    c.config.Model,
		Detector: detector,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp RepresentResponse
	if err := c.post(ctx, "/represent", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// backoffFor doubles from one second per attempt, capped at maxBackoff.
func backoffFor(attempt int) time.Duration {
	if attempt <= 1 {
		return time.Second
	}
	if attempt > 6 {
		return maxBackoff
	}
	return min(time.Second<<(attempt-1), maxBackoff)
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether another attempt could succeed: transport
// failures and 5xx answers.
func retryable(err error) bool {
	if errors.Is(err, ErrInvalidResponse) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	var err error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		err = c.once(ctx, path, body, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrDeepFaceUnavailable, err)
}

func (c *Client) once(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &statusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
