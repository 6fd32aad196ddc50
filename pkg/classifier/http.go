package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
)

// Config configures an HTTPClient against an OpenAI-compatible chat
// completions endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// HTTPClient talks to the classifier over HTTP.
type HTTPClient struct {
	cfg    Config
	log    logger.Logger
	client *fasthttp.Client
}

// NewHTTPClient creates a classifier client. The per-call deadline comes from
// the context passed to Classify.
func NewHTTPClient(cfg Config, log logger.Logger) *HTTPClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{
		cfg: cfg,
		log: log,
		client: &fasthttp.Client{
			MaxConnsPerHost:     32,
			ReadTimeout:         60 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify sends req as one chat completion and parses the answer.
func (c *HTTPClient) Classify(ctx context.Context, req Request) (*Verdict, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(resp)

	httpReq.SetRequestURI(c.cfg.BaseURL + "/chat/completions")
	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.Header.SetContentType("application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	httpReq.SetBody(body)

	start := time.Now()
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(httpReq, resp, deadline)
	} else {
		err = c.client.Do(httpReq, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}

	c.log.Debug("Classifier responded", "status", resp.StatusCode(), "duration", time.Since(start))

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	var chat chatResponse
	if err := json.Unmarshal(resp.Body(), &chat); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrInvalidResponse, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}
	return ParseVerdict(chat.Choices[0].Message.Content)
}
