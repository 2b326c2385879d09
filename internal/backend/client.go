package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"infrascan/internal/config"
	"infrascan/internal/metrics"
	"infrascan/internal/models"
)

const (
	maxResponseBytes = 1 << 20
	maxErrorBytes    = 4 << 10
)

// ErrUnavailable matches every failure of an analysis call
var ErrUnavailable = errors.New("analysis service unavailable")

// FailureKind classifies why an analysis call failed
type FailureKind string

const (
	KindTransport FailureKind = "transport"
	KindStatus    FailureKind = "status"
	KindMalformed FailureKind = "malformed"
)

// Error describes a failed analysis call. It matches ErrUnavailable with errors.Is.
type Error struct {
	Kind       FailureKind
	StatusCode int    // set for KindStatus
	Message    string // backend supplied {"error": ...} text, if any
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Message != "" {
			return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("analysis service returned %d", e.StatusCode)
	case KindMalformed:
		return fmt.Sprintf("malformed analysis response: %v", e.Err)
	default:
		return fmt.Sprintf("analysis request failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}

// Options controls optional parameters for NewClientWithOptions.
type Options struct {
	// Timeout bounds one whole call; 0 relies on the transport and the context
	Timeout time.Duration
	// HTTPClient replaces the default client; its Timeout is left untouched
	HTTPClient *http.Client
}

// NewOptions returns sensible defaults.
func NewOptions() Options {
	return Options{Timeout: 2 * time.Minute}
}

// Client posts image pairs to the external analysis service
type Client struct {
	endpoint   string
	httpClient *http.Client
	reg        *metrics.Registry
}

// NewClient constructs a client for endpoint with default options.
func NewClient(endpoint string, reg *metrics.Registry) (*Client, error) {
	return NewClientWithOptions(endpoint, NewOptions(), reg)
}

// NewClientWithOptions constructs a client for endpoint.
func NewClientWithOptions(endpoint string, opts Options, reg *metrics.Registry) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute http(s) URL, got %q", endpoint)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{endpoint: u.String(), httpClient: httpClient, reg: reg}, nil
}

// NewFromConfig constructs a client from app config.
func NewFromConfig(cfg config.Config, reg *metrics.Registry) (*Client, error) {
	opts := NewOptions()
	opts.Timeout = cfg.AnalyzeTimeout
	return NewClientWithOptions(cfg.AnalyzeURL, opts, reg)
}

// Endpoint returns the URL analysis requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// analyzeResponse mirrors the success body; pointers tell missing fields from zero values.
type analyzeResponse struct {
	ResultImage1URL *string `json:"resultImage1Url"`
	ResultImage2URL *string `json:"resultImage2Url"`
	TextInfo        *struct {
		SSIM       *float64 `json:"ssim"`
		Difference *float64 `json:"difference"`
	} `json:"textInfo"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Analyze uploads the past and current images in one multipart request and
// returns the parsed result. Every failure is an *Error.
func (c *Client) Analyze(ctx context.Context, past, current models.ImageFile) (models.AnalysisResult, error) {
	logger := log.Ctx(ctx).With().Str("endpoint", c.endpoint).Logger()
	c.reg.Inc(ctx, "analyze_requests_total", nil, 1)

	body, contentType, err := encodePair(past, current)
	if err != nil {
		return models.AnalysisResult{}, c.fail(ctx, &Error{Kind: KindTransport, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return models.AnalysisResult{}, c.fail(ctx, &Error{Kind: KindTransport, Err: err})
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.AnalysisResult{}, c.fail(ctx, &Error{Kind: KindTransport, Err: err})
	}
	defer resp.Body.Close()

	logger.Debug().Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("analysis response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{Kind: KindStatus, StatusCode: resp.StatusCode}
		var payload errorResponse
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes)); err == nil && json.Unmarshal(raw, &payload) == nil {
			e.Message = payload.Error
		}
		return models.AnalysisResult{}, c.fail(ctx, e)
	}

	result, err := decodeResult(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.AnalysisResult{}, c.fail(ctx, &Error{Kind: KindMalformed, Err: err})
	}

	logger.Info().
		Float64("ssim", result.TextInfo.SSIM).
		Float64("difference", result.TextInfo.Difference).
		Dur("duration", time.Since(start)).
		Msg("analysis completed")
	return result, nil
}

func (c *Client) fail(ctx context.Context, e *Error) error {
	c.reg.Inc(ctx, "analyze_failures_total", metrics.Labels{"kind": string(e.Kind)}, 1)
	log.Ctx(ctx).Warn().Err(e).Str("kind", string(e.Kind)).Msg("analysis request failed")
	return e
}

func decodeResult(r io.Reader) (models.AnalysisResult, error) {
	var payload analyzeResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return models.AnalysisResult{}, err
	}
	switch {
	case payload.ResultImage1URL == nil || *payload.ResultImage1URL == "":
		return models.AnalysisResult{}, errors.New("missing resultImage1Url")
	case payload.ResultImage2URL == nil || *payload.ResultImage2URL == "":
		return models.AnalysisResult{}, errors.New("missing resultImage2Url")
	case payload.TextInfo == nil:
		return models.AnalysisResult{}, errors.New("missing textInfo")
	case payload.TextInfo.SSIM == nil:
		return models.AnalysisResult{}, errors.New("missing textInfo.ssim")
	case payload.TextInfo.Difference == nil:
		return models.AnalysisResult{}, errors.New("missing textInfo.difference")
	}
	return models.AnalysisResult{
		ResultImage1URL: *payload.ResultImage1URL,
		ResultImage2URL: *payload.ResultImage2URL,
		TextInfo: models.TextInfo{
			SSIM:       *payload.TextInfo.SSIM,
			Difference: *payload.TextInfo.Difference,
		},
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodePair builds the multipart body with one part per slot.
func encodePair(past, current models.ImageFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	parts := []struct {
		slot models.Slot
		file models.ImageFile
	}{
		{models.SlotPast, past},
		{models.SlotCurrent, current},
	}
	for _, p := range parts {
		name := p.file.Name
		if name == "" {
			name = string(p.slot)
		}
		contentType := p.file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			p.slot.FieldName(), quoteEscaper.Replace(name)))
		h.Set("Content-Type", contentType)

		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create %s part: %w", p.slot.FieldName(), err)
		}
		if _, err := w.Write(p.file.Data); err != nil {
			return nil, "", fmt.Errorf("write %s part: %w", p.slot.FieldName(), err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
