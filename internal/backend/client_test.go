package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infrascan/internal/config"
	"infrascan/internal/metrics"
	"infrascan/internal/models"
)

var (
	pastFile    = models.ImageFile{Name: "2019.png", ContentType: "image/png", Data: []byte("past-bytes")}
	currentFile = models.ImageFile{Name: "2024.jpg", ContentType: "image/jpeg", Data: []byte("current-bytes")}
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.Registry) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg := metrics.NewRegistry("test")
	client, err := NewClient(srv.URL+"/analyze", reg)
	require.NoError(t, err)
	return client, reg
}

func TestAnalyzeSuccess(t *testing.T) {
	client, reg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		past, header, err := r.FormFile("past_image")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(past)
		assert.Equal(t, "past-bytes", string(data))
		assert.Equal(t, "2019.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

		current, header, err := r.FormFile("current_image")
		if !assert.NoError(t, err) {
			return
		}
		data, _ = io.ReadAll(current)
		assert.Equal(t, "current-bytes", string(data))
		assert.Equal(t, "2024.jpg", header.Filename)

		assert.Len(t, r.MultipartForm.File, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"resultImage1Url":"a.png","resultImage2Url":"b.png","textInfo":{"ssim":0.87,"difference":12.5}}`)
	})

	result, err := client.Analyze(context.Background(), pastFile, currentFile)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisResult{
		ResultImage1URL: "a.png",
		ResultImage2URL: "b.png",
		TextInfo:        models.TextInfo{SSIM: 0.87, Difference: 12.5},
	}, result)
	assert.Equal(t, int64(1), reg.Value("analyze_requests_total", nil))
}

func TestAnalyzeZeroMetricsAreValid(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"resultImage1Url":"a.png","resultImage2Url":"b.png","textInfo":{"ssim":0,"difference":0}}`)
	})

	result, err := client.Analyze(context.Background(), pastFile, currentFile)
	require.NoError(t, err)
	assert.Zero(t, result.TextInfo.SSIM)
	assert.Zero(t, result.TextInfo.Difference)
}

func TestAnalyzeStatusError(t *testing.T) {
	client, reg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Could not read one or both image files"}`)
	})

	_, err := client.Analyze(context.Background(), pastFile, currentFile)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindStatus, e.Kind)
	assert.Equal(t, http.StatusBadRequest, e.StatusCode)
	assert.Equal(t, "Could not read one or both image files", e.Message)
	assert.Equal(t, int64(1), reg.Value("analyze_failures_total", metrics.Labels{"kind": "status"}))
}

func TestAnalyzeMalformedBodies(t *testing.T) {
	bodies := map[string]string{
		"not json":           `<html>oops</html>`,
		"missing first url":  `{"resultImage2Url":"b.png","textInfo":{"ssim":1,"difference":0}}`,
		"empty second url":   `{"resultImage1Url":"a.png","resultImage2Url":"","textInfo":{"ssim":1,"difference":0}}`,
		"missing text info":  `{"resultImage1Url":"a.png","resultImage2Url":"b.png"}`,
		"missing difference": `{"resultImage1Url":"a.png","resultImage2Url":"b.png","textInfo":{"ssim":1}}`,
		"string ssim":        `{"resultImage1Url":"a.png","resultImage2Url":"b.png","textInfo":{"ssim":"high","difference":0}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			_, err := client.Analyze(context.Background(), pastFile, currentFile)
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, KindMalformed, e.Kind)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestAnalyzeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/analyze"
	srv.Close()

	client, err := NewClient(endpoint, nil)
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), pastFile, currentFile)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindTransport, e.Kind)
}

func TestAnalyzeHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Analyze(ctx, pastFile, currentFile)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewClientValidatesEndpoint(t *testing.T) {
	_, err := NewClient("127.0.0.1:5001/analyze", nil)
	assert.Error(t, err)

	_, err = NewClient("/analyze", nil)
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"ANALYZE_URL": "http://analysis:5001/analyze", "ANALYZE_TIMEOUT": "15s"})
	require.NoError(t, err)

	client, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://analysis:5001/analyze", client.Endpoint())
	assert.Equal(t, 15*time.Second, client.httpClient.Timeout)
}
