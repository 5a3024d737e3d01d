package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"vizinsight/cache"
	"vizinsight/chart"
	"vizinsight/config"
	"vizinsight/models"
	"vizinsight/retry"
)

var (
	// ErrRateLimited is returned when an endpoint answers 429.
	ErrRateLimited = errors.New("remote rate limit reached")
	// ErrUnauthorized is returned for 401 and 403 answers.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNoData is returned when the backend has no tables to query.
	ErrNoData = errors.New("no data sources available")
	// ErrUpstream wraps any other non-2xx answer.
	ErrUpstream = errors.New("upstream error")
	// ErrEmptyChart is returned when the chart endpoint answered with nothing usable.
	ErrEmptyChart = errors.New("chart response is empty")
)

type AIService struct {
	apiKey       string
	inferenceURL string
	chartURL     string
	healthURL    string
	cache        *cache.Cache
	httpClient   *http.Client
	retryOpts    retry.Options
	health       singleflight.Group
}

func New(cfg config.InferenceConfig, retryCfg config.RetryConfig, cache *cache.Cache) *AIService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = retry.DefaultOptions.Timeout
	}

	return &AIService{
		apiKey:       cfg.APIKey,
		inferenceURL: cfg.InferenceURL,
		chartURL:     cfg.ChartURL,
		healthURL:    cfg.HealthURL,
		cache:        cache,
		httpClient: &http.Client{
			// per-attempt deadlines come from retry.Options.Timeout
			Timeout: 2 * timeout,
		},
		retryOpts: retry.Options{
			Retries:    retryCfg.Retries,
			Delay:      retryCfg.Delay,
			Multiplier: retryCfg.Multiplier,
			MaxDelay:   retryCfg.MaxDelay,
			Timeout:    timeout,
		},
	}
}

func (a *AIService) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

func (a *AIService) opts(name string) retry.Options {
	o := a.retryOpts
	o.Name = name
	return o
}

// Infer sends prompt to the inference endpoint and normalizes the answer.
// Transport errors and 5xx answers are retried; 401/403, 429 and
// "no tables" answers are terminal.
func (a *AIService) Infer(ctx context.Context, prompt, email string) (*models.InferenceResult, error) {
	cacheKey := fmt.Sprintf("inference:%s:%s", email, prompt)
	if cached, found := a.cache.Get(cacheKey); found {
		res := cached.(models.InferenceResult)
		return &res, nil
	}

	reqBody := map[string]string{"prompt": prompt}
	if email != "" {
		reqBody["email"] = email
	}

	res := retry.Fetch(ctx, func(ctx context.Context) ([]byte, error) {
		return a.post(ctx, a.inferenceURL, reqBody)
	}, a.opts("inference"))
	if res.Err != nil {
		return nil, errors.Wrapf(res.Err, "inference failed after %d attempt(s)", res.Attempts)
	}

	result := Normalize(res.Data)
	if result.Answer != "" || result.SQL != "" {
		a.cache.SetDefault(cacheKey, result)
	}
	return &result, nil
}

// GenerateChart asks the chart endpoint for a chart. The response may be
// {chart_code}, {html}, {labels, datasets}, a JSON string or raw text.
func (a *AIService) GenerateChart(ctx context.Context, req models.ChartRequest) (*chart.Payload, error) {
	res := retry.Fetch(ctx, func(ctx context.Context) ([]byte, error) {
		return a.post(ctx, a.chartURL, req)
	}, a.opts("generate-chart"))
	if res.Err != nil {
		return nil, errors.Wrapf(res.Err, "chart generation failed after %d attempt(s)", res.Attempts)
	}
	return ParseChartResponse(res.Data)
}

// healthTimeout bounds a shared health probe, retries included.
const healthTimeout = 30 * time.Second

// Health calls the health endpoint and expects {"status":"ok"}. Concurrent
// callers share one request; a caller giving up does not cancel it for the
// others.
func (a *AIService) Health(ctx context.Context) (string, error) {
	ch := a.health.DoChan("health", func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), healthTimeout)
		defer cancel()

		var last string
		res := retry.Fetch(shared, func(ctx context.Context) (string, error) {
			body, err := a.get(ctx, a.healthURL)
			if err != nil {
				return "", err
			}
			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return "", retry.Permanent(errors.Wrap(err, "decode health response"))
			}
			last = status.Status
			if status.Status != "ok" {
				return status.Status, errors.Errorf("health status %q", status.Status)
			}
			return status.Status, nil
		}, a.opts("health"))
		if res.Err != nil {
			return last, res.Err
		}
		return res.Data, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		status, _ := r.Val.(string)
		return status, r.Err
	}
}

func (a *AIService) post(ctx context.Context, url string, body interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, retry.Permanent(errors.Wrap(err, "failed to marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, retry.Permanent(errors.Wrap(err, "failed to create request"))
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a *AIService) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(errors.Wrap(err, "failed to create request"))
	}
	return a.do(req)
}

func (a *AIService) do(req *http.Request) ([]byte, error) {
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
		req.Header.Set("apikey", a.apiKey)
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	log.Debug().
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("endpoint call")

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// classifyStatus maps a non-2xx answer to an error. Only 5xx answers stay
// retryable.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return retry.Permanent(ErrRateLimited)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return retry.Permanent(ErrUnauthorized)
	case mentionsNoTables(body):
		return retry.Permanent(ErrNoData)
	case status >= 500:
		return errors.Wrapf(ErrUpstream, "status %d", status)
	default:
		return retry.Permanent(errors.Wrapf(ErrUpstream, "status %d", status))
	}
}

func mentionsNoTables(body []byte) bool {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return false
	}
	text := strings.ToLower(errResp.Error + " " + errResp.Message + " " + errResp.Code)
	return strings.Contains(text, "no tables") || strings.Contains(text, "no_tables")
}

// ParseChartResponse converts a chart endpoint body into a payload.
func ParseChartResponse(body []byte) (*chart.Payload, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		if p := chart.NewFragment(string(body)); p != nil {
			return p, nil
		}
		return nil, ErrEmptyChart
	}

	switch r := v.(type) {
	case string:
		if p := chart.NewFragment(r); p != nil {
			return p, nil
		}
	case map[string]any:
		if _, ok := r["datasets"]; ok {
			return parseStructured(body)
		}
		for _, key := range []string{"chart_code", "html"} {
			if s, ok := r[key].(string); ok {
				if p := chart.NewFragment(s); p != nil {
					return p, nil
				}
			}
		}
	}
	return nil, ErrEmptyChart
}

func parseStructured(body []byte) (*chart.Payload, error) {
	var series struct {
		Labels   []string        `json:"labels"`
		Datasets []chart.Dataset `json:"datasets"`
	}
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, errors.Wrap(ErrEmptyChart, err.Error())
	}
	p := &chart.Payload{
		Kind:     chart.KindStructuredSeries,
		Labels:   series.Labels,
		Datasets: series.Datasets,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
