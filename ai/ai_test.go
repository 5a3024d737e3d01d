package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizinsight/cache"
	"vizinsight/chart"
	"vizinsight/config"
	"vizinsight/models"
)

func newTestService(t *testing.T, h http.Handler) *AIService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(config.InferenceConfig{
		InferenceURL: srv.URL + "/inference",
		ChartURL:     srv.URL + "/chart",
		HealthURL:    srv.URL + "/health",
		APIKey:       "secret",
		Timeout:      time.Second,
	}, config.RetryConfig{
		Retries:    2,
		Delay:      time.Millisecond,
		Multiplier: 2,
		MaxDelay:   5 * time.Millisecond,
	}, cache.New(time.Minute))
}

func TestInferNormalizesAndSendsAuth(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inference", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "top regions", body["prompt"])
		assert.Equal(t, "a@b.c", body["email"])

		_, _ = w.Write([]byte(`{"answer":"North leads","sql":"SELECT region, revenue FROM sales","rows":[["North",10],["South",4]]}`))
	}))

	res, err := svc.Infer(context.Background(), "top regions", "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "North leads", res.Answer)
	assert.Equal(t, "SELECT region, revenue FROM sales", res.SQL)
	assert.Len(t, res.Data, 2)
}

func TestInferRetriesServerErrors(t *testing.T) {
	var calls int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	}))

	res, err := svc.Infer(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Answer)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInferCachesAnswers(t *testing.T) {
	var calls int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"answer":"cached"}`))
	}))

	for i := 0; i < 3; i++ {
		_, err := svc.Infer(context.Background(), "same", "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInferTerminalStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, `{}`, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{}`, ErrUnauthorized},
		{"no tables", http.StatusNotFound, `{"error":"No tables found for this account"}`, ErrNoData},
		{"bad request", http.StatusBadRequest, `{}`, ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))

			_, err := svc.Infer(context.Background(), "q", "")
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "terminal errors are not retried")
		})
	}
}

func TestGenerateChartShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind chart.Kind
	}{
		{"chart_code", `{"chart_code":"` + "```html\\n<script>x=1</script>\\n```" + `"}`, chart.KindHTMLFragment},
		{"html", `{"html":"<div></div><script>y=2</script>"}`, chart.KindHTMLFragment},
		{"bare string", `"<script>z=3</script>"`, chart.KindHTMLFragment},
		{"raw text", `new Chart(ctx, cfg)`, chart.KindHTMLFragment},
		{"structured", `{"labels":["A"],"datasets":[{"label":"v","data":[1]}]}`, chart.KindStructuredSeries},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req models.ChartRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "SELECT 1", req.SQL)
				assert.Equal(t, "show me", req.UserQuery)
				_, _ = w.Write([]byte(tc.body))
			}))

			p, err := svc.GenerateChart(context.Background(), models.ChartRequest{SQL: "SELECT 1", UserQuery: "show me"})
			require.NoError(t, err)
			require.NoError(t, p.Validate())
			assert.Equal(t, tc.kind, p.Kind)
		})
	}
}

func TestGenerateChartSanitizesFence(t *testing.T) {
	p, err := ParseChartResponse([]byte(`{"chart_code":"` + "```html\\n<script>x=1</script>\\n```" + `"}`))
	require.NoError(t, err)
	assert.Equal(t, "<script>x=1</script>", p.ScriptOrHTML)
}

func TestGenerateChartEmpty(t *testing.T) {
	_, err := ParseChartResponse([]byte(`{"chart_code":""}`))
	assert.ErrorIs(t, err, ErrEmptyChart)
	_, err = ParseChartResponse([]byte(`{}`))
	assert.ErrorIs(t, err, ErrEmptyChart)
}

func TestHealth(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	status, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status)
}

func TestHealthDegraded(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))

	status, err := svc.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, "degraded", status)
}

func TestHealthSurvivesFirstCallerLeaving(t *testing.T) {
	hit := make(chan struct{}, 4)
	release := make(chan struct{})
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Health(ctx)
		first <- err
	}()
	<-hit

	type outcome struct {
		status string
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		status, err := svc.Health(context.Background())
		second <- outcome{status, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "ok", got.status)
}
