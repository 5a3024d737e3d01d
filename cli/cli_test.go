package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizinsight/config"
	"vizinsight/models"
	"vizinsight/ratelimit"
)

func writeConfig(t *testing.T, endpoint, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`db_path: %s
counter_store: memory
daily_limit: 2
inference:
  inference_url: %s/inference
  chart_url: %s/chart
  health_url: %s/health
  timeout: 1s
retry:
  retries: 1
  delay: 1ms
  multiplier: 2
  max_delay: 2ms
%s`, filepath.Join(dir, "badger"), endpoint, endpoint, endpoint, extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func endpoint(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/inference":
			_, _ = w.Write([]byte(`{"answer":"two regions","sql":"SELECT region, total FROM sales","data":[["North",3],["South",5]]}`))
		case "/chart":
			w.WriteHeader(http.StatusBadGateway)
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--console=false", "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryCommandPrintsResult(t *testing.T) {
	cfgPath := writeConfig(t, endpoint(t), "")

	out, err := run(t, "query", "--config", cfgPath, "--user", "alice", "which", "region", "sells", "most")
	require.NoError(t, err)

	var result models.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "which region sells most", result.Prompt)
	assert.Equal(t, "two regions", result.Answer)
	// the chart endpoint failed, so the chart was built from the rows
	require.NotNil(t, result.Chart)
	assert.Equal(t, []string{"North", "South"}, result.Chart.Labels)
}

func TestQueryCommandRejectsEmptyPrompt(t *testing.T) {
	cfgPath := writeConfig(t, endpoint(t), "")

	_, err := run(t, "query", "--config", cfgPath, "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty_prompt")
}

func TestHealthCommand(t *testing.T) {
	cfgPath := writeConfig(t, endpoint(t), "")

	out, err := run(t, "health", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestCounterStoreSelection(t *testing.T) {
	tests := []struct {
		store   string
		redis   string
		want    any
		wantErr bool
	}{
		{store: "memory", want: &ratelimit.MemoryStore{}},
		{store: "redis", wantErr: true},
		{store: "etcd", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.store, func(t *testing.T) {
			a := &app{cfg: config.Config{CounterStore: tt.store, RedisAddr: tt.redis}}
			store, err := a.counterStore()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
