package service

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizinsight/ai"
	"vizinsight/models"
	"vizinsight/ratelimit"
	"vizinsight/retry"
	"vizinsight/session"
	"vizinsight/validation"
)

func TestNoticeFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		kind   models.NoticeKind
		action string
	}{
		{validation.ErrEmptyPrompt, http.StatusBadRequest, "empty_prompt", models.NoticeToast, ""},
		{ErrBusy, http.StatusConflict, "busy", models.NoticeSilent, ""},
		{ratelimit.ErrLimitReached, http.StatusTooManyRequests, "limit_reached", models.NoticeSilent, "/contact-sales"},
		{errors.Wrap(retry.Permanent(ai.ErrRateLimited), "inference failed after 1 attempt(s)"),
			http.StatusTooManyRequests, "rate_limited", models.NoticeDialog, "/contact-sales"},
		{session.ErrNoSession, http.StatusUnauthorized, "no_session", models.NoticeToast, ""},
		{retry.Permanent(ai.ErrUnauthorized), http.StatusUnauthorized, "no_session", models.NoticeToast, ""},
		{retry.Permanent(ai.ErrNoData), http.StatusFailedDependency, "no_data", models.NoticeToast, "/data-sources"},
		{errors.New("dial tcp 10.0.0.1:443: i/o timeout"), http.StatusBadGateway, "inference_failed", models.NoticeToast, ""},
	}
	for _, tt := range tests {
		f := NoticeFor(tt.err, testLinks)
		assert.Equal(t, tt.status, f.Status, tt.code)
		assert.Equal(t, tt.code, f.Code)
		require.NotNil(t, f.Notice)
		assert.Equal(t, tt.kind, f.Notice.Kind, tt.code)
		if tt.action == "" {
			assert.Nil(t, f.Notice.Action, tt.code)
		} else {
			require.NotNil(t, f.Notice.Action, tt.code)
			assert.Equal(t, tt.action, f.Notice.Action.URL)
		}
	}
}

func TestNoticeNeverLeaksErrorText(t *testing.T) {
	f := NoticeFor(errors.New("pq: password authentication failed for user sa"), testLinks)
	assert.NotContains(t, f.Notice.Message, "password")
	assert.NotContains(t, f.Notice.Title, "password")
}
