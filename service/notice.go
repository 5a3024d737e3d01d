package service

import (
	"net/http"

	"github.com/pkg/errors"

	"vizinsight/ai"
	"vizinsight/config"
	"vizinsight/db"
	"vizinsight/models"
	"vizinsight/ratelimit"
	"vizinsight/session"
	"vizinsight/surface"
	"vizinsight/validation"
)

// Failure is the user-facing form of an error: an HTTP status, a stable
// code and a notice. It never carries the error text itself.
type Failure struct {
	Status int
	Code   string
	Notice *models.Notice
}

// NoticeFor maps err to what the user gets to see.
func NoticeFor(err error, links config.LinkConfig) Failure {
	contactSales := &models.NoticeAction{Label: "Contact Sales", URL: links.ContactSalesURL}

	switch {
	case errors.Is(err, validation.ErrEmptyPrompt):
		return failure(http.StatusBadRequest, "empty_prompt", models.NoticeToast, "warning",
			"Empty question", "Please type a question first.", nil)
	case errors.Is(err, validation.ErrPromptTooLong):
		return failure(http.StatusBadRequest, "prompt_too_long", models.NoticeToast, "warning",
			"Question too long", "Please shorten your question and try again.", nil)
	case errors.Is(err, validation.ErrGibberish):
		return failure(http.StatusBadRequest, "invalid_prompt", models.NoticeToast, "warning",
			"Unclear question", "We could not understand that question. Try rephrasing it.", nil)
	case errors.Is(err, ErrBusy):
		return failure(http.StatusConflict, "busy", models.NoticeSilent, "info",
			"Please wait", "Your previous question is still being answered.", nil)
	case errors.Is(err, ErrStale):
		return failure(http.StatusConflict, "stale", models.NoticeSilent, "info",
			"Result discarded", "The view changed before the answer arrived.", nil)
	case errors.Is(err, ratelimit.ErrLimitReached):
		return failure(http.StatusTooManyRequests, "limit_reached", models.NoticeSilent, "info",
			"Daily limit reached", "You have used all of today's questions.", contactSales)
	case errors.Is(err, ai.ErrRateLimited):
		return failure(http.StatusTooManyRequests, "rate_limited", models.NoticeDialog, "warning",
			"Usage limit reached", "You have reached the usage limit of your plan. Contact sales to raise it.", contactSales)
	case errors.Is(err, session.ErrNoSession), errors.Is(err, ai.ErrUnauthorized):
		return failure(http.StatusUnauthorized, "no_session", models.NoticeToast, "error",
			"Signed out", "Please sign in again to continue.", nil)
	case errors.Is(err, ai.ErrNoData):
		return failure(http.StatusFailedDependency, "no_data", models.NoticeToast, "warning",
			"No data connected", "Connect a data source before asking questions.",
			&models.NoticeAction{Label: "Add Data", URL: links.AddDataURL})
	case errors.Is(err, surface.ErrNotFound), errors.Is(err, surface.ErrNotOwner):
		return failure(http.StatusNotFound, "surface_not_found", models.NoticeToast, "error",
			"Session expired", "This view has expired. Reload the page.", nil)
	case errors.Is(err, db.ErrNotFound):
		return failure(http.StatusNotFound, "not_found", models.NoticeToast, "error",
			"Not found", "That query no longer exists.", nil)
	case errors.Is(err, ErrUnsupportedFormat):
		return failure(http.StatusBadRequest, "unsupported_format", models.NoticeToast, "warning",
			"Unsupported format", "Exports are available as CSV or JSON.", nil)
	}
	return failure(http.StatusBadGateway, "inference_failed", models.NoticeToast, "error",
		"Something went wrong", "We could not answer your question. Please try again.", nil)
}

// chartNotice is the secondary notice attached to a result whose chart
// could not be produced.
func chartNotice(err error, links config.LinkConfig) models.Notice {
	if errors.Is(err, ai.ErrRateLimited) {
		return *NoticeFor(err, links).Notice
	}
	return models.Notice{
		Kind:    models.NoticeToast,
		Level:   "warning",
		Title:   "Chart unavailable",
		Message: "Your answer is ready, but we could not draw a chart for it.",
	}
}

func failure(status int, code string, kind models.NoticeKind, level, title, message string, action *models.NoticeAction) Failure {
	return Failure{
		Status: status,
		Code:   code,
		Notice: &models.Notice{Kind: kind, Level: level, Title: title, Message: message, Action: action},
	}
}
