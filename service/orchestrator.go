package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"vizinsight/ai"
	"vizinsight/chart"
	"vizinsight/config"
	"vizinsight/events"
	"vizinsight/models"
	"vizinsight/retry"
	"vizinsight/session"
	"vizinsight/surface"
	"vizinsight/validation"
)

var (
	// ErrBusy is returned while the surface already has a query in flight.
	ErrBusy = errors.New("a query is already in flight")
	// ErrStale is returned when the surface moved on before the query
	// finished; the result was discarded.
	ErrStale = errors.New("query result is stale")
)

// InferenceClient is the remote side of a query.
type InferenceClient interface {
	Infer(ctx context.Context, prompt, email string) (*models.InferenceResult, error)
	GenerateChart(ctx context.Context, req models.ChartRequest) (*chart.Payload, error)
}

// Limiter is the per-user daily question allowance.
type Limiter interface {
	Check(ctx context.Context, userID string) (int, error)
	Increment(ctx context.Context, userID string) (int, error)
}

type HistoryStore interface {
	StoreQueryRecord(record *models.QueryRecord) error
}

type Warehouse interface {
	Query(ctx context.Context, query string) (*models.SQLResult, error)
}

type Publisher interface {
	Publish(ev events.Event)
}

type Options struct {
	Validator validation.Validator
	// Retry is used for session resolution.
	Retry retry.Options
	Links config.LinkConfig
	// Warehouse and Fill enable running generated SQL when the answer came
	// back without rows.
	Warehouse Warehouse
	Fill      bool
	History   HistoryStore
	Events    Publisher
}

type Orchestrator struct {
	ai       InferenceClient
	limiter  Limiter
	sessions session.Provider
	opts     Options
	now      func() time.Time
}

func NewOrchestrator(client InferenceClient, limiter Limiter, sessions session.Provider, opts Options) *Orchestrator {
	if opts.Retry.Retries == 0 && opts.Retry.Delay == 0 {
		opts.Retry = retry.DefaultOptions
	}
	return &Orchestrator{
		ai:       client,
		limiter:  limiter,
		sessions: sessions,
		opts:     opts,
		now:      time.Now,
	}
}

// SubmitQuery turns one question into an answer, optional SQL and an
// optional chart, and commits the result to s. Steps run strictly in order:
// validation, in-flight guard, daily limit, session, inference, chart,
// counter increment. Chart failures never fail the query.
func (o *Orchestrator) SubmitQuery(ctx context.Context, s *surface.Surface, req models.QueryRequest) (*models.QueryResult, error) {
	prompt, err := o.opts.Validator.ValidatePrompt(req.Prompt)
	if err != nil {
		return nil, err
	}

	if !s.TryAcquire() {
		return nil, ErrBusy
	}
	defer s.Release()
	gen := s.Generation()

	userID := req.UserID
	if userID == "" {
		userID = s.UserID
	}
	if _, err := o.limiter.Check(ctx, userID); err != nil {
		return nil, err
	}

	queryID := uuid.NewString()
	o.publish(s, events.TypeSubmitted, queryID, "")

	sess, err := o.resolveSession(ctx)
	if err != nil {
		o.publish(s, events.TypeFailed, queryID, "no active session")
		return nil, err
	}
	email := req.SessionEmail
	if email == "" {
		email = sess.Email
	}

	inference, err := o.ai.Infer(ctx, prompt, email)
	if err != nil {
		log.Error().Err(err).Str("surface", s.ID).Str("query_id", queryID).Msg("inference failed")
		o.publish(s, events.TypeFailed, queryID, "inference failed")
		return nil, err
	}
	o.publish(s, events.TypeInferenceCompleted, queryID, "")

	rows := inference.Data
	if len(rows) == 0 && inference.SQL != "" {
		rows = o.fill(ctx, inference.SQL)
	}

	result := &models.QueryResult{
		ID:        queryID,
		Prompt:    prompt,
		Answer:    inference.Answer,
		SQL:       inference.SQL,
		RawData:   rows,
		CreatedAt: o.now().UTC().Format(time.RFC3339Nano),
	}

	if inference.SQL != "" || len(rows) > 0 {
		payload, err := o.GenerateChart(ctx, inference.SQL, rows, inference.Answer, prompt)
		if err != nil {
			log.Warn().Err(err).Str("query_id", queryID).Msg("chart unavailable")
			result.Notices = append(result.Notices, chartNotice(err, o.opts.Links))
			o.publish(s, events.TypeChartFailed, queryID, "")
		} else {
			result.Chart = payload
			o.publish(s, events.TypeChartReady, queryID, string(payload.Kind))
		}
	}

	// an answer was obtained, so the question counts
	if _, err := o.limiter.Increment(ctx, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to increment question counter")
	}

	if o.opts.History != nil {
		record := &models.QueryRecord{UserID: userID, QueryResult: *result}
		if err := o.opts.History.StoreQueryRecord(record); err != nil {
			log.Error().Err(err).Str("query_id", queryID).Msg("failed to store query record")
		}
	}

	if !s.Commit(ctx, gen, result) {
		log.Info().Str("surface", s.ID).Str("query_id", queryID).Msg("discarding stale result")
		return nil, ErrStale
	}
	o.publish(s, events.TypeCompleted, queryID, "")
	return result, nil
}

// GenerateChart asks the chart endpoint for a chart. When the endpoint fails
// for any reason but a remote rate limit, a bar chart is built locally from
// rows if they are usable as label/value pairs.
func (o *Orchestrator) GenerateChart(ctx context.Context, sql string, rows []any, answer, prompt string) (*chart.Payload, error) {
	payload, err := o.ai.GenerateChart(ctx, models.ChartRequest{
		SQL:       sql,
		Data:      rows,
		Inference: answer,
		UserQuery: prompt,
	})
	if err == nil {
		return payload, nil
	}
	if errors.Is(err, ai.ErrRateLimited) {
		return nil, err
	}
	if fallback := chart.FromRows(rows); fallback != nil {
		log.Info().Err(err).Int("rows", len(rows)).Msg("chart endpoint failed, rendering locally")
		return fallback, nil
	}
	return nil, err
}

func (o *Orchestrator) resolveSession(ctx context.Context) (*session.Session, error) {
	opts := o.opts.Retry
	opts.Name = "session"
	res := retry.Fetch(ctx, func(ctx context.Context) (*session.Session, error) {
		sess, err := o.sessions.GetSession(ctx)
		if errors.Is(err, session.ErrNoSession) {
			return nil, retry.Permanent(err)
		}
		return sess, err
	}, opts)
	if res.Err != nil {
		if errors.Is(res.Err, session.ErrNoSession) {
			return nil, session.ErrNoSession
		}
		return nil, errors.Wrap(res.Err, "resolve session")
	}
	if res.Data == nil {
		return nil, session.ErrNoSession
	}
	return res.Data, nil
}

func (o *Orchestrator) fill(ctx context.Context, sql string) []any {
	if o.opts.Warehouse == nil || !o.opts.Fill {
		return nil
	}
	result, err := o.opts.Warehouse.Query(ctx, sql)
	if err != nil {
		log.Warn().Err(err).Msg("warehouse fill failed")
		return nil
	}
	return RowsAsData(result)
}

func (o *Orchestrator) publish(s *surface.Surface, typ, queryID, msg string) {
	if o.opts.Events == nil {
		return
	}
	o.opts.Events.Publish(events.Event{Type: typ, SurfaceID: s.ID, QueryID: queryID, Message: msg})
}
