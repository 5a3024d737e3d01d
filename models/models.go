package models

import (
	"vizinsight/chart"
)

type QueryRequest struct {
	Prompt       string `json:"prompt"`
	SessionEmail string `json:"email,omitempty"`
	UserID       string `json:"-"`
	SurfaceID    string `json:"-"`
}

// InferenceResult is the normalized inference endpoint answer.
type InferenceResult struct {
	Answer string `json:"answer"`
	SQL    string `json:"sql"`
	Data   []any  `json:"data"`
}

type QueryResult struct {
	ID        string         `json:"id"`
	Prompt    string         `json:"prompt"`
	Answer    string         `json:"answer"`
	SQL       string         `json:"sql"`
	RawData   []any          `json:"raw_data"`
	Chart     *chart.Payload `json:"chart,omitempty"`
	Notices   []Notice       `json:"notices,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// QueryRecord is the persisted form of a QueryResult.
type QueryRecord struct {
	UserID string `json:"user_id"`
	QueryResult
}

type ChartRequest struct {
	SQL       string `json:"sql"`
	Data      []any  `json:"data"`
	Inference string `json:"inference"`
	UserQuery string `json:"user_query"`
}

type NoticeKind string

const (
	NoticeToast  NoticeKind = "toast"
	NoticeDialog NoticeKind = "dialog"
	NoticeSilent NoticeKind = "silent"
)

type NoticeAction struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Notice is the user-facing form of an error or a secondary failure.
type Notice struct {
	Kind    NoticeKind    `json:"kind"`
	Level   string        `json:"level"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Action  *NoticeAction `json:"action,omitempty"`
}

type ErrorResponse struct {
	Error  string  `json:"error"`
	Notice *Notice `json:"notice,omitempty"`
}

type LimitResponse struct {
	UserID    string `json:"user_id"`
	Count     int    `json:"count"`
	Max       int    `json:"max"`
	Remaining int    `json:"remaining"`
	Key       string `json:"key"`
}

type SurfaceResponse struct {
	ID        string `json:"id"`
	ActiveTab string `json:"active_tab"`
	State     string `json:"state"`
	Busy      bool   `json:"busy"`
}

type TabRequest struct {
	Tab string `json:"tab" binding:"required"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	DB        string `json:"db"`
	Inference string `json:"inference"`
	Warehouse string `json:"warehouse"`
}

// SQLResult is a warehouse query result with every value rendered as text.
type SQLResult struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Error   string          `json:"error,omitempty"`
}
