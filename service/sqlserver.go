package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"vizinsight/config"
	"vizinsight/models"
)

var ErrNotReadOnly = errors.New("only SELECT and WITH statements may run against the warehouse")

// SQLServerService runs generated SQL against the reporting warehouse so
// answers that came back without rows can still be charted.
type SQLServerService struct {
	db      *sql.DB
	maxRows int
}

func NewSQLServerService(cfg config.SQLServerConfig) (*SQLServerService, error) {
	if !cfg.Enabled() {
		return nil, errors.New("SQL Server configuration is incomplete")
	}

	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQL Server connection")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		// the warehouse is optional; start anyway
		log.Warn().Err(err).Str("server", cfg.Server).Msg("failed to ping SQL Server during initialization")
	}

	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 500
	}
	return &SQLServerService{db: db, maxRows: maxRows}, nil
}

func buildConnectionString(cfg config.SQLServerConfig) string {
	connStr := fmt.Sprintf("server=%s;port=%s;database=%s", cfg.Server, cfg.Port, cfg.Database)

	if cfg.UserID != "" {
		connStr += fmt.Sprintf(";user id=%s;password=%s", cfg.UserID, cfg.Password)
	} else {
		connStr += ";trusted_connection=true"
	}

	if cfg.Encrypt {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	} else {
		connStr += ";encrypt=false"
	}
	// generated SQL only ever reads
	connStr += ";ApplicationIntent=ReadOnly"
	return connStr
}

func (s *SQLServerService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLServerService) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("SQL Server connection is not initialized")
	}
	return s.db.PingContext(ctx)
}

var (
	leadingComments = regexp.MustCompile(`(?s)^(\s*(--[^\n]*\n|/\*.*?\*/))*\s*`)
	writeKeywords   = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|drop|alter|create|truncate|exec|execute|grant|revoke|into)\b`)
)

// IsReadOnly reports whether query is a single SELECT or WITH statement
// that writes nothing.
func IsReadOnly(query string) bool {
	q := leadingComments.ReplaceAllString(query, "")
	q = strings.TrimRight(strings.TrimSpace(q), ";")
	if q == "" || strings.Contains(q, ";") {
		return false
	}
	first := strings.ToUpper(strings.Fields(q)[0])
	if first != "SELECT" && first != "WITH" {
		return false
	}
	return !writeKeywords.MatchString(q)
}

// Query runs a read-only query and returns at most maxRows rows.
func (s *SQLServerService) Query(ctx context.Context, query string) (*models.SQLResult, error) {
	if s.db == nil {
		return nil, errors.New("SQL Server connection is not initialized")
	}
	if !IsReadOnly(query) {
		return nil, ErrNotReadOnly
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return &models.SQLResult{Error: err.Error()}, errors.Wrap(err, "run warehouse query")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return &models.SQLResult{Error: err.Error()}, err
	}

	var resultRows [][]interface{}
	for len(resultRows) < s.maxRows && rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return &models.SQLResult{Error: err.Error()}, err
		}

		row := make([]interface{}, len(columns))
		for i, val := range values {
			row[i] = normalizeValue(val)
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return &models.SQLResult{Error: err.Error()}, err
	}

	return &models.SQLResult{Columns: columns, Rows: resultRows}, nil
}

// normalizeValue keeps numbers numeric and turns everything else into text.
func normalizeValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return nil
	case int64, float64, float32, int32, int, bool, string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// RowsAsData converts a warehouse result into the row shape inference
// answers use.
func RowsAsData(result *models.SQLResult) []any {
	if result == nil || len(result.Rows) == 0 {
		return nil
	}
	out := make([]any, len(result.Rows))
	for i, row := range result.Rows {
		out[i] = []any(row)
	}
	return out
}
