package source

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-credgate/credgate/internal/credentials"
	"github.com/go-credgate/credgate/internal/store"
)

// sqlAuthenticator re-reads the credential table from a remote SQL database
// on every check: connect, query, disconnect. Calls are independent units
// of work; a transient backend failure fails that call only and is never
// retried.
type sqlAuthenticator struct {
	cfg    *SQLConfig
	engine *credentials.Engine
}

func newSQLAuthenticator(cfg *SQLConfig, o options) (Authenticator, error) {
	// Fail fast on malformed configuration, before any connection.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.state != nil {
		o.state.setSQL(cfg)
	}
	return &sqlAuthenticator{cfg: cfg, engine: o.engine}, nil
}

func (a *sqlAuthenticator) Check(user, password string) (credentials.Decision, error) {
	table, err := a.fetch()
	if err != nil {
		return credentials.Decision{}, err
	}
	return a.engine.Check(table, user, password), nil
}

func (a *sqlAuthenticator) Kind() Kind { return KindSQL }

// fetch runs one connect-query-disconnect cycle and normalizes the result.
// Every returned row is marked as carrying a hashed password.
func (a *sqlAuthenticator) fetch() (credentials.Table, error) {
	db, err := store.Open(a.cfg.Driver, a.cfg.DSN)
	if err != nil {
		return credentials.Table{}, fmt.Errorf("connect to credential database: %w", err)
	}
	defer store.Close(db) //nolint:errcheck

	rows, err := db.Raw(a.cfg.Tables.Credentials.Render()).Rows()
	if err != nil {
		return credentials.Table{}, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return credentials.Table{}, fmt.Errorf("read credential columns: %w", err)
	}

	var table credentials.Table
	table.Columns = append(table.Columns, columns...)
	if !table.HasColumn(credentials.ColHashed) {
		table.Columns = append(table.Columns, credentials.ColHashed)
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return credentials.Table{}, fmt.Errorf("scan credential row: %w", err)
		}
		rec := make(credentials.Record, 0, len(columns)+1)
		for i, col := range columns {
			rec = append(rec, credentials.Field{Name: col, Value: valueToString(values[i])})
		}
		rec = rec.Set(credentials.ColHashed, "true")
		table.Records = append(table.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return credentials.Table{}, fmt.Errorf("read credential rows: %w", err)
	}
	return table, nil
}

// valueToString normalizes driver-specific scan values into the string
// cells of the credential table.
func valueToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02")
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
