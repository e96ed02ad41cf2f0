package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/connection"

	"github.com/cherrylang/cherryscript/pkg/evaluator"
)

// Connect opens a database handle for a connection URI. Recognized driver
// schemes (mysql, postgres, sqlite) connect through squealx; any other
// scheme, or a driver that cannot be reached, yields the in-memory mock so
// scripts stay runnable without infrastructure.
func (s *Set) Connect(_ context.Context, uri, user, password string) (evaluator.Database, error) {
	u, err := url.Parse(uri)
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("unparseable connection uri, using mock database")
		return newMockDB(uri), nil
	}

	var driver string
	port := 0
	switch u.Scheme {
	case "mysql":
		driver, port = "mysql", 3306
	case "postgres", "postgresql":
		driver, port = "postgres", 5432
	case "sqlite", "file":
		driver = "sqlite3"
	default:
		return newMockDB(uri), nil
	}

	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	if user == "" {
		user = u.User.Username()
		if user == "" {
			user = s.db.Username
		}
	}
	if password == "" {
		if pw, ok := u.User.Password(); ok {
			password = pw
		} else {
			password = s.db.Password
		}
	}

	db, _, err := connection.FromConfig(squealx.Config{
		Driver:      driver,
		Host:        u.Hostname(),
		Port:        port,
		Username:    user,
		Password:    password,
		Database:    strings.TrimPrefix(u.Path, "/"),
		MaxIdleCons: s.db.MaxIdleConns,
		MaxOpenCons: s.db.MaxOpenConns,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("database unreachable, using mock database")
		return newMockDB(uri), nil
	}
	return &sqlDB{uri: uri, db: db}, nil
}

// sqlDB wraps a live squealx connection.
type sqlDB struct {
	evaluator.HandleBase
	uri string
	db  *squealx.DB
}

func (d *sqlDB) HandleKind() string { return "database" }

func (d *sqlDB) String() string { return fmt.Sprintf("<database uri=%s>", d.uri) }

func (d *sqlDB) Query(_ context.Context, query string) ([]*evaluator.Dict, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []*evaluator.Dict
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := evaluator.NewDict()
		for i, col := range columns {
			row.Set(col, columnValue(values[i]))
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// columnValue lifts a scanned column into a runtime value. Byte slices are
// re-parsed since some drivers return every column as raw bytes.
func columnValue(x any) evaluator.Value {
	switch t := x.(type) {
	case nil:
		return evaluator.Null{}
	case bool:
		return evaluator.Bool{Value: t}
	case int64:
		return evaluator.Int{Value: t}
	case float64:
		return evaluator.Float{Value: t}
	case string:
		return evaluator.String{Value: t}
	case time.Time:
		return evaluator.String{Value: t.Format("2006-01-02 15:04:05")}
	case []byte:
		s := string(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return evaluator.Int{Value: n}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return evaluator.Float{Value: f}
		}
		return evaluator.String{Value: s}
	default:
		return evaluator.String{Value: fmt.Sprint(t)}
	}
}

// mockDB answers canned fixtures for the demo tables so database scripts
// work with no server behind them.
type mockDB struct {
	evaluator.HandleBase
	uri string
}

func newMockDB(uri string) *mockDB { return &mockDB{uri: uri} }

func (d *mockDB) HandleKind() string { return "database" }

func (d *mockDB) String() string { return fmt.Sprintf("<database(mock) uri=%s>", d.uri) }

type fixtureRow []struct {
	key string
	val evaluator.Value
}

func str(s string) evaluator.Value  { return evaluator.String{Value: s} }
func num(n int64) evaluator.Value   { return evaluator.Int{Value: n} }
func flt(f float64) evaluator.Value { return evaluator.Float{Value: f} }
func boolean(b bool) evaluator.Value {
	return evaluator.Bool{Value: b}
}

var mockTables = map[string][]fixtureRow{
	"orders": {
		{{"id", num(1)}, {"status", str("shipped")}, {"is_return", boolean(false)}, {"amount", flt(100.0)}},
		{{"id", num(2)}, {"status", str("shipped")}, {"is_return", boolean(true)}, {"amount", flt(50.0)}},
		{{"id", num(3)}, {"status", str("pending")}, {"is_return", boolean(false)}, {"amount", flt(75.0)}},
	},
	"customers": {
		{{"id", num(1)}, {"name", str("Alice")}, {"active", boolean(true)}, {"signup_date", str("2023-06-01")}, {"total_spent", flt(1250.50)}, {"orders", num(5)}},
		{{"id", num(2)}, {"name", str("Bob")}, {"active", boolean(true)}, {"signup_date", str("2023-03-15")}, {"total_spent", flt(850.75)}, {"orders", num(3)}},
		{{"id", num(3)}, {"name", str("Charlie")}, {"active", boolean(false)}, {"signup_date", str("2022-11-20")}, {"total_spent", flt(320.00)}, {"orders", num(2)}},
	},
}

// Query recognizes `from <table>` plus the demo filters on status and
// active; anything else returns no rows. Each call builds fresh dicts so
// scripts can mutate results safely.
func (d *mockDB) Query(_ context.Context, query string) ([]*evaluator.Dict, error) {
	q := strings.ToLower(query)
	var fixture []fixtureRow
	var table string
	for name, rows := range mockTables {
		if strings.Contains(q, "from "+name) {
			fixture, table = rows, name
			break
		}
	}
	if table == "" {
		return nil, nil
	}
	wantShipped := strings.Contains(q, "where status='shipped'")
	wantActive := strings.Contains(q, "where active = true") || strings.Contains(q, "where active=true")

	var out []*evaluator.Dict
	for _, fr := range fixture {
		row := evaluator.NewDict()
		for _, cell := range fr {
			row.Set(cell.key, cell.val)
		}
		if wantShipped {
			if v, ok := row.Get("status"); !ok || !evaluator.DeepEqual(v, str("shipped")) {
				continue
			}
		}
		if wantActive {
			if v, ok := row.Get("active"); !ok || !evaluator.Truthiness(v) {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}
