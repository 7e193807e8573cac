package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"ProjectAnchor/internal/storage"
)

func TestKVBackendUpdateCommits(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		beginOp(),
		queryOp(lockValueSQL, mockRowsData{columns: []string{"v"}}),
		execOp(upsertValueSQL, mockResult{rowsAffected: 1}),
		commitOp(),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	backend := NewKVBackend(db)
	err := backend.Update(context.Background(), func(tx storage.Txn) error {
		_, found, err := tx.Get([]byte("config"))
		if err != nil {
			return err
		}
		if found {
			t.Fatalf("expected missing key")
		}
		return tx.Set([]byte("config"), []byte(`{"admin":"alice","total_anchors":0}`))
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
}

func TestKVBackendUpdateRollsBackOnError(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		beginOp(),
		execOp(upsertValueSQL, mockResult{rowsAffected: 1}),
		rollbackOp(),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	boom := errors.New("validation failed")
	backend := NewKVBackend(db)
	err := backend.Update(context.Background(), func(tx storage.Txn) error {
		if err := tx.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestKVBackendViewReadsValue(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		beginOp(),
		queryOp(selectValueSQL, mockRowsData{columns: []string{"v"}, values: [][]driver.Value{{[]byte("hello")}}}),
		commitOp(),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	backend := NewKVBackend(db)
	err := backend.View(context.Background(), func(r storage.Reader) error {
		value, found, err := r.Get([]byte("k"))
		if err != nil {
			return err
		}
		if !found || string(value) != "hello" {
			t.Fatalf("unexpected value %q found=%v", value, found)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
}

func TestRunMigrations(t *testing.T) {
	t.Parallel()

	files, err := loadMigrationFiles()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected kv and receipt migrations, got %d", len(files))
	}

	ops := []mockOperation{
		execOp(createMigrationsTable, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{
			columns: []string{"version"},
			values:  [][]driver.Value{{files[0].version}},
		}),
	}
	for _, file := range files[1:] {
		ops = append(ops, beginOp())
		for _, stmt := range file.statements {
			ops = append(ops, execOp(stmt, mockResult{}))
		}
		ops = append(ops,
			execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, mockResult{rowsAffected: 1}),
			commitOp(),
		)
	}

	db, drv := newMockDB(t, ops)
	defer drv.assertConsumed(t)
	defer db.Close()

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestSplitSQLStatementsDropsComments(t *testing.T) {
	stmts := splitSQLStatements("-- header\nCREATE TABLE a (x INT);\n\n-- second\nCREATE TABLE b (y INT);\n")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if strings.Contains(stmts[0], "--") || !strings.HasPrefix(stmts[1], "CREATE TABLE b") {
		t.Fatalf("unexpected statements: %q", stmts)
	}
	if parseMigrationVersion("0002_anchor_receipts.sql") != "0002" {
		t.Fatalf("unexpected version parsing")
	}
}

type operationType int

const (
	opExec operationType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops []mockOperation
	idx int32
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("mock-anchor-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func beginOp() mockOperation { return mockOperation{typ: opBegin} }

func commitOp() mockOperation { return mockOperation{typ: opCommit} }

func rollbackOp() mockOperation { return mockOperation{typ: opRollback} }

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

func (d *queueDriver) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&d.idx))
	if idx >= len(d.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &d.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", op.typ, expected)
	}
	atomic.AddInt32(&d.idx, 1)
	if op.query != "" && normalizeSQL(op.query) != normalizeSQL(query) {
		return nil, fmt.Errorf("unexpected query. want %q got %q", normalizeSQL(op.query), normalizeSQL(query))
	}
	return op, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *mockConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	op, err := c.driver.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockTx{driver: c.driver}, nil
}

func (c *mockConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	op, err := c.driver.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	op, err := c.driver.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *mockConn) Ping(context.Context) error { return nil }

type mockTx struct {
	driver *queueDriver
}

func (t *mockTx) Commit() error {
	op, err := t.driver.next(opCommit, "")
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) Rollback() error {
	op, err := t.driver.next(opRollback, "")
	if err != nil {
		return err
	}
	return op.err
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func normalizeSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
