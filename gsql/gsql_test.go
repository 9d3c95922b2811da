package gsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debugf(f string, args ...interface{}) { l.add(f, args) }
func (l *recordingLogger) Infof(f string, args ...interface{})  { l.add(f, args) }
func (l *recordingLogger) Warnf(f string, args ...interface{})  { l.add(f, args) }
func (l *recordingLogger) Errorf(f string, args ...interface{}) { l.add(f, args) }
func (l *recordingLogger) add(f string, args []interface{}) {
	l.messages = append(l.messages, fmt.Sprintf(f, args...))
}

func newMockDB(t *testing.T, opts ...DBOption) (*DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return Wrap(sqlx.NewDb(sqlDB, "sqlmock"), opts...), mock
}

func TestTxCommit(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO flows").WithArgs("a").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := db.TxContext(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO flows(client) VALUES (?)", "a")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRollbackOnError(t *testing.T) {
	logger := &recordingLogger{}
	db, mock := newMockDB(t, WithDBLogger(logger))
	ctx := context.Background()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("gone"))

	err := db.TxContext(ctx, func(*Tx) error { return boom }, WithTxReadOnly())
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, logger.messages, 1)
	assert.Contains(t, logger.messages[0], "rollback failed")
}

func TestTxRollbackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "oops", func() {
		_ = db.TxContext(context.Background(), func(*Tx) error { panic("oops") })
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxCommitError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	err := db.TxContext(context.Background(), func(*Tx) error { return nil })
	assert.ErrorContains(t, err, "gsql: commit tx: disk full")
}

func TestTxBeginError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("locked"))

	called := false
	err := db.TxContext(context.Background(), func(*Tx) error { called = true; return nil },
		WithTxIsolation(sql.LevelSerializable))
	assert.ErrorContains(t, err, "gsql: begin tx")
	assert.False(t, called)
}

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{}, nil }

type fakeConn struct{}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) { return &fakeStmt{}, nil }
func (c *fakeConn) Close() error                              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)                 { return fakeTx{}, nil }

type fakeStmt struct{}

func (s *fakeStmt) Close() error                                    { return nil }
func (s *fakeStmt) NumInput() int                                   { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) { return driver.RowsAffected(1), nil }
func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error)  { return &fakeRows{}, nil }

type fakeRows struct{}

func (r *fakeRows) Columns() []string              { return []string{"id"} }
func (r *fakeRows) Close() error                   { return nil }
func (r *fakeRows) Next(dest []driver.Value) error { return io.EOF }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

func TestWrapDriverLogsStatements(t *testing.T) {
	driverName := t.Name()
	logger := &recordingLogger{}
	sql.Register(driverName, WrapDriver(fakeDriver{}, logger))

	db, err := Open(driverName, "", WithDBLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.TxContext(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO demo(id) VALUES (?)", 1)
		return err
	}))

	require.NotEmpty(t, logger.messages)
	assert.Equal(t, "BEGIN", logger.messages[0])
	assert.Contains(t, logger.messages, "PREPARE: INSERT INTO demo(id) VALUES (?)")
	assert.Equal(t, "COMMIT", logger.messages[len(logger.messages)-1])

	var ids []int
	require.NoError(t, db.SelectContext(ctx, &ids, "SELECT id FROM demo"))
	assert.Empty(t, ids)
}
