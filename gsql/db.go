// Package gsql 是 sqlx 之上的薄封装：事务辅助和语句日志。
package gsql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sofiworker/npcap/glog"
)

// Executor 定义了执行 SQL 操作的接口，DB 和 Tx 都实现它。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

type DB struct {
	*sqlx.DB
	logger glog.Logger
}

type DBOption func(*DB)

func WithDBLogger(l glog.Logger) DBOption {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

func Open(driverName, dataSourceName string, opts ...DBOption) (*DB, error) {
	d, err := sqlx.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("gsql: open %s: %w", driverName, err)
	}
	return Wrap(d, opts...), nil
}

// Wrap 包装一个已有的 sqlx 连接。
func Wrap(d *sqlx.DB, opts ...DBOption) *DB {
	db := &DB{DB: d, logger: glog.Named("gsql")}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

type TxOption func(*sql.TxOptions)

func WithTxIsolation(isolation sql.IsolationLevel) TxOption {
	return func(opts *sql.TxOptions) {
		opts.Isolation = isolation
	}
}

func WithTxReadOnly() TxOption {
	return func(opts *sql.TxOptions) {
		opts.ReadOnly = true
	}
}

// TxContext runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back when it returns an error or panics.
func (db *DB) TxContext(ctx context.Context, fn func(*Tx) error, opts ...TxOption) (err error) {
	var txOpts sql.TxOptions
	for _, opt := range opts {
		opt(&txOpts)
	}

	txx, err := db.DB.BeginTxx(ctx, &txOpts)
	if err != nil {
		return fmt.Errorf("gsql: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = txx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := txx.Rollback(); rbErr != nil {
				db.logger.Warnf("rollback failed: %v", rbErr)
			}
			return
		}
		if commitErr := txx.Commit(); commitErr != nil {
			err = fmt.Errorf("gsql: commit tx: %w", commitErr)
		}
	}()

	return fn(&Tx{Tx: txx})
}
