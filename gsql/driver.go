package gsql

import (
	"database/sql/driver"
	"time"

	"github.com/sofiworker/npcap/glog"
)

type tracedDriver struct {
	driver.Driver
	logger glog.Logger
}

type tracedConn struct {
	driver.Conn
	logger glog.Logger
}

type tracedStmt struct {
	driver.Stmt
	query  string
	logger glog.Logger
}

type tracedTx struct {
	driver.Tx
	logger glog.Logger
}

var (
	_ driver.Driver = (*tracedDriver)(nil)
	_ driver.Conn   = (*tracedConn)(nil)
	_ driver.Stmt   = (*tracedStmt)(nil)
	_ driver.Tx     = (*tracedTx)(nil)
)

// WrapDriver 返回一个在 debug 级别记录每条语句的驱动，用于 sql.Register。
// logger 为 nil 时使用 glog.Named("gsql")。
func WrapDriver(drv driver.Driver, logger glog.Logger) driver.Driver {
	if logger == nil {
		logger = glog.Named("gsql")
	}
	return &tracedDriver{Driver: drv, logger: logger}
}

func (d *tracedDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}
	return &tracedConn{Conn: conn, logger: d.logger}, nil
}

func (c *tracedConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.Conn.Prepare(query)
	if err != nil {
		c.logger.Warnf("PREPARE failed: %s: %v", query, err)
		return nil, err
	}
	c.logger.Debugf("PREPARE: %s", query)
	return &tracedStmt{Stmt: stmt, query: query, logger: c.logger}, nil
}

func (c *tracedConn) Begin() (driver.Tx, error) {
	tx, err := c.Conn.Begin()
	if err != nil {
		return nil, err
	}
	c.logger.Debugf("BEGIN")
	return &tracedTx{Tx: tx, logger: c.logger}, nil
}

func (s *tracedStmt) Exec(args []driver.Value) (driver.Result, error) {
	start := time.Now()
	result, err := s.Stmt.Exec(args)
	s.logger.Debugf("EXEC: %s, args: %v, took: %v, err: %v", s.query, args, time.Since(start), err)
	return result, err
}

func (s *tracedStmt) Query(args []driver.Value) (driver.Rows, error) {
	start := time.Now()
	rows, err := s.Stmt.Query(args)
	s.logger.Debugf("QUERY: %s, args: %v, took: %v, err: %v", s.query, args, time.Since(start), err)
	return rows, err
}

func (t *tracedTx) Commit() error {
	t.logger.Debugf("COMMIT")
	return t.Tx.Commit()
}

func (t *tracedTx) Rollback() error {
	t.logger.Debugf("ROLLBACK")
	return t.Tx.Rollback()
}
