package gsql

import (
	"github.com/jmoiron/sqlx"
)

// Tx 是 TxContext 传给回调的事务句柄。
type Tx struct {
	*sqlx.Tx
}

var (
	_ Executor = (*DB)(nil)
	_ Executor = (*Tx)(nil)
)
