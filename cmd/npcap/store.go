package main

import (
	"context"
	"database/sql"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/flowstore"
	"github.com/sofiworker/npcap/gsql"
)

// sqlite3 驱动包装了语句日志后以这个名字注册。
const sqliteDriver = "npcap-sqlite3"

var registerDriver sync.Once

// openStore opens the flow database at path. The returned function
// flushes the store and closes the database.
func openStore(ctx context.Context, path string, batch int) (*flowstore.Store, func(context.Context) error, error) {
	registerDriver.Do(func() {
		sql.Register(sqliteDriver, gsql.WrapDriver(&sqlite3.SQLiteDriver{}, glog.Named("gsql")))
	})

	db, err := gsql.Open(sqliteDriver, path)
	if err != nil {
		return nil, nil, err
	}
	// sqlite 只允许一个写连接
	db.SetMaxOpenConns(1)

	store, err := flowstore.New(ctx, db, flowstore.WithBatchSize(batch), flowstore.WithLogger(glog.Named("flowstore")))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func(ctx context.Context) error {
		err := store.Close(ctx)
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}
