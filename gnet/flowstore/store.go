// Package flowstore 把结束或被淘汰的 TCP 连接写入 SQL 数据库。
package flowstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/flow"
	"github.com/sofiworker/npcap/gsql"
)

var ErrClosed = errors.New("flowstore: store is closed")

// 每条语句单独执行，部分驱动的 Prepare 只编译第一条。
var schema = []string{`
CREATE TABLE IF NOT EXISTS tcp_flows (
	client        TEXT    NOT NULL,
	server        TEXT    NOT NULL,
	state         TEXT    NOT NULL,
	evicted       BOOLEAN NOT NULL,
	missed_syn    BOOLEAN NOT NULL,
	syn_time      TIMESTAMP,
	connect_time  TIMESTAMP,
	close_time    TIMESTAMP,
	sent_segments INTEGER NOT NULL,
	sent_payload  INTEGER NOT NULL,
	sent_retrans  INTEGER NOT NULL,
	recv_segments INTEGER NOT NULL,
	recv_payload  INTEGER NOT NULL,
	recv_retrans  INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_tcp_flows_client ON tcp_flows(client)`,
	`CREATE INDEX IF NOT EXISTS idx_tcp_flows_server ON tcp_flows(server)`,
}

const insertFlow = `
INSERT INTO tcp_flows (
	client, server, state, evicted, missed_syn, syn_time, connect_time, close_time,
	sent_segments, sent_payload, sent_retrans, recv_segments, recv_payload, recv_retrans
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectFlows = `
SELECT client, server, state, evicted, missed_syn, syn_time, connect_time, close_time,
	sent_segments, sent_payload, sent_retrans, recv_segments, recv_payload, recv_retrans
FROM tcp_flows
WHERE client = ? OR server = ?
ORDER BY syn_time
LIMIT ?`

// Record 是一条连接的持久化形式。
type Record struct {
	Client       string    `db:"client"`
	Server       string    `db:"server"`
	State        string    `db:"state"`
	Evicted      bool      `db:"evicted"`
	MissedSyn    bool      `db:"missed_syn"`
	SynTime      time.Time `db:"syn_time"`
	ConnectTime  time.Time `db:"connect_time"`
	CloseTime    time.Time `db:"close_time"`
	SentSegments int       `db:"sent_segments"`
	SentPayload  int       `db:"sent_payload"`
	SentRetrans  int       `db:"sent_retrans"`
	RecvSegments int       `db:"recv_segments"`
	RecvPayload  int       `db:"recv_payload"`
	RecvRetrans  int       `db:"recv_retrans"`
}

// NewRecord snapshots f.
func NewRecord(f *flow.Flow, evicted bool) Record {
	return Record{
		Client:       f.Src.String(),
		Server:       f.Dst.String(),
		State:        f.State.String(),
		Evicted:      evicted,
		MissedSyn:    f.MissedSyn,
		SynTime:      f.SynTime,
		ConnectTime:  f.ConnectTime,
		CloseTime:    f.CloseTime,
		SentSegments: f.Send.Segments,
		SentPayload:  f.Send.BytesPayload,
		SentRetrans:  f.Send.Retransmits(),
		RecvSegments: f.Recv.Segments,
		RecvPayload:  f.Recv.BytesPayload,
		RecvRetrans:  f.Recv.Retransmits(),
	}
}

type Option func(*Store)

// WithBatchSize flushes automatically once n records are pending.
// n <= 0 keeps records until Flush is called.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		s.batch = n
	}
}

func WithLogger(l glog.GLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store 实现 flow.Observer：end 和 evict 事件被缓存，Flush 时在一个事务里写入。
// 与 Tracker 一样不是并发安全的。
type Store struct {
	db      *gsql.DB
	log     glog.GLogger
	batch   int
	pending []Record
	written int
	closed  bool
	// 自动 flush 的错误，下一次 Flush 重试失败时一并返回
	err error
}

// New creates the table if needed.
func New(ctx context.Context, db *gsql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, log: glog.Named("flowstore")}
	for _, opt := range opts {
		opt(s)
	}
	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("flowstore: create schema: %w", err)
		}
	}
	return s, nil
}

func (s *Store) OnEvent(e flow.Event) {
	switch e.Signal {
	case flow.SignalEnd:
		s.Add(NewRecord(e.Flow, false))
	case flow.SignalEvict:
		s.Add(NewRecord(e.Flow, true))
	}
}

// Add queues r for the next flush.
func (s *Store) Add(r Record) {
	s.pending = append(s.pending, r)
	if s.closed || s.batch <= 0 || len(s.pending) < s.batch {
		return
	}
	if err := s.write(context.Background()); err != nil {
		s.log.Warn("flush flows", "pending", len(s.pending), "error", err)
		s.err = err
		return
	}
	s.err = nil
}

// Pending returns the number of queued records.
func (s *Store) Pending() int {
	return len(s.pending)
}

// Written returns the number of records committed so far.
func (s *Store) Written() int {
	return s.written
}

// Flush writes every queued record in one transaction. On failure the
// records stay queued. A failed automatic flush is retried here; its
// error is returned only if this attempt fails as well.
func (s *Store) Flush(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	prev := s.err
	s.err = nil
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.write(ctx); err != nil {
		if prev != nil {
			return errors.Join(prev, err)
		}
		return err
	}
	if prev != nil {
		s.log.Info("flows written after earlier failure", "error", prev)
	}
	return nil
}

func (s *Store) write(ctx context.Context) error {
	err := s.db.TxContext(ctx, func(tx *gsql.Tx) error {
		stmt, err := tx.PreparexContext(ctx, insertFlow)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range s.pending {
			if _, err := stmt.ExecContext(ctx,
				r.Client, r.Server, r.State, r.Evicted, r.MissedSyn,
				r.SynTime, r.ConnectTime, r.CloseTime,
				r.SentSegments, r.SentPayload, r.SentRetrans,
				r.RecvSegments, r.RecvPayload, r.RecvRetrans,
			); err != nil {
				return fmt.Errorf("insert %s-%s: %w", r.Client, r.Server, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("flowstore: flush: %w", err)
	}
	s.written += len(s.pending)
	s.log.Debug("flows written", "count", len(s.pending), "total", s.written)
	s.pending = s.pending[:0]
	return nil
}

// ByEndpoint returns up to limit records where addr ("ip:port") is the
// client or the server, oldest first.
func (s *Store) ByEndpoint(ctx context.Context, addr string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 200
	}
	var out []Record
	if err := s.db.SelectContext(ctx, &out, selectFlows, addr, addr, limit); err != nil {
		return nil, fmt.Errorf("flowstore: query %s: %w", addr, err)
	}
	return out, nil
}

// Close flushes what is pending. The database itself is left open.
// When the flush fails the store stays open so Close can be retried.
func (s *Store) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.closed = true
	return nil
}
