package flowstore

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/flow"
	"github.com/sofiworker/npcap/gsql"
)

var columns = []string{
	"client", "server", "state", "evicted", "missed_syn", "syn_time", "connect_time", "close_time",
	"sent_segments", "sent_payload", "sent_retrans", "recv_segments", "recv_payload", "recv_retrans",
}

func newStore(t *testing.T, opts ...Option) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tcp_flows").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_tcp_flows_client").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_tcp_flows_server").WillReturnResult(sqlmock.NewResult(0, 0))

	db := gsql.Wrap(sqlx.NewDb(sqlDB, "sqlmock"), gsql.WithDBLogger(glog.Nop()))
	s, err := New(context.Background(), db, append([]Option{WithLogger(glog.Nop())}, opts...)...)
	require.NoError(t, err)
	return s, mock
}

func testFlow(port uint16) *flow.Flow {
	syn := time.Unix(100, 0)
	return &flow.Flow{
		State:       flow.StateClosed,
		Src:         netip.AddrPortFrom(netip.MustParseAddr("10.0.0.1"), port),
		Dst:         netip.AddrPortFrom(netip.MustParseAddr("10.0.0.2"), 443),
		SynTime:     syn,
		ConnectTime: syn.Add(time.Millisecond),
		CloseTime:   syn.Add(time.Second),
		Send:        flow.Counters{Segments: 4, BytesPayload: 100, Retrans: map[uint32]int{1: 2}},
		Recv:        flow.Counters{Segments: 3, BytesPayload: 2000},
	}
}

func expectInsert(mock sqlmock.Sqlmock, clients ...string) {
	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO tcp_flows")
	for _, c := range clients {
		prep.ExpectExec().
			WithArgs(c, "10.0.0.2:443", sqlmock.AnyArg(), sqlmock.AnyArg(), false,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()
}

func TestNewRecord(t *testing.T) {
	r := NewRecord(testFlow(5000), true)
	assert.Equal(t, Record{
		Client:       "10.0.0.1:5000",
		Server:       "10.0.0.2:443",
		State:        "CLOSED",
		Evicted:      true,
		SynTime:      time.Unix(100, 0),
		ConnectTime:  time.Unix(100, int64(time.Millisecond)),
		CloseTime:    time.Unix(101, 0),
		SentSegments: 4,
		SentPayload:  100,
		SentRetrans:  2,
		RecvSegments: 3,
		RecvPayload:  2000,
	}, r)
}

func TestObserverFlush(t *testing.T) {
	s, mock := newStore(t)
	s.OnEvent(flow.Event{Signal: flow.SignalStart, Flow: testFlow(1)})
	s.OnEvent(flow.Event{Signal: flow.SignalEnd, Flow: testFlow(5000)})
	s.OnEvent(flow.Event{Signal: flow.SignalEvict, Flow: testFlow(5001)})
	assert.Equal(t, 2, s.Pending())

	expectInsert(mock, "10.0.0.1:5000", "10.0.0.1:5001")
	require.NoError(t, s.Flush(context.Background()))
	assert.Zero(t, s.Pending())
	assert.Equal(t, 2, s.Written())
	require.NoError(t, s.Flush(context.Background()), "nothing pending")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlushFailureKeepsRecords(t *testing.T) {
	s, mock := newStore(t)
	s.Add(NewRecord(testFlow(5000), false))

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO tcp_flows").ExpectExec().WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err := s.Flush(context.Background())
	assert.ErrorContains(t, err, "insert 10.0.0.1:5000-10.0.0.2:443: constraint")
	assert.Equal(t, 1, s.Pending())
	assert.Zero(t, s.Written())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchSize(t *testing.T) {
	s, mock := newStore(t, WithBatchSize(2))
	expectInsert(mock, "10.0.0.1:1", "10.0.0.1:2")
	s.Add(NewRecord(testFlow(1), false))
	assert.Equal(t, 1, s.Pending())
	s.Add(NewRecord(testFlow(2), false))
	assert.Zero(t, s.Pending())
	assert.Equal(t, 2, s.Written())

	mock.ExpectBegin().WillReturnError(errors.New("locked"))
	s.Add(NewRecord(testFlow(3), false))
	s.Add(NewRecord(testFlow(4), false))
	assert.Equal(t, 2, s.Pending())

	mock.ExpectBegin().WillReturnError(errors.New("busy"))
	err := s.Flush(context.Background())
	assert.ErrorContains(t, err, "locked", "auto flush error is kept when the retry fails")
	assert.ErrorContains(t, err, "busy")
	assert.Equal(t, 2, s.Pending())

	expectInsert(mock, "10.0.0.1:3", "10.0.0.1:4")
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 4, s.Written())
	assert.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseWritesAfterFailedAutoFlush(t *testing.T) {
	s, mock := newStore(t, WithBatchSize(1))
	mock.ExpectBegin().WillReturnError(errors.New("locked"))
	s.Add(NewRecord(testFlow(5000), false))
	assert.Equal(t, 1, s.Pending())

	expectInsert(mock, "10.0.0.1:5000")
	require.NoError(t, s.Close(context.Background()))
	assert.Zero(t, s.Pending())
	assert.Equal(t, 1, s.Written())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseFailureKeepsStoreOpen(t *testing.T) {
	s, mock := newStore(t)
	s.Add(NewRecord(testFlow(5000), false))

	mock.ExpectBegin().WillReturnError(errors.New("disk full"))
	assert.ErrorContains(t, s.Close(context.Background()), "disk full")
	assert.Equal(t, 1, s.Pending())

	expectInsert(mock, "10.0.0.1:5000")
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, s.Written())
	assert.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestByEndpoint(t *testing.T) {
	s, mock := newStore(t)
	syn := time.Unix(100, 0)
	rows := sqlmock.NewRows(columns).
		AddRow("10.0.0.1:5000", "10.0.0.2:443", "CLOSED", false, true, syn, syn, syn.Add(time.Second), 4, 100, 0, 3, 2000, 1)
	mock.ExpectQuery("SELECT client, server").WithArgs("10.0.0.2:443", "10.0.0.2:443", 200).WillReturnRows(rows)

	got, err := s.ByEndpoint(context.Background(), "10.0.0.2:443", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.1:5000", got[0].Client)
	assert.True(t, got[0].MissedSyn)
	assert.Equal(t, syn.Add(time.Second), got[0].CloseTime)
	assert.Equal(t, 2000, got[0].RecvPayload)
	assert.Equal(t, 1, got[0].RecvRetrans)

	mock.ExpectQuery("SELECT client, server").WillReturnError(errors.New("no table"))
	_, err = s.ByEndpoint(context.Background(), "x", 5)
	assert.ErrorContains(t, err, "flowstore: query x")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSchemaError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("read-only"))

	_, err = New(context.Background(), gsql.Wrap(sqlx.NewDb(sqlDB, "sqlmock")), WithLogger(glog.Nop()))
	assert.ErrorContains(t, err, "create schema")
}
