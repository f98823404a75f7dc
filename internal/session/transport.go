package session

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Notification is one asynchronous server notification (LISTEN/NOTIFY).
type Notification struct {
	Channel string
	Payload string
	PID     uint32 // backend process that sent the notification
}

// Transport is the slice of the Postgres wire client the session depends on.
// The production implementation wraps *pgconn.PgConn; tests substitute a
// fake so the state machine can be exercised without a server.
//
// Every Exec* method is a complete send-then-drain cycle: it does not return
// until all result units for the dispatched statement have been consumed and
// the link is ready for the next statement.
type Transport interface {
	Close(ctx context.Context) error
	CheckConn() error

	// Exec dispatches a plain (possibly multi-statement) query and drains
	// every result unit it produces.
	Exec(ctx context.Context, sql string) ([]*pgconn.Result, error)

	// ExecParams dispatches one parameterized statement. Text-format
	// parameters only; a nil element is NULL. Errors are carried in the
	// returned Result's Err field.
	ExecParams(ctx context.Context, sql string, params [][]byte) *pgconn.Result

	Prepare(ctx context.Context, name, sql string) error
	ExecPrepared(ctx context.Context, name string, params [][]byte) *pgconn.Result

	// EscapeString escapes s for interpolation into a SQL string, aware of
	// the connection's client encoding.
	EscapeString(s string) (string, error)

	ParameterStatus(key string) string
	TxStatus() byte

	// WaitForNotification blocks until a notification is received or ctx
	// expires. Received notifications are delivered through the handler
	// installed at dial time.
	WaitForNotification(ctx context.Context) error
}

// DialFunc opens a transport. notify is invoked for every asynchronous
// notification the link receives, including ones piggybacked on query
// traffic.
type DialFunc func(ctx context.Context, connString string, notify func(Notification)) (Transport, error)

// dialPgconn is the production DialFunc.
func dialPgconn(ctx context.Context, connString string, notify func(Notification)) (Transport, error) {
	cfg, err := pgconn.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.OnNotification = func(_ *pgconn.PgConn, n *pgconn.Notification) {
		notify(Notification{Channel: n.Channel, Payload: n.Payload, PID: n.PID})
	}

	conn, err := pgconn.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &pgTransport{conn: conn}, nil
}

// pgTransport adapts *pgconn.PgConn to the Transport interface.
type pgTransport struct {
	conn *pgconn.PgConn
}

func (t *pgTransport) Close(ctx context.Context) error {
	return t.conn.Close(ctx)
}

func (t *pgTransport) CheckConn() error {
	return t.conn.CheckConn()
}

func (t *pgTransport) Exec(ctx context.Context, sql string) ([]*pgconn.Result, error) {
	return t.conn.Exec(ctx, sql).ReadAll()
}

func (t *pgTransport) ExecParams(ctx context.Context, sql string, params [][]byte) *pgconn.Result {
	return t.conn.ExecParams(ctx, sql, params, nil, nil, nil).Read()
}

func (t *pgTransport) Prepare(ctx context.Context, name, sql string) error {
	_, err := t.conn.Prepare(ctx, name, sql, nil)
	return err
}

func (t *pgTransport) ExecPrepared(ctx context.Context, name string, params [][]byte) *pgconn.Result {
	return t.conn.ExecPrepared(ctx, name, params, nil, nil).Read()
}

func (t *pgTransport) EscapeString(s string) (string, error) {
	return t.conn.EscapeString(s)
}

func (t *pgTransport) ParameterStatus(key string) string {
	return t.conn.ParameterStatus(key)
}

func (t *pgTransport) TxStatus() byte {
	return t.conn.TxStatus()
}

func (t *pgTransport) WaitForNotification(ctx context.Context) error {
	return t.conn.WaitForNotification(ctx)
}
