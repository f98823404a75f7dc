// Package session implements a single-connection Postgres session: the
// connection state machine, the send-then-drain query pipeline, prepared
// statement execution, escaping primitives, and notification polling.
//
// A Conn owns at most one transport link. It is not internally
// synchronized: the link is single-request-at-a-time, so exactly one
// goroutine may operate a Conn at any moment. Callers that share a Conn
// must serialize access themselves (a mutex or a single owner goroutine).
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/pgsession/internal/config"
	"github.com/koustreak/pgsession/internal/errs"
	"github.com/koustreak/pgsession/internal/logger"
)

// Status is the connection lifecycle state.
type Status int

const (
	// StatusNone means no transport has ever been opened.
	StatusNone Status = iota

	// StatusGood means the transport is open and usable.
	StatusGood

	// StatusBad means a health probe reported a dead link. Persistent; a
	// new Conn must be constructed.
	StatusBad

	// StatusClosed means Close was called. Terminal.
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusGood:
		return "good"
	case StatusBad:
		return "bad"
	case StatusClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Conn is a lazily-connected Postgres session. The zero value is not usable;
// construct with New. The transport link is opened by the first operation
// that needs one, and session settings recorded before that point are
// applied as part of the connect.
type Conn struct {
	cfg  *config.Config
	log  *logger.Logger
	dial DialFunc

	tr     Transport
	status Status

	pending []Notification // notifications received but not yet polled
}

// Option customizes a Conn at construction.
type Option func(*Conn)

// WithLogger attaches a logger. Without it the Conn is silent.
func WithLogger(l *logger.Logger) Option {
	return func(c *Conn) { c.log = l }
}

// WithDialer substitutes the transport dialer. Tests use it to run the
// state machine against a fake link; embedders can use it to wrap the wire
// client.
func WithDialer(d DialFunc) Option {
	return func(c *Conn) { c.dial = d }
}

// New creates a Conn for the given configuration. No transport is opened;
// connecting happens on first use.
func New(cfg *config.Config, opts ...Option) *Conn {
	c := &Conn{
		cfg:    cfg,
		log:    logger.Nop(),
		dial:   dialPgconn,
		status: StatusNone,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().
		Str("conn_id", uuid.NewString()).
		Str("target", cfg.Redacted()).
		Logger()
	return c
}

// Status returns the current lifecycle state.
func (c *Conn) Status() Status {
	return c.status
}

// AddSettings records session settings to apply at connect time. Legal only
// before the transport exists.
func (c *Conn) AddSettings(settings map[string]string) error {
	if c.status != StatusNone {
		return errs.New(errs.KindState, "cannot modify settings: connection already established")
	}
	c.cfg.AddSettings(settings)
	return nil
}

// SetSetting records one session setting, overwriting any previous value for
// the same name. Legal only before the transport exists.
func (c *Conn) SetSetting(name, value string) error {
	if c.status != StatusNone {
		return errs.New(errs.KindState, "cannot modify settings: connection already established")
	}
	c.cfg.Set(name, value)
	return nil
}

// Close releases the transport link. Idempotent: closing an already-closed
// or never-opened Conn is a no-op. After Close every operation fails.
func (c *Conn) Close(ctx context.Context) {
	if c.status == StatusClosed {
		return
	}
	if c.tr != nil {
		if err := c.tr.Close(ctx); err != nil {
			c.log.Errorf("close failed: %v", err)
		}
		c.tr = nil
	}
	c.status = StatusClosed
	c.log.Debug("connection closed")
}

// Ping probes the link. A failed probe is the only path that moves a good
// connection to StatusBad.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	if err := c.tr.CheckConn(); err != nil {
		c.status = StatusBad
		c.log.Errorf("health probe failed: %v", err)
		return errs.Wrap(errs.KindUnhealthy, "link unhealthy", err)
	}
	return nil
}

// ensureConnected is the single entry point into the state machine. Every
// public operation that needs a transport calls it first.
func (c *Conn) ensureConnected(ctx context.Context) error {
	switch c.status {
	case StatusGood:
		return nil
	case StatusBad:
		return errs.New(errs.KindUnhealthy, "link unhealthy")
	case StatusClosed:
		return errs.New(errs.KindClosed, "link closed, no further operations")
	}
	return c.connect(ctx)
}

// connect opens a fresh transport link and applies the pending settings as
// one batched statement. On any failure no usable handle remains and the
// status stays StatusNone, so a later operation may retry the connect.
func (c *Conn) connect(ctx context.Context) error {
	tr, err := c.dial(ctx, c.cfg.ConnString(), c.enqueueNotification)
	if err != nil {
		c.log.Errorf("connect failed: %v", err)
		return errs.Wrap(errs.KindConnection, "connection attempt failed", err)
	}

	if batch, err := settingsBatch(tr, c.cfg.Settings()); err != nil {
		_ = tr.Close(ctx)
		return errs.Wrap(errs.KindConnection, "cannot serialize session settings", err)
	} else if batch != "" {
		if _, err := tr.Exec(ctx, batch); err != nil {
			_ = tr.Close(ctx)
			c.log.Errorf("applying session settings failed: %v", err)
			return errs.WrapStmt(errs.KindConnection, "applying session settings failed", batch, err)
		}
	}

	c.tr = tr
	c.status = StatusGood
	c.log.Debug("connected")
	return nil
}

// settingsBatch renders all pending settings as a single multi-statement
// SET batch, so applying them costs one round trip.
func settingsBatch(tr Transport, settings []config.Setting) (string, error) {
	if len(settings) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, s := range settings {
		value, err := tr.EscapeString(s.Value)
		if err != nil {
			return "", err
		}
		sb.WriteString("SET ")
		sb.WriteString(pgx.Identifier{s.Name}.Sanitize())
		sb.WriteString(" TO '")
		sb.WriteString(value)
		sb.WriteString("'; ")
	}
	return sb.String(), nil
}

// --- query pipeline ---

// Exec dispatches a plain SQL string, which may contain multiple
// `;`-separated statements, and drains every result unit it produces.
//
// All-or-nothing from the caller's view: if any statement in the batch
// fails, Exec returns a single *errs.SQLError for the failing statement and
// no handles, even for statements that succeeded before it. The transport
// resynchronizes the link internally, so the Conn remains usable.
func (c *Conn) Exec(ctx context.Context, sql string) (*Results, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	c.log.Debugf("exec: %s", sql)

	units, err := c.tr.Exec(ctx, sql)
	if err != nil {
		return nil, c.statementError(err, sql, nil)
	}
	if len(units) == 0 {
		return nil, errs.WrapStmt(errs.KindNoResults, "no pending results", sql, nil)
	}

	handles := make([]*ResultHandle, 0, len(units))
	for _, unit := range units {
		if unit.Err != nil {
			return nil, c.statementError(unit.Err, sql, nil)
		}
		handles = append(handles, newResultHandle(unit))
	}
	return &Results{handles: handles}, nil
}

// ExecSingle is Exec for callers that expect exactly one response unit. A
// multi-statement batch is a caller bug and fails with a state error.
func (c *Conn) ExecSingle(ctx context.Context, sql string) (*ResultHandle, error) {
	results, err := c.Exec(ctx, sql)
	if err != nil {
		return nil, err
	}
	h, ok := results.Single()
	if !ok {
		return nil, errs.WrapStmt(errs.KindState, "statement produced multiple results", sql, nil)
	}
	return h, nil
}

// ExecParams dispatches one parameterized statement. Parameters are the
// textual wire form produced by the value conversion layer; a nil element
// is NULL. Any raised SQL error carries both the statement and the
// serialized parameter list for diagnostics.
func (c *Conn) ExecParams(ctx context.Context, sql string, params []*string) (*ResultHandle, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	c.log.Debugf("exec params: %s", sql)

	unit := c.tr.ExecParams(ctx, sql, paramBytes(params))
	if unit.Err != nil {
		return nil, c.statementError(unit.Err, sql, paramStrings(params))
	}
	return newResultHandle(unit), nil
}

// Prepare registers a named statement on the server. The command-ok
// acknowledgement is discarded; only success or failure is reported.
func (c *Conn) Prepare(ctx context.Context, name, sql string) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	c.log.Debugf("prepare %s: %s", name, sql)

	if err := c.tr.Prepare(ctx, name, sql); err != nil {
		return c.statementError(err, sql, nil)
	}
	return nil
}

// ExecPrepared executes a statement previously registered with Prepare.
// Parameter handling matches ExecParams; errors additionally carry the
// statement name.
func (c *Conn) ExecPrepared(ctx context.Context, name string, params []*string) (*ResultHandle, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	c.log.Debugf("exec prepared: %s", name)

	unit := c.tr.ExecPrepared(ctx, name, paramBytes(params))
	if unit.Err != nil {
		return nil, c.statementError(unit.Err, name, paramStrings(params))
	}
	return newResultHandle(unit), nil
}

// --- client encoding / transaction status ---

// ClientEncoding reports the session's current client_encoding.
func (c *Conn) ClientEncoding(ctx context.Context) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", err
	}
	enc := c.tr.ParameterStatus("client_encoding")
	if enc == "" {
		return "", errs.New(errs.KindEncoding, "client encoding unavailable")
	}
	return enc, nil
}

// SetClientEncoding changes the session's client_encoding.
func (c *Conn) SetClientEncoding(ctx context.Context, encoding string) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	escaped, err := c.tr.EscapeString(encoding)
	if err != nil {
		return errs.Wrap(errs.KindEncoding, "cannot escape encoding name", err)
	}
	if _, err := c.tr.Exec(ctx, "SET client_encoding TO '"+escaped+"'"); err != nil {
		return errs.Wrap(errs.KindEncoding, "set client encoding rejected", err)
	}
	return nil
}

// TxStatus returns the server-reported transaction status byte:
// 'I' idle, 'T' in transaction, 'E' in a failed transaction.
func (c *Conn) TxStatus(ctx context.Context) (byte, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return 0, err
	}
	return c.tr.TxStatus(), nil
}

// --- notifications ---

// pollWindow bounds the best-effort socket read in PollNotification.
const pollWindow = 10 * time.Millisecond

// PollNotification performs one non-blocking poll of the notification
// queue. A nil return means no notification was pending; that is the only
// non-error "nothing happened" outcome in this package.
func (c *Conn) PollNotification(ctx context.Context) (*Notification, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if n := c.dequeueNotification(); n != nil {
		return n, nil
	}

	// Give the transport one short window to surface anything already on
	// the socket. Deadline expiry is the expected empty case.
	waitCtx, cancel := context.WithTimeout(ctx, pollWindow)
	defer cancel()
	if err := c.tr.WaitForNotification(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return c.dequeueNotification(), nil
		}
		return nil, errs.Wrap(errs.KindConnection, "notification poll failed", err)
	}
	return c.dequeueNotification(), nil
}

func (c *Conn) enqueueNotification(n Notification) {
	c.pending = append(c.pending, n)
}

func (c *Conn) dequeueNotification() *Notification {
	if len(c.pending) == 0 {
		return nil
	}
	n := c.pending[0]
	c.pending = c.pending[1:]
	return &n
}

// --- error mapping ---

// statementError classifies a failure from a dispatched statement. A server
// error response becomes *errs.SQLError; anything else is a transport-level
// failure of the send or drain.
func (c *Conn) statementError(err error, stmt string, params []string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		sqlErr := &errs.SQLError{
			Severity: pgErr.Severity,
			Code:     pgErr.Code,
			Message:  pgErr.Message,
			Detail:   pgErr.Detail,
			Hint:     pgErr.Hint,
			Position: pgErr.Position,
			Stmt:     stmt,
			Params:   params,
			Cause:    err,
		}
		c.log.ErrorWith("statement rejected", err, map[string]interface{}{
			"code": pgErr.Code,
			"stmt": stmt,
		})
		return sqlErr
	}

	c.log.ErrorWith("statement dispatch failed", err, map[string]interface{}{"stmt": stmt})
	return &errs.Error{
		Kind:    errs.KindConnection,
		Message: "statement dispatch failed",
		Stmt:    stmt,
		Params:  params,
		Cause:   err,
	}
}

func paramBytes(params []*string) [][]byte {
	if params == nil {
		return nil
	}
	out := make([][]byte, len(params))
	for i, p := range params {
		if p != nil {
			out[i] = []byte(*p)
		}
	}
	return out
}

func paramStrings(params []*string) []string {
	if params == nil {
		return nil
	}
	out := make([]string, len(params))
	for i, p := range params {
		if p == nil {
			out[i] = "NULL"
		} else {
			out[i] = *p
		}
	}
	return out
}

// Text is a convenience for building parameter lists: Text("42") is the
// textual parameter "42".
func Text(s string) *string {
	return &s
}
