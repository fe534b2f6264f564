package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	mssqldb "github.com/denisenkom/go-mssqldb"
	"github.com/rs/zerolog"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/adapters/base"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/types"
	"github.com/ruslano69/mssqldialect/pkg/retry"
)

// DriverName is the database/sql driver registered by go-mssqldb.
const DriverName = "sqlserver"

// Compatibility levels
const (
	CompatSQL2012 = 110
	CompatSQL2014 = 120
	CompatSQL2016 = 130
	CompatSQL2017 = 140
	CompatSQL2019 = 150
	CompatSQL2022 = 160
)

// Options configure Open and NewConn.
type Options struct {
	// Policy defaults to MSSQLPolicy with cfg.Schema as default schema.
	Policy *base.Policy

	// Retry applies to the initial ping only.
	Retry retry.Config

	// Logger defaults to zerolog.Nop().
	Logger *zerolog.Logger

	// Strict makes a requested compatibility mode above the server's an
	// error instead of a warning.
	Strict bool
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func (o Options) policy(schema string) base.Policy {
	if o.Policy != nil {
		return *o.Policy
	}
	p := base.MSSQLPolicy()
	if schema != "" {
		p.DefaultSchema = schema
	}
	return p
}

// Conn is a single server session. Statements run on one physical
// connection, so session state such as the current database is stable
// between calls.
//
// A Conn is not safe for concurrent use: ChangeDatabase mutates session
// state that every other call depends on. Use one Conn per concurrent
// introspection.
type Conn struct {
	db       *sql.DB
	conn     *sql.Conn
	compiler *Compiler
	run      runner
	log      zerolog.Logger

	database string

	serverVersion    int
	serverVersionStr string
	compatLevel      int
	effectiveCompat  int
}

// Open connects to the server in cfg.DSN, pings it with retries and
// detects the compatibility level.
func Open(ctx context.Context, cfg adapters.Config, opts Options) (*Conn, error) {
	log := opts.logger()

	db, err := sql.Open(DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	rc := opts.Retry
	if rc.Retryable == nil {
		rc.Retryable = isTransient
	}
	if rc.OnRetry == nil {
		rc.OnRetry = func(attempt int, err error, delay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("ping failed, retrying")
		}
	}
	retryer, err := retry.NewRetryer(rc)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := retryer.Do(ctx, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sc, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	c := NewConn(sc, cfg.Timeout, opts.policy(cfg.Schema), log)
	c.db = db

	if err := c.detectCompatibility(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to detect compatibility: %w", err)
	}
	if err := c.applyCompatibilityMode(cfg.CompatibilityMode, opts.Strict); err != nil {
		c.Close()
		return nil, err
	}

	log.Debug().
		Str("server", c.serverVersionStr).
		Int("compatibility", c.effectiveCompat).
		Msg("connected")
	return c, nil
}

// NewConn wraps an existing session. The caller keeps ownership of the
// pool the session came from.
func NewConn(conn *sql.Conn, timeout time.Duration, policy base.Policy, log zerolog.Logger) *Conn {
	return &Conn{
		conn:     conn,
		compiler: NewCompiler(policy),
		run:      runner{s: conn, timeout: timeout, log: log},
		log:      log,
	}
}

// Compiler returns the compiler statements are rendered with.
func (c *Conn) Compiler() *Compiler {
	return c.compiler
}

// Close releases the session, and the pool when Open created it.
func (c *Conn) Close() error {
	err := c.conn.Close()
	if c.db != nil {
		if cerr := c.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Exec compiles stmt and runs its batches in order.
func (c *Conn) Exec(ctx context.Context, stmt ast.Statement) (*Result, error) {
	compiled, err := c.compiler.Compile(stmt)
	if err != nil {
		return nil, err
	}
	return c.run.exec(ctx, compiled, returnParam(stmt))
}

// ExecCompiled runs already compiled batches.
func (c *Conn) ExecCompiled(ctx context.Context, compiled adapters.Compiled) (*Result, error) {
	return c.run.exec(ctx, compiled, "")
}

// Query compiles stmt, runs all but its last batch and returns the rows of
// the last one.
func (c *Conn) Query(ctx context.Context, stmt ast.Statement) (*Rows, error) {
	compiled, err := c.compiler.Compile(stmt)
	if err != nil {
		return nil, err
	}
	return c.run.query(ctx, compiled)
}

// ChangeDatabase switches the session's current database.
//
// Not safe for concurrent use on the same connection: every statement
// issued afterwards on this Conn runs in the new database.
func (c *Conn) ChangeDatabase(ctx context.Context, name string) error {
	if name == "" {
		return &adapters.MissingFieldError{Node: "ChangeDatabase", Field: "Name"}
	}
	if _, err := c.Exec(ctx, ast.RawSQL("USE "+c.compiler.Policy().Quote(name))); err != nil {
		c.database = ""
		return fmt.Errorf("failed to change database to %s: %w", name, err)
	}
	c.log.Debug().Str("database", name).Msg("database changed")
	c.database = name
	return nil
}

// CurrentDatabase returns the session's current database, asking the
// server only the first time.
func (c *Conn) CurrentDatabase(ctx context.Context) (string, error) {
	if c.database != "" {
		return c.database, nil
	}
	rows, err := c.Query(ctx, &ast.Select{Columns: []ast.Expression{ast.As(ast.Std("currentDatabase"), "name")}})
	if err != nil {
		return "", err
	}
	var name string
	if err := rows.ScanOne(&name); err != nil {
		return "", fmt.Errorf("failed to read current database: %w", err)
	}
	c.database = name
	return name, nil
}

// Begin starts a transaction on the session.
func (c *Conn) Begin(ctx context.Context) (*Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{
		tx:       tx,
		compiler: c.compiler,
		run:      runner{s: tx, timeout: c.run.timeout, log: c.log},
		log:      c.log,
	}, nil
}

// detectCompatibility reads the server version and the current database's
// compatibility level.
func (c *Conn) detectCompatibility(ctx context.Context) error {
	product := ast.Std("convert", ast.Fn("SERVERPROPERTY", ast.Lit("ProductVersion")), &ast.TypeRef{Type: types.String(128)})
	rows, err := c.Query(ctx, &ast.Select{Columns: []ast.Expression{ast.As(product, "version")}})
	if err != nil {
		return err
	}
	if err := rows.ScanOne(&c.serverVersionStr); err != nil {
		return fmt.Errorf("failed to get server version: %w", err)
	}
	c.serverVersion = parseServerVersion(c.serverVersionStr)

	rows, err = c.Query(ctx, &ast.Select{
		Columns: []ast.Expression{ast.Col("compatibility_level")},
		From:    []ast.Source{ast.From(ast.Name("databases", "sys"), "")},
		Where:   ast.Eq(ast.Col("name"), ast.Std("currentDatabase")),
	})
	if err != nil {
		return err
	}
	if err := rows.ScanOne(&c.compatLevel); err != nil {
		return fmt.Errorf("failed to get compatibility level: %w", err)
	}

	c.effectiveCompat = c.compatLevel
	return nil
}

// parseServerVersion extracts the major version:
//   - "11.0.2100.60" → 11 (SQL Server 2012)
//   - "15.0.2000.5"  → 15 (SQL Server 2019)
func parseServerVersion(version string) int {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

// applyCompatibilityMode lowers the effective compatibility to an explicit
// mode. A mode above what the server offers is reported, not honoured.
func (c *Conn) applyCompatibilityMode(mode string, strict bool) error {
	if mode == "" || mode == "auto" {
		return nil
	}

	explicit := parseCompatibilityMode(mode)
	if explicit == 0 {
		return fmt.Errorf("invalid compatibility mode: %s (expected: 2012, 2014, 2016, 2017, 2019, 2022 or auto)", mode)
	}

	if explicit > c.effectiveCompat {
		msg := fmt.Sprintf("requested SQL Server %s compatibility (level %d), but server is %s (level %d)",
			mode, explicit, serverVersionName(c.serverVersion), c.effectiveCompat)
		if strict {
			return fmt.Errorf("strict mode: %s", msg)
		}
		c.log.Warn().Msg(msg)
	}

	if explicit < c.effectiveCompat {
		c.effectiveCompat = explicit
	}
	return nil
}

func parseCompatibilityMode(mode string) int {
	switch mode {
	case "2012":
		return CompatSQL2012
	case "2014":
		return CompatSQL2014
	case "2016":
		return CompatSQL2016
	case "2017":
		return CompatSQL2017
	case "2019":
		return CompatSQL2019
	case "2022":
		return CompatSQL2022
	default:
		return 0
	}
}

func serverVersionName(major int) string {
	switch major {
	case 11:
		return "SQL Server 2012"
	case 12:
		return "SQL Server 2014"
	case 13:
		return "SQL Server 2016"
	case 14:
		return "SQL Server 2017"
	case 15:
		return "SQL Server 2019"
	case 16:
		return "SQL Server 2022"
	default:
		return fmt.Sprintf("SQL Server (version %d)", major)
	}
}

// CompatibilityLevel is the effective level after any explicit mode.
func (c *Conn) CompatibilityLevel() int {
	return c.effectiveCompat
}

// ServerVersion is the ProductVersion string reported by the server.
func (c *Conn) ServerVersion() string {
	return c.serverVersionStr
}

// SupportsSequences reports CREATE SEQUENCE availability (2012+).
func (c *Conn) SupportsSequences() bool {
	return c.effectiveCompat >= CompatSQL2012
}

// SupportsOffsetFetch reports OFFSET/FETCH availability (2012+).
func (c *Conn) SupportsOffsetFetch() bool {
	return c.effectiveCompat >= CompatSQL2012
}

// SupportsJSON reports JSON function availability (2016+).
func (c *Conn) SupportsJSON() bool {
	return c.effectiveCompat >= CompatSQL2016
}

// SupportsTrim reports TRIM availability (2017+).
func (c *Conn) SupportsTrim() bool {
	return c.effectiveCompat >= CompatSQL2017
}

// Tx is a transaction. Once committed, rolled back, or aborted by the
// server it is finished: Rollback becomes a no-op and everything else
// returns ErrTxFinished.
type Tx struct {
	tx       *sql.Tx
	compiler *Compiler
	run      runner
	log      zerolog.Logger

	mu       sync.Mutex
	finished bool
}

var _ adapters.Tx = (*Tx)(nil)

// Exec compiles stmt and runs its batches inside the transaction.
func (t *Tx) Exec(ctx context.Context, stmt ast.Statement) (*Result, error) {
	compiled, err := t.compiler.Compile(stmt)
	if err != nil {
		return nil, err
	}
	return t.ExecCompiled(ctx, compiled, returnParam(stmt))
}

// ExecCompiled runs already compiled batches inside the transaction.
// ret names the OUT parameter holding a return status, if any.
func (t *Tx) ExecCompiled(ctx context.Context, compiled adapters.Compiled, ret string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return nil, adapters.ErrTxFinished
	}
	res, err := t.run.exec(ctx, compiled, ret)
	t.checkAborted(err)
	return res, err
}

// Query runs stmt inside the transaction.
func (t *Tx) Query(ctx context.Context, stmt ast.Statement) (*Rows, error) {
	compiled, err := t.compiler.Compile(stmt)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return nil, adapters.ErrTxFinished
	}
	rows, err := t.run.query(ctx, compiled)
	t.checkAborted(err)
	return rows, err
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return adapters.ErrTxFinished
	}
	t.finished = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls the transaction back. It is a no-op on a finished
// transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Finished reports whether the transaction can no longer be used.
func (t *Tx) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// checkAborted marks the transaction finished when the server has already
// rolled it back.
func (t *Tx) checkAborted(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, sql.ErrTxDone) || abortsTransaction(err) {
		t.log.Warn().Err(err).Msg("transaction aborted by server")
		t.finished = true
		// database/sql keeps the connection reserved until the handle
		// ends, even though the server transaction is already gone.
		if rerr := t.tx.Rollback(); rerr != nil {
			t.log.Debug().Err(rerr).Msg("released aborted transaction")
		}
	}
}

// Server errors after which the transaction no longer exists:
// deadlock victim, uncommittable transaction, snapshot update conflict.
var abortingErrors = map[int32]bool{
	1205: true,
	3930: true,
	3960: true,
	3998: true,
}

func abortsTransaction(err error) bool {
	var me mssqldb.Error
	if errors.As(err, &me) {
		return abortingErrors[me.Number]
	}
	return false
}

// Errors worth another ping: network failures and the Azure/failover
// "try again" family.
var transientErrors = map[int32]bool{
	4060:  true,
	40197: true,
	40501: true,
	40613: true,
	49918: true,
	49919: true,
	49920: true,
}

func isTransient(err error) bool {
	var me mssqldb.Error
	if errors.As(err, &me) {
		return transientErrors[me.Number]
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return !errors.Is(err, context.Canceled)
}

// Result is the outcome of Exec.
type Result struct {
	RowsAffected int64

	// Output holds OUT parameter values by name.
	Output map[string]any

	returnParam string
}

// ReturnStatus is the procedure return status captured by an Execute.
func (r *Result) ReturnStatus() (int64, bool) {
	if r.returnParam == "" {
		return 0, false
	}
	v, ok := r.Output[r.returnParam].(int64)
	return v, ok
}

// Rows is the result set of Query. Close releases the server cursor.
type Rows struct {
	*sql.Rows
	cancel context.CancelFunc
}

// Close closes the rows and ends the request.
func (r *Rows) Close() error {
	err := r.Rows.Close()
	r.cancel()
	return err
}

// ScanOne scans the first row into dest and closes the rows. No row is
// sql.ErrNoRows.
func (r *Rows) ScanOne(dest ...any) error {
	defer r.Close()
	if !r.Next() {
		if err := r.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := r.Scan(dest...); err != nil {
		return err
	}
	return r.Err()
}

// session is satisfied by *sql.Conn and *sql.Tx.
type session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type runner struct {
	s       session
	timeout time.Duration
	log     zerolog.Logger
}

func (r runner) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

// fail cancels the in-flight request before the error leaves the runner.
func (r runner) fail(cancel context.CancelFunc, sql string, err error) error {
	cancel()
	r.log.Warn().Err(err).Msg("request cancelled")
	return &adapters.QueryExecutionError{SQL: sql, Err: err}
}

func (r runner) exec(ctx context.Context, compiled adapters.Compiled, ret string) (*Result, error) {
	ctx, cancel := r.context(ctx)
	defer cancel()

	res := &Result{Output: make(map[string]any), returnParam: ret}
	for i, b := range compiled.Batches {
		args, outs, err := bindParams(b.Params)
		if err != nil {
			return nil, err
		}
		r.log.Debug().Int("batch", i).Int("params", len(args)).Msg(b.SQL)

		sr, err := r.s.ExecContext(ctx, b.SQL, args...)
		if err != nil {
			return nil, r.fail(cancel, b.SQL, err)
		}
		if n, err := sr.RowsAffected(); err == nil {
			res.RowsAffected += n
		}
		for name, dest := range outs {
			res.Output[name] = reflect.ValueOf(dest).Elem().Interface()
		}
	}
	return res, nil
}

func (r runner) query(ctx context.Context, compiled adapters.Compiled) (*Rows, error) {
	if len(compiled.Batches) == 0 {
		return nil, &adapters.MissingFieldError{Node: "Compiled", Field: "Batches"}
	}
	ctx, cancel := r.context(ctx)

	last := len(compiled.Batches) - 1
	for i, b := range compiled.Batches[:last] {
		args, _, err := bindParams(b.Params)
		if err != nil {
			cancel()
			return nil, err
		}
		r.log.Debug().Int("batch", i).Int("params", len(args)).Msg(b.SQL)
		if _, err := r.s.ExecContext(ctx, b.SQL, args...); err != nil {
			return nil, r.fail(cancel, b.SQL, err)
		}
	}

	b := compiled.Batches[last]
	args, _, err := bindParams(b.Params)
	if err != nil {
		cancel()
		return nil, err
	}
	r.log.Debug().Int("batch", last).Int("params", len(args)).Msg(b.SQL)
	rows, err := r.s.QueryContext(ctx, b.SQL, args...)
	if err != nil {
		return nil, r.fail(cancel, b.SQL, err)
	}
	return &Rows{Rows: rows, cancel: cancel}, nil
}

// bindParams converts compiled parameters to driver arguments, one per
// name. OUT parameters get a typed destination, returned by name.
func bindParams(params []*ast.Parameter) ([]any, map[string]any, error) {
	args := make([]any, 0, len(params))
	var outs map[string]any
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		if p.Direction == ast.DirectionOut {
			nt, err := ToNativeType(*p.Type)
			if err != nil {
				return nil, nil, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			dest := nt.OutDest()
			if outs == nil {
				outs = make(map[string]any)
			}
			outs[p.Name] = dest
			args = append(args, sql.Named(p.Name, sql.Out{Dest: dest}))
			continue
		}

		v := p.Value
		if p.Type != nil && v != nil {
			nt, err := ToNativeType(*p.Type)
			if err != nil {
				return nil, nil, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			if v, err = nt.Bind(v); err != nil {
				return nil, nil, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
		}
		args = append(args, sql.Named(p.Name, v))
	}
	return args, outs, nil
}

// returnParam names the OUT parameter an Execute binds its status to.
func returnParam(stmt ast.Statement) string {
	e, ok := stmt.(*ast.Execute)
	if !ok {
		return ""
	}
	if e.Return != nil {
		return e.Return.Name
	}
	return defaultReturnParam
}
