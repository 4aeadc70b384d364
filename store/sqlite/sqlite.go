/*
Package sqlite provides the SQLite-backed implementation of store.Store.

PURPOSE:
  Persists the three instrument tables and the payment ledger. The same
  patterns apply to PostgreSQL with minor dialect differences.

SCHEMA INVARIANTS:
  The engine relies on these being enforced at the row level, so they are
  CHECK constraints here, not just application code:
  - payment_status in {PAID, PARTIAL, PENDING}
  - payment_type   in {credit, debit}
  - source_type    in {vehicle, outside_interest, loan, other}
  - monetary columns strictly positive
  - source_id present unless source_type is 'other'

MONEY:
  Monetary values are stored as TEXT and parsed with shopspring/decimal,
  never as floating point.

CLOSURE:
  The closed flip is guarded by WHERE is_closed = 0, so concurrent close
  attempts collapse to one transition; a losing attempt reads back the
  existing closure date and reports it unchanged.

WAL MODE:
  SQLite is opened with WAL and foreign keys on, matching how the rest of
  the stack expects the file to behave under concurrent readers.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/lending-engine/engine"
	"github.com/warp/lending-engine/instrument"
	"github.com/warp/lending-engine/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		vehicle_name TEXT NOT NULL,
		lend_to TEXT NOT NULL,
		principle_amount TEXT NOT NULL CHECK (CAST(principle_amount AS REAL) > 0),
		rent TEXT NOT NULL CHECK (CAST(rent AS REAL) > 0),
		payment_frequency TEXT NOT NULL CHECK (payment_frequency IN ('monthly','bimonthly','quarterly')),
		date_of_lending TEXT NOT NULL,
		is_closed INTEGER NOT NULL DEFAULT 0,
		closure_date TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outside_interests (
		id TEXT PRIMARY KEY,
		to_whom TEXT NOT NULL,
		category TEXT NOT NULL,
		lend_to TEXT NOT NULL,
		principle_amount TEXT NOT NULL CHECK (CAST(principle_amount AS REAL) > 0),
		interest_rate TEXT NOT NULL CHECK (CAST(interest_rate AS REAL) > 0),
		local_rate TEXT,
		payment_frequency TEXT NOT NULL CHECK (payment_frequency IN ('monthly','bimonthly','quarterly')),
		date_of_lending TEXT NOT NULL,
		is_closed INTEGER NOT NULL DEFAULT 0,
		closure_date TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		lender_name TEXT NOT NULL,
		lender_type TEXT NOT NULL CHECK (lender_type IN ('bank','personal','other')),
		principle_amount TEXT NOT NULL CHECK (CAST(principle_amount AS REAL) > 0),
		interest_rate TEXT NOT NULL CHECK (CAST(interest_rate AS REAL) > 0),
		payment_frequency TEXT NOT NULL CHECK (payment_frequency IN ('monthly','bimonthly','quarterly')),
		date_of_borrowing TEXT NOT NULL,
		is_closed INTEGER NOT NULL DEFAULT 0,
		closure_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL CHECK (source_type IN ('vehicle','outside_interest','loan','other')),
		source_id TEXT,
		payment_type TEXT NOT NULL CHECK (payment_type IN ('credit','debit')),
		payment_date TEXT NOT NULL,
		amount TEXT NOT NULL CHECK (CAST(amount AS REAL) > 0),
		payment_status TEXT NOT NULL CHECK (payment_status IN ('PAID','PARTIAL','PENDING')),
		description TEXT,
		created_at TEXT NOT NULL,
		CHECK (source_id IS NOT NULL OR source_type = 'other')
	);

	CREATE INDEX IF NOT EXISTS idx_payments_source
		ON payments(source_type, source_id, payment_date);
	CREATE INDEX IF NOT EXISTS idx_vehicles_closed ON vehicles(is_closed);
	CREATE INDEX IF NOT EXISTS idx_outside_interests_closed ON outside_interests(is_closed);
	CREATE INDEX IF NOT EXISTS idx_loans_closed ON loans(is_closed);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INSTRUMENTS
// =============================================================================

func (s *Store) SaveVehicle(ctx context.Context, v *instrument.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles
			(id, vehicle_name, lend_to, principle_amount, rent, payment_frequency,
			 date_of_lending, is_closed, closure_date, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vehicle_name = excluded.vehicle_name,
			lend_to = excluded.lend_to,
			is_closed = excluded.is_closed,
			closure_date = excluded.closure_date,
			deleted_at = excluded.deleted_at`,
		v.RecordID, v.Name, v.LendTo, v.Amount.String(), v.Rent.String(),
		string(v.Frequency), v.Start.String(), boolInt(v.IsClosed),
		nullDate(v.ClosureDate), nullDatePtr(v.DeletedAt),
		v.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save vehicle: %w", err)
	}
	return nil
}

func (s *Store) SaveOutsideInterest(ctx context.Context, o *instrument.OutsideInterest) error {
	if err := o.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outside_interests
			(id, to_whom, category, lend_to, principle_amount, interest_rate, local_rate,
			 payment_frequency, date_of_lending, is_closed, closure_date, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			to_whom = excluded.to_whom,
			category = excluded.category,
			lend_to = excluded.lend_to,
			is_closed = excluded.is_closed,
			closure_date = excluded.closure_date,
			deleted_at = excluded.deleted_at`,
		o.RecordID, o.ToWhom, o.Category, o.LendTo, o.Amount.String(),
		o.InterestRate.String(), o.LocalRate.String(), string(o.Frequency),
		o.Start.String(), boolInt(o.IsClosed), nullDate(o.ClosureDate),
		nullDatePtr(o.DeletedAt), o.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save outside interest: %w", err)
	}
	return nil
}

func (s *Store) SaveLoan(ctx context.Context, l *instrument.Loan) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loans
			(id, lender_name, lender_type, principle_amount, interest_rate,
			 payment_frequency, date_of_borrowing, is_closed, closure_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lender_name = excluded.lender_name,
			lender_type = excluded.lender_type,
			is_closed = excluded.is_closed,
			closure_date = excluded.closure_date`,
		l.RecordID, l.LenderName, string(l.LenderType), l.Amount.String(),
		l.InterestRate.String(), string(l.Frequency), l.Start.String(),
		boolInt(l.IsClosed), nullDate(l.ClosureDate),
		l.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save loan: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, source engine.SourceType, id string) (engine.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch source {
	case engine.SourceVehicle:
		return s.getVehicle(ctx, id)
	case engine.SourceOutsideInterest:
		return s.getOutsideInterest(ctx, id)
	case engine.SourceLoan:
		return s.getLoan(ctx, id)
	default:
		return nil, store.ErrNotFound
	}
}

const vehicleColumns = `id, vehicle_name, lend_to, principle_amount, rent,
	payment_frequency, date_of_lending, is_closed, closure_date, deleted_at, created_at`

func (s *Store) getVehicle(ctx context.Context, id string) (*instrument.Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return v, err
}

func (s *Store) ListVehicles(ctx context.Context, f store.Filter) ([]*instrument.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := listQuery(`SELECT `+vehicleColumns+` FROM vehicles`, f, true)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var out []*instrument.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

const outsideColumns = `id, to_whom, category, lend_to, principle_amount, interest_rate,
	local_rate, payment_frequency, date_of_lending, is_closed, closure_date, deleted_at, created_at`

func (s *Store) getOutsideInterest(ctx context.Context, id string) (*instrument.OutsideInterest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+outsideColumns+` FROM outside_interests WHERE id = ?`, id)
	o, err := scanOutsideInterest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return o, err
}

func (s *Store) ListOutsideInterests(ctx context.Context, f store.Filter) ([]*instrument.OutsideInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := listQuery(`SELECT `+outsideColumns+` FROM outside_interests`, f, true)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outside interests: %w", err)
	}
	defer rows.Close()

	var out []*instrument.OutsideInterest
	for rows.Next() {
		o, err := scanOutsideInterest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const loanColumns = `id, lender_name, lender_type, principle_amount, interest_rate,
	payment_frequency, date_of_borrowing, is_closed, closure_date, created_at`

func (s *Store) getLoan(ctx context.Context, id string) (*instrument.Loan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return l, err
}

func (s *Store) ListLoans(ctx context.Context, f store.Filter) ([]*instrument.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := listQuery(`SELECT `+loanColumns+` FROM loans`, f, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var out []*instrument.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func listQuery(base string, f store.Filter, softDeletable bool) (string, []any) {
	query := base + ` WHERE 1 = 1`
	var args []any
	if softDeletable && !f.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	if f.Closed != nil {
		query += ` AND is_closed = ?`
		args = append(args, boolInt(*f.Closed))
	}
	query += ` ORDER BY created_at`
	return query, args
}

// =============================================================================
// CLOSURE / SOFT DELETE
// =============================================================================

var instrumentTables = map[engine.SourceType]string{
	engine.SourceVehicle:         "vehicles",
	engine.SourceOutsideInterest: "outside_interests",
	engine.SourceLoan:            "loans",
}

// CloseInstrument flips the record to closed. The WHERE is_closed = 0 guard
// makes the transition happen at most once; a losing concurrent attempt
// reads back the original closure date as a no-op.
func (s *Store) CloseInstrument(ctx context.Context, source engine.SourceType, id string, asOf engine.Date) (engine.Date, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := instrumentTables[source]
	if !ok {
		return engine.Date{}, store.ErrNotFound
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET is_closed = 1, closure_date = ? WHERE id = ? AND is_closed = 0`,
		asOf.String(), id)
	if err != nil {
		return engine.Date{}, fmt.Errorf("failed to close record: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return asOf, nil
	}

	// No row changed: either already closed (idempotent no-op) or missing.
	var existing sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT closure_date FROM `+table+` WHERE id = ?`, id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Date{}, store.ErrNotFound
	}
	if err != nil {
		return engine.Date{}, err
	}
	return parseNullDate(existing)
}

func (s *Store) SoftDelete(ctx context.Context, source engine.SourceType, id string, at engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var table string
	switch source {
	case engine.SourceVehicle:
		table = "vehicles"
	case engine.SourceOutsideInterest:
		table = "outside_interests"
	default:
		return store.ErrNoSoftDelete
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET deleted_at = ? WHERE id = ?`, at.String(), id)
	if err != nil {
		return fmt.Errorf("failed to soft delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) AppendPayment(ctx context.Context, p engine.PaymentEntry) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.SourceType != engine.SourceOther {
		table := instrumentTables[p.SourceType]
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM `+table+` WHERE id = ?`, p.SourceID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments
			(id, source_type, source_id, payment_type, payment_date, amount,
			 payment_status, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.SourceType), nullString(p.SourceID), string(p.Direction),
		p.Date.String(), p.Amount.String(), string(p.Status),
		nullString(p.Description), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, source_type, source_id, payment_type, payment_date,
	amount, payment_status, description`

func (s *Store) ListPayments(ctx context.Context, source engine.SourceType, sourceID string) ([]engine.PaymentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE source_type = ? AND source_id = ?
		 ORDER BY payment_date, created_at`,
		string(source), sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (s *Store) AllPayments(ctx context.Context) ([]engine.PaymentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments ORDER BY payment_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row scanner) (*instrument.Vehicle, error) {
	var (
		v                    instrument.Vehicle
		principal, rent      string
		freq, start, created string
		isClosed             int
		closureDate, deleted sql.NullString
	)
	err := row.Scan(&v.RecordID, &v.Name, &v.LendTo, &principal, &rent,
		&freq, &start, &isClosed, &closureDate, &deleted, &created)
	if err != nil {
		return nil, err
	}
	if err := scanRecord(&v.Record, principal, freq, start, created, isClosed, closureDate); err != nil {
		return nil, err
	}
	if v.Rent, err = decimal.NewFromString(rent); err != nil {
		return nil, fmt.Errorf("bad rent value: %w", err)
	}
	v.DeletedAt, err = parseNullDatePtr(deleted)
	return &v, err
}

func scanOutsideInterest(row scanner) (*instrument.OutsideInterest, error) {
	var (
		o                    instrument.OutsideInterest
		principal, rate      string
		localRate            sql.NullString
		freq, start, created string
		isClosed             int
		closureDate, deleted sql.NullString
	)
	err := row.Scan(&o.RecordID, &o.ToWhom, &o.Category, &o.LendTo, &principal,
		&rate, &localRate, &freq, &start, &isClosed, &closureDate, &deleted, &created)
	if err != nil {
		return nil, err
	}
	if err := scanRecord(&o.Record, principal, freq, start, created, isClosed, closureDate); err != nil {
		return nil, err
	}
	if o.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("bad interest rate: %w", err)
	}
	if localRate.Valid {
		if o.LocalRate, err = decimal.NewFromString(localRate.String); err != nil {
			return nil, fmt.Errorf("bad local rate: %w", err)
		}
	}
	o.DeletedAt, err = parseNullDatePtr(deleted)
	return &o, err
}

func scanLoan(row scanner) (*instrument.Loan, error) {
	var (
		l                    instrument.Loan
		principal, rate      string
		lenderType           string
		freq, start, created string
		isClosed             int
		closureDate          sql.NullString
	)
	err := row.Scan(&l.RecordID, &l.LenderName, &lenderType, &principal, &rate,
		&freq, &start, &isClosed, &closureDate, &created)
	if err != nil {
		return nil, err
	}
	if err := scanRecord(&l.Record, principal, freq, start, created, isClosed, closureDate); err != nil {
		return nil, err
	}
	l.LenderType = instrument.LenderType(lenderType)
	if l.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("bad interest rate: %w", err)
	}
	return &l, nil
}

func scanRecord(r *instrument.Record, principal, freq, start, created string, isClosed int, closureDate sql.NullString) error {
	var err error
	if r.Amount, err = decimal.NewFromString(principal); err != nil {
		return fmt.Errorf("bad principal value: %w", err)
	}
	r.Frequency = engine.Frequency(freq)
	if r.Start, err = engine.ParseDate(start); err != nil {
		return err
	}
	r.IsClosed = isClosed != 0
	if r.ClosureDate, err = parseNullDate(closureDate); err != nil {
		return err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return fmt.Errorf("bad created_at value: %w", err)
	}
	return nil
}

func scanPayments(rows *sql.Rows) ([]engine.PaymentEntry, error) {
	var out []engine.PaymentEntry
	for rows.Next() {
		var (
			p                     engine.PaymentEntry
			sourceID, description sql.NullString
			date, amount          string
		)
		err := rows.Scan(&p.ID, &p.SourceType, &sourceID, &p.Direction,
			&date, &amount, &p.Status, &description)
		if err != nil {
			return nil, err
		}
		p.SourceID = sourceID.String
		p.Description = description.String
		if p.Date, err = engine.ParseDate(date); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount value: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(d engine.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullDatePtr(d *engine.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDate(s sql.NullString) (engine.Date, error) {
	if !s.Valid || s.String == "" {
		return engine.Date{}, nil
	}
	return engine.ParseDate(s.String)
}

func parseNullDatePtr(s sql.NullString) (*engine.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := engine.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ store.Store = (*Store)(nil)
