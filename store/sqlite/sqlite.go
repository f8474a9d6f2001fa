/*
Package sqlite provides the SQLite-backed implementation of the register
storage interfaces.

INTERFACES IMPLEMENTED:
  register.AssetStore, register.RequestStore, register.LedgerStore,
  register.HolderStore, register.TxStore

KEY TABLES:
  assets:           Current state of every barrel
  custody_requests: Requests with approval/assignment state
  ledger_entries:   The issue register, one row per custody cycle
  holders:          Directory backing identity snapshots

DOUBLE-ISSUE GUARD:
  idx_ledger_outstanding_asset is a partial unique index on asset_id over
  rows whose status is issued or overdue. Even if two racing assignments
  both pass the in-transaction availability check, the second insert
  violates the index and the whole batch rolls back with a retryable
  conflict.

INDEXES:
  - idx_ledger_status_due:    (status, expected_return_date) - overdue sweep
  - idx_ledger_asset_issue:   (asset_id, issue_date) - history lookups
  - idx_ledger_holder_status: (holder_id, status) - active issues per holder

CONCURRENCY:
  Writers serialize through WithTx (store mutex + one SQL transaction),
  which makes the scan-max-plus-one id generation gap-free in-process.
  SQLite runs in WAL mode so readers don't block.

USAGE:
  store, err := sqlite.New("./data/register.db")   // ":memory:" for tests
  coordinator := register.NewAssignmentCoordinator(store, notifier)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/barrel-register/register"
)

// Store implements all register storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	session // autocommit view
}

// New opens (and migrates) a SQLite store at dbPath. Use ":memory:" for
// an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, session: session{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		holder_id TEXT NOT NULL DEFAULT '',
		holder_assigned_at TEXT,
		barrel_type TEXT NOT NULL,
		capacity_liters INTEGER NOT NULL,
		material TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);

	CREATE TABLE IF NOT EXISTS custody_requests (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		purpose TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		assigned_asset_ids TEXT NOT NULL DEFAULT '[]',
		assigned_at TEXT,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status ON custody_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_requester ON custody_requests(requester_id);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		register_id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		holder_id TEXT NOT NULL,
		holder_name TEXT NOT NULL,
		holder_email TEXT NOT NULL DEFAULT '',
		issue_date TEXT NOT NULL,
		expected_return_date TEXT NOT NULL,
		actual_return_date TEXT,
		issuer_id TEXT NOT NULL DEFAULT '',
		returner_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		return_condition TEXT NOT NULL DEFAULT '',
		return_notes TEXT NOT NULL DEFAULT '',
		days_overdue INTEGER NOT NULL DEFAULT 0,
		penalty_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one outstanding custody cycle per asset.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_outstanding_asset
		ON ledger_entries(asset_id)
		WHERE status IN ('issued', 'overdue');

	CREATE INDEX IF NOT EXISTS idx_ledger_status_due
		ON ledger_entries(status, expected_return_date);
	CREATE INDEX IF NOT EXISTS idx_ledger_asset_issue
		ON ledger_entries(asset_id, issue_date DESC);
	CREATE INDEX IF NOT EXISTS idx_ledger_holder_status
		ON ledger_entries(holder_id, status);

	CREATE TABLE IF NOT EXISTS holders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNIT OF WORK (register.TxStore)
// =============================================================================

// WithTx executes fn within one database transaction. Writers serialize
// here, which keeps id generation's scan-then-insert race-free in
// process; the unique indexes are the cross-process backstop.
func (s *Store) WithTx(ctx context.Context, fn func(register.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&session{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", register.ErrStoreConflict, err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session implements every per-collection interface against one querier
// (the raw DB for autocommit, a Tx inside WithTx).
type session struct {
	q querier
}

func (s *session) Assets() register.AssetStore     { return s }
func (s *session) Requests() register.RequestStore { return s }
func (s *session) Ledger() register.LedgerStore    { return s }
func (s *session) Holders() register.HolderStore   { return s }

// =============================================================================
// ASSET STORE
// =============================================================================

const assetColumns = `id, status, holder_id, holder_assigned_at, barrel_type, capacity_liters, material, created_at`

func (s *session) GetAsset(ctx context.Context, id string) (*register.Asset, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	a, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *session) GetAssets(ctx context.Context, ids []string) ([]*register.Asset, []string, error) {
	found := make([]*register.Asset, 0, len(ids))
	var missing []string
	for _, id := range ids {
		a, err := s.GetAsset(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if a == nil {
			missing = append(missing, id)
			continue
		}
		found = append(found, a)
	}
	return found, missing, nil
}

func (s *session) SaveAsset(ctx context.Context, a *register.Asset) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO assets (id, status, holder_id, holder_assigned_at, barrel_type, capacity_liters, material, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			holder_id = excluded.holder_id,
			holder_assigned_at = excluded.holder_assigned_at`,
		a.ID, a.Status, a.HolderID, nullTime(a.HolderAssignedAt),
		a.BarrelType, a.CapacityLiters, a.Material,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *session) SetAssetCustody(ctx context.Context, assetID string, status register.AssetStatus, holderID string, at *time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE assets SET status = ?, holder_id = ?, holder_assigned_at = ? WHERE id = ?`,
		status, holderID, nullTime(at), assetID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", register.ErrAssetNotFound, assetID)
	}
	return nil
}

func (s *session) ListAssets(ctx context.Context, status register.AssetStatus) ([]*register.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*register.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *session) MaxAssetSeq(ctx context.Context, year int) (int, error) {
	ids, err := s.idsLike(ctx, "assets", "id",
		fmt.Sprintf("%s-%d-%%", register.AssetIDPrefix, year))
	if err != nil {
		return 0, err
	}
	return register.MaxSeq(ids, register.AssetIDPrefix, year), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*register.Asset, error) {
	var a register.Asset
	var assignedAt sql.NullString
	var createdAt string
	err := row.Scan(&a.ID, &a.Status, &a.HolderID, &assignedAt,
		&a.BarrelType, &a.CapacityLiters, &a.Material, &createdAt)
	if err != nil {
		return nil, err
	}
	a.HolderAssignedAt = parseNullTime(assignedAt)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

const requestColumns = `id, requester_id, quantity, purpose, status, assigned_asset_ids, assigned_at, approved_by, approved_at, rejection_reason, created_at, updated_at`

func (s *session) GetRequest(ctx context.Context, id string) (*register.CustodyRequest, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM custody_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *session) SaveRequest(ctx context.Context, r *register.CustodyRequest) error {
	assigned, _ := json.Marshal(r.AssignedAssetIDs)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO custody_requests
			(id, requester_id, quantity, purpose, status, assigned_asset_ids, assigned_at,
			 approved_by, approved_at, rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			assigned_asset_ids = excluded.assigned_asset_ids,
			assigned_at = excluded.assigned_at,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			rejection_reason = excluded.rejection_reason,
			updated_at = excluded.updated_at`,
		r.ID, r.RequesterID, r.Quantity, r.Purpose, r.Status, string(assigned),
		nullTime(r.AssignedAt), r.ApprovedBy, nullTime(r.ApprovedAt), r.RejectionReason,
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *session) MarkAssigned(ctx context.Context, id string, assetIDs []string, at time.Time) error {
	assigned, _ := json.Marshal(assetIDs)
	res, err := s.q.ExecContext(ctx, `
		UPDATE custody_requests
		SET status = ?, assigned_asset_ids = ?, assigned_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		register.RequestAssigned, string(assigned),
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339),
		id, register.RequestApproved,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Raced with another assignment of the same request.
		return fmt.Errorf("%w: request %s", register.ErrStoreConflict, id)
	}
	return nil
}

func (s *session) ListRequests(ctx context.Context, status register.RequestStatus) ([]*register.CustodyRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM custody_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*register.CustodyRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*register.CustodyRequest, error) {
	var r register.CustodyRequest
	var assigned string
	var assignedAt, approvedAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&r.ID, &r.RequesterID, &r.Quantity, &r.Purpose, &r.Status,
		&assigned, &assignedAt, &r.ApprovedBy, &approvedAt, &r.RejectionReason,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(assigned), &r.AssignedAssetIDs)
	r.AssignedAt = parseNullTime(assignedAt)
	r.ApprovedAt = parseNullTime(approvedAt)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

const entryColumns = `register_id, request_id, asset_id, holder_id, holder_name, holder_email,
	issue_date, expected_return_date, actual_return_date, issuer_id, returner_id,
	status, return_condition, return_notes, days_overdue, penalty_amount, created_at, updated_at`

func (s *session) GetEntry(ctx context.Context, registerID string) (*register.LedgerEntry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE register_id = ?`, registerID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *session) GetEntries(ctx context.Context, registerIDs []string) ([]*register.LedgerEntry, []string, error) {
	found := make([]*register.LedgerEntry, 0, len(registerIDs))
	var missing []string
	for _, id := range registerIDs {
		e, err := s.GetEntry(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if e == nil {
			missing = append(missing, id)
			continue
		}
		found = append(found, e)
	}
	return found, missing, nil
}

func (s *session) AppendEntry(ctx context.Context, e *register.LedgerEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(register_id, request_id, asset_id, holder_id, holder_name, holder_email,
			 issue_date, expected_return_date, actual_return_date, issuer_id, returner_id,
			 status, return_condition, return_notes, days_overdue, penalty_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RegisterID, e.RequestID, e.AssetID, e.HolderID, e.HolderName, e.HolderEmail,
		e.IssueDate.UTC().Format(time.RFC3339), e.ExpectedReturnDate.UTC().Format(time.RFC3339),
		nullTime(e.ActualReturnDate), e.IssuerID, e.ReturnerID,
		e.Status, e.ReturnCondition, e.ReturnNotes, e.DaysOverdue, e.PenaltyAmount.String(),
		e.CreatedAt.UTC().Format(time.RFC3339), e.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		// Either a duplicate register id or a second outstanding entry
		// for the asset. A racing writer won; the whole call retries.
		return fmt.Errorf("%w: %v", register.ErrStoreConflict, err)
	}
	return err
}

func (s *session) CompleteEntry(ctx context.Context, e *register.LedgerEntry) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE ledger_entries
		SET status = ?, actual_return_date = ?, returner_id = ?, return_condition = ?,
		    return_notes = ?, days_overdue = ?, penalty_amount = ?, updated_at = ?
		WHERE register_id = ? AND status IN ('issued', 'overdue')`,
		e.Status, nullTime(e.ActualReturnDate), e.ReturnerID, e.ReturnCondition,
		e.ReturnNotes, e.DaysOverdue, e.PenaltyAmount.String(),
		e.UpdatedAt.UTC().Format(time.RFC3339), e.RegisterID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: entry %s", register.ErrStoreConflict, e.RegisterID)
	}
	return nil
}

func (s *session) MarkOverdue(ctx context.Context, registerID string, daysOverdue int, penalty decimal.Decimal, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE ledger_entries
		SET status = ?, days_overdue = ?, penalty_amount = ?, updated_at = ?
		WHERE register_id = ? AND status = 'issued'`,
		register.EntryOverdue, daysOverdue, penalty.String(),
		at.UTC().Format(time.RFC3339), registerID,
	)
	return err
}

func (s *session) IssuedBefore(ctx context.Context, cutoff time.Time) ([]*register.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE status = 'issued' AND expected_return_date < ?
		ORDER BY expected_return_date ASC`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *session) OutstandingByAsset(ctx context.Context, assetID string) (*register.LedgerEntry, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE asset_id = ? AND status IN ('issued', 'overdue')`,
		assetID,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *session) ListEntries(ctx context.Context, f register.EntryFilter) ([]*register.LedgerEntry, int, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.HolderID != "" {
		where = append(where, "holder_id = ?")
		args = append(args, f.HolderID)
	}
	if f.AssetID != "" {
		where = append(where, "asset_id = ?")
		args = append(args, f.AssetID)
	}
	if f.From != nil {
		where = append(where, "issue_date >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		where = append(where, "issue_date <= ?")
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries"+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit < 1 {
		limit = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries`+clause+
			` ORDER BY issue_date DESC, register_id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *session) ActiveByHolder(ctx context.Context, holderID string) ([]*register.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE holder_id = ? AND status IN ('issued', 'overdue')
		ORDER BY expected_return_date ASC`,
		holderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *session) HistoryByAsset(ctx context.Context, assetID string) ([]*register.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE asset_id = ?
		ORDER BY issue_date DESC`,
		assetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *session) Statistics(ctx context.Context) (*register.Statistics, error) {
	stats := &register.Statistics{}
	rows, err := s.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM ledger_entries GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch register.EntryStatus(status) {
		case register.EntryIssued:
			stats.CountIssued = count
		case register.EntryOverdue:
			stats.CountOverdue = count
		case register.EntryReturned:
			stats.CountReturned = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Penalty outstanding = accrued penalties on unreturned overdue
	// entries. Decimal strings are summed in Go, not in SQL.
	prows, err := s.q.QueryContext(ctx,
		`SELECT penalty_amount FROM ledger_entries WHERE status = 'overdue'`)
	if err != nil {
		return nil, err
	}
	defer prows.Close()

	total := decimal.Zero
	for prows.Next() {
		var raw string
		if err := prows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			continue // malformed amount, skip rather than fail the aggregate
		}
		total = total.Add(d)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}
	stats.TotalPenaltyOutstanding = total.String()
	return stats, nil
}

func (s *session) MaxRegisterSeq(ctx context.Context, year int) (int, error) {
	ids, err := s.idsLike(ctx, "ledger_entries", "register_id",
		fmt.Sprintf("%s-%d-%%", register.RegisterIDPrefix, year))
	if err != nil {
		return 0, err
	}
	return register.MaxSeq(ids, register.RegisterIDPrefix, year), nil
}

func scanEntry(row rowScanner) (*register.LedgerEntry, error) {
	var e register.LedgerEntry
	var issueDate, expectedReturn, createdAt, updatedAt, penalty string
	var actualReturn sql.NullString
	err := row.Scan(&e.RegisterID, &e.RequestID, &e.AssetID,
		&e.HolderID, &e.HolderName, &e.HolderEmail,
		&issueDate, &expectedReturn, &actualReturn, &e.IssuerID, &e.ReturnerID,
		&e.Status, &e.ReturnCondition, &e.ReturnNotes, &e.DaysOverdue, &penalty,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.IssueDate, _ = time.Parse(time.RFC3339, issueDate)
	e.ExpectedReturnDate, _ = time.Parse(time.RFC3339, expectedReturn)
	e.ActualReturnDate = parseNullTime(actualReturn)
	e.PenaltyAmount, _ = decimal.NewFromString(penalty)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]*register.LedgerEntry, error) {
	var entries []*register.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HOLDER STORE
// =============================================================================

func (s *session) GetHolder(ctx context.Context, id string) (*register.Holder, error) {
	var h register.Holder
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, email, role, created_at FROM holders WHERE id = ?`, id,
	).Scan(&h.ID, &h.Name, &h.Email, &h.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &h, nil
}

func (s *session) SaveHolder(ctx context.Context, h *register.Holder) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO holders (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role`,
		h.ID, h.Name, h.Email, h.Role, h.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *session) ListHolders(ctx context.Context) ([]*register.Holder, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, email, role, created_at FROM holders ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holders []*register.Holder
	for rows.Next() {
		var h register.Holder
		var createdAt string
		if err := rows.Scan(&h.ID, &h.Name, &h.Email, &h.Role, &createdAt); err != nil {
			return nil, err
		}
		h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		holders = append(holders, &h)
	}
	return holders, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *session) idsLike(ctx context.Context, table, column, pattern string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s LIKE ?", column, table, column), pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
