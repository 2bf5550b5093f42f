package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"las/internal/ledger/models"
	"las/internal/ledger/ports"
	"las/internal/ledger/receipt"
	"las/pkg/platform/sentinel"
	"las/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const defaultTxTimeout = 5 * time.Second

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore persists the ledger in PostgreSQL. Every method runs inside
// the transaction carried by ctx when there is one.
type PostgresStore struct {
	db        *sql.DB
	txTimeout time.Duration
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTxTimeout bounds transactions started without a context deadline.
func WithTxTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, txTimeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RunInTx opens a transaction, hands fn a context carrying it, and commits
// only if fn succeeds.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store ports.LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx), s); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) q(ctx context.Context) tx.Querier {
	return tx.QuerierFrom(ctx, s.db)
}

func (s *PostgresStore) FindInstance(ctx context.Context, id models.InstanceID) (*models.Instance, error) {
	var inst models.Instance
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, name, created_at FROM instances WHERE id = $1`, id,
	).Scan(&inst.ID, &inst.Name, &inst.CreatedAt)
	if err != nil {
		return nil, notFound(err, "find instance")
	}
	return &inst, nil
}

func (s *PostgresStore) FindUser(ctx context.Context, id models.UserID) (*models.User, error) {
	var (
		user       models.User
		instanceID sql.NullInt64
	)
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, username, instance_id FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Username, &instanceID)
	if err != nil {
		return nil, notFound(err, "find user")
	}
	user.InstanceID = models.InstanceID(instanceID.Int64)
	return &user, nil
}

func (s *PostgresStore) FindLiabilityType(ctx context.Context, id models.LiabilityTypeID) (*models.LiabilityType, error) {
	lt, err := scanLiabilityType(s.q(ctx).QueryRowContext(ctx, `
		SELECT id, instance_id, name, postfix, type_running, is_default, created_at
		FROM liability_types
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err, "find liability type")
	}
	return lt, nil
}

func (s *PostgresStore) FindSubject(ctx context.Context, id models.SubjectID) (*models.Subject, error) {
	subject, err := scanSubject(s.q(ctx).QueryRowContext(ctx,
		`SELECT id, external_id, name, created_at FROM subjects WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "find subject")
	}
	return subject, nil
}

func (s *PostgresStore) FindSubjectByExternalID(ctx context.Context, externalID string) (*models.Subject, error) {
	subject, err := scanSubject(s.q(ctx).QueryRowContext(ctx,
		`SELECT id, external_id, name, created_at FROM subjects WHERE external_id = $1`, externalID))
	if err != nil {
		return nil, notFound(err, "find subject by external id")
	}
	return subject, nil
}

// GetOrCreateSubject never overwrites the name of an existing subject.
func (s *PostgresStore) GetOrCreateSubject(ctx context.Context, externalID string, name *string) (*models.Subject, error) {
	query := `
		INSERT INTO subjects (external_id, name)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE SET
			external_id = EXCLUDED.external_id
		RETURNING id, external_id, name, created_at
	`
	subject, err := scanSubject(s.q(ctx).QueryRowContext(ctx, query, externalID, name))
	if err != nil {
		return nil, fmt.Errorf("get or create subject: %w", err)
	}
	return subject, nil
}

func (s *PostgresStore) FindLatestEntryByReceipt(ctx context.Context, receiptNumber string) (*models.Entry, error) {
	entry, err := scanEntry(s.q(ctx).QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE receipt_number = $1
		ORDER BY id DESC
		LIMIT 1
	`, receiptNumber))
	if err != nil {
		return nil, notFound(err, "find entry by receipt")
	}
	return entry, nil
}

func (s *PostgresStore) LatestEntry(ctx context.Context, key models.LineageKey) (*models.Entry, error) {
	entry, err := scanEntry(s.q(ctx).QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE instance_id = $1 AND subject_id = $2 AND liability_type_id = $3
		ORDER BY id DESC
		LIMIT 1
	`, key.InstanceID, key.SubjectID, key.LiabilityTypeID))
	if err != nil {
		return nil, notFound(err, "latest lineage entry")
	}
	return entry, nil
}

// ListEntries returns a lineage in creation order.
func (s *PostgresStore) ListEntries(ctx context.Context, key models.LineageKey) ([]models.Entry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE instance_id = $1 AND subject_id = $2 AND liability_type_id = $3
		ORDER BY id
	`, key.InstanceID, key.SubjectID, key.LiabilityTypeID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// CreateEntry mints a receipt number from the (instance, liability type)
// sequence when the entry has none. nextval takes no row lock, so batches on
// different subjects never wait on each other; a rolled back batch leaves a
// gap in the numbering.
func (s *PostgresStore) CreateEntry(ctx context.Context, entry *models.Entry) error {
	q := s.q(ctx)
	if entry.ReceiptNumber == "" {
		seq, err := s.nextSequence(ctx, q, entry.InstanceID, entry.LiabilityTypeID)
		if err != nil {
			return err
		}
		entry.ReceiptNumber = receipt.Format(entry.InstanceID, entry.LiabilityTypeID, seq)
	}
	query := `
		INSERT INTO ledger_entries (user_id, instance_id, liability_type_id, subject_id, receipt_number, amount_record, amount_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := q.QueryRowContext(ctx, query,
		entry.UserID,
		entry.InstanceID,
		entry.LiabilityTypeID,
		entry.SubjectID,
		entry.ReceiptNumber,
		entry.AmountRecord,
		entry.AmountTotal,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) nextSequence(ctx context.Context, q tx.Querier, instanceID models.InstanceID, ltID models.LiabilityTypeID) (int64, error) {
	var seq int64
	if err := q.QueryRowContext(ctx, `SELECT nextval($1::regclass)`, sequenceName(instanceID, ltID)).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next receipt sequence: %w", err)
	}
	return seq, nil
}

// createSequence makes the receipt sequence for a liability type under an
// instance. It is owned by liability_types.id so TRUNCATE ... RESTART IDENTITY
// resets it and dropping the table drops it.
func (s *PostgresStore) createSequence(ctx context.Context, q tx.Querier, instanceID models.InstanceID, ltID models.LiabilityTypeID) error {
	query := fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s OWNED BY liability_types.id`, sequenceName(instanceID, ltID))
	if _, err := q.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create receipt sequence: %w", err)
	}
	return nil
}

func sequenceName(instanceID models.InstanceID, ltID models.LiabilityTypeID) string {
	return fmt.Sprintf("receipt_seq_%d_%d", instanceID, ltID)
}

func (s *PostgresStore) CreateInstance(ctx context.Context, inst *models.Instance) error {
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO instances (name) VALUES ($1) RETURNING id, created_at`, inst.Name,
	).Scan(&inst.ID, &inst.CreatedAt)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	var instanceID sql.NullInt64
	if user.InstanceID != 0 {
		instanceID = sql.NullInt64{Int64: int64(user.InstanceID), Valid: true}
	}
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO users (username, instance_id) VALUES ($1, $2) RETURNING id`, user.Username, instanceID,
	).Scan(&user.ID)
	if err != nil {
		return conflict(err, "create user")
	}
	return nil
}

func (s *PostgresStore) CreateLiabilityType(ctx context.Context, lt *models.LiabilityType) error {
	query := `
		INSERT INTO liability_types (instance_id, name, postfix, type_running, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	q := s.q(ctx)
	err := q.QueryRowContext(ctx, query,
		lt.InstanceID, lt.Name, lt.Postfix, string(lt.TypeRunning), lt.IsDefault,
	).Scan(&lt.ID, &lt.CreatedAt)
	if err != nil {
		return conflict(err, "create liability type")
	}
	return s.createSequence(ctx, q, lt.InstanceID, lt.ID)
}

func (s *PostgresStore) ReassignLiabilityType(ctx context.Context, id models.LiabilityTypeID, to models.InstanceID) error {
	q := s.q(ctx)
	res, err := q.ExecContext(ctx, `UPDATE liability_types SET instance_id = $2 WHERE id = $1`, id, to)
	if err != nil {
		return conflict(err, "reassign liability type")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reassign liability type rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("liability type %d: %w", id, sentinel.ErrNotFound)
	}
	return s.createSequence(ctx, q, to, id)
}

// Ping reports database reachability for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const entryColumns = `id, user_id, instance_id, liability_type_id, subject_id, receipt_number, amount_record, amount_total, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var e models.Entry
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.InstanceID,
		&e.LiabilityTypeID,
		&e.SubjectID,
		&e.ReceiptNumber,
		&e.AmountRecord,
		&e.AmountTotal,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanSubject(row rowScanner) (*models.Subject, error) {
	var (
		subject models.Subject
		name    sql.NullString
	)
	if err := row.Scan(&subject.ID, &subject.ExternalID, &name, &subject.CreatedAt); err != nil {
		return nil, err
	}
	if name.Valid {
		subject.Name = &name.String
	}
	return &subject, nil
}

func scanLiabilityType(row rowScanner) (*models.LiabilityType, error) {
	var (
		lt          models.LiabilityType
		typeRunning string
	)
	if err := row.Scan(&lt.ID, &lt.InstanceID, &lt.Name, &lt.Postfix, &typeRunning, &lt.IsDefault, &lt.CreatedAt); err != nil {
		return nil, err
	}
	lt.TypeRunning = models.TypeRunning(typeRunning)
	return &lt, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func conflict(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var (
	_ ports.LedgerStore = (*PostgresStore)(nil)
	_ ports.TxRunner    = (*PostgresStore)(nil)
)
