package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hyperengineering/revline/internal/types"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed deal database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertDealBatch persists one transform result in a single transaction.
// Every contact's deal_id must reference a deal in the same batch; the
// batch inserts atomically or not at all. The UI-only StageName field is
// not persisted.
func (s *SQLiteStore) InsertDealBatch(ctx context.Context, batch *types.TransformResult) error {
	if batch == nil || (len(batch.Deals) == 0 && len(batch.DealContacts) == 0) {
		return nil
	}

	dealIDs := make(map[string]struct{}, len(batch.Deals))
	for _, d := range batch.Deals {
		if !d.Stage.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStage, d.Stage)
		}
		dealIDs[d.ID] = struct{}{}
	}
	for _, c := range batch.DealContacts {
		if _, ok := dealIDs[c.DealID]; !ok {
			return fmt.Errorf("%w: %s", ErrOrphanedContact, c.DealID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	dealStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deals (
			id, account_id, company_name, industry, company_size, website,
			deal_title, value_amount, value_currency, stage, probability,
			close_date, source, primary_contact, primary_email, summary,
			pain_points, next_steps, blockers, opportunities, tags,
			momentum, momentum_trend, created_at, updated_at, created_by, updated_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare deal insert: %w", err)
	}
	defer dealStmt.Close()

	for _, d := range batch.Deals {
		_, err = dealStmt.ExecContext(ctx,
			d.ID, d.AccountID, d.CompanyName, d.Industry, d.CompanySize, d.Website,
			d.DealTitle, d.ValueAmount, d.ValueCurrency, string(d.Stage), d.Probability,
			d.CloseDate, d.Source, d.PrimaryContact, d.PrimaryEmail, d.Summary,
			packList(d.PainPoints), packList(d.NextSteps), packList(d.Blockers),
			packList(d.Opportunities), packList(d.Tags),
			d.Momentum, string(d.MomentumTrend),
			d.CreatedAt.UTC().Format(time.RFC3339), d.UpdatedAt.UTC().Format(time.RFC3339),
			d.CreatedBy, d.UpdatedBy,
		)
		if err != nil {
			return fmt.Errorf("insert deal %s: %w", d.ID, err)
		}
	}

	contactStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deal_contacts (
			id, deal_id, name, email, phone, role,
			is_primary, is_decision_maker, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare contact insert: %w", err)
	}
	defer contactStmt.Close()

	for _, c := range batch.DealContacts {
		_, err = contactStmt.ExecContext(ctx,
			c.ID, c.DealID, c.Name, c.Email, c.Phone, c.Role,
			boolToInt(c.IsPrimary), boolToInt(c.IsDecisionMaker),
			c.CreatedAt.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert contact %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

const dealColumns = `
	id, account_id, company_name, industry, company_size, website,
	deal_title, value_amount, value_currency, stage, probability,
	close_date, source, primary_contact, primary_email, summary,
	pain_points, next_steps, blockers, opportunities, tags,
	momentum, momentum_trend, created_at, updated_at, created_by, updated_by
`

// ListDeals returns all deals for an account, most recently updated first.
func (s *SQLiteStore) ListDeals(ctx context.Context, accountID string) ([]types.Deal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+dealColumns+" FROM deals WHERE account_id = ? ORDER BY updated_at DESC, id",
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer rows.Close()

	deals := []types.Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *deal)
	}
	return deals, rows.Err()
}

// GetDeal returns a single deal by ID.
func (s *SQLiteStore) GetDeal(ctx context.Context, id string) (*types.Deal, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+dealColumns+" FROM deals WHERE id = ?", id)
	deal, err := scanDeal(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deal, nil
}

// GetDealContacts returns the contacts linked to a deal.
func (s *SQLiteStore) GetDealContacts(ctx context.Context, dealID string) ([]types.DealContact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, deal_id, name, email, phone, role,
		       is_primary, is_decision_maker, created_at, updated_at
		FROM deal_contacts WHERE deal_id = ? ORDER BY is_primary DESC, name
	`, dealID)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	contacts := []types.DealContact{}
	for rows.Next() {
		var c types.DealContact
		var isPrimary, isDecisionMaker int
		var createdAt, updatedAt string
		err := rows.Scan(&c.ID, &c.DealID, &c.Name, &c.Email, &c.Phone, &c.Role,
			&isPrimary, &isDecisionMaker, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		c.IsPrimary = isPrimary != 0
		c.IsDecisionMaker = isDecisionMaker != 0
		c.CreatedAt = parseStoredTime(createdAt)
		c.UpdatedAt = parseStoredTime(updatedAt)
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// UpdateDealInsights applies AI-generated narrative fields to a deal and
// marks it enriched.
func (s *SQLiteStore) UpdateDealInsights(ctx context.Context, id string, insights types.DealInsights) error {
	trend := insights.MomentumTrend
	switch trend {
	case types.TrendUp, types.TrendSteady, types.TrendDown:
	default:
		trend = types.TrendSteady
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE deals SET
			summary = ?, pain_points = ?, next_steps = ?, blockers = ?,
			opportunities = ?, momentum = ?, momentum_trend = ?,
			insights_at = ?, updated_at = ?
		WHERE id = ?
	`, insights.Summary, packList(insights.PainPoints), packList(insights.NextSteps),
		packList(insights.Blockers), packList(insights.Opportunities),
		insights.Momentum, string(trend), now, now, id)
	if err != nil {
		return fmt.Errorf("update insights: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDealsMissingInsights returns deals that have never been enriched,
// oldest first, bounded by limit.
func (s *SQLiteStore) GetDealsMissingInsights(ctx context.Context, limit int) ([]types.Deal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+dealColumns+" FROM deals WHERE insights_at IS NULL ORDER BY created_at, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query deals missing insights: %w", err)
	}
	defer rows.Close()

	deals := []types.Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *deal)
	}
	return deals, rows.Err()
}

// GetStats returns aggregate store statistics.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	stats := &types.StoreStats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deals").Scan(&stats.DealCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deal_contacts").Scan(&stats.ContactCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deals WHERE insights_at IS NULL").Scan(&stats.PendingInsights); err != nil {
		return nil, err
	}
	return stats, nil
}

// scanDeal scans a row into a Deal, unpacking JSON list columns and
// RFC 3339 timestamps.
func scanDeal(scanner interface{ Scan(...any) error }) (*types.Deal, error) {
	var d types.Deal
	var stage, trend string
	var painPoints, nextSteps, blockers, opportunities, tags string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID, &d.AccountID, &d.CompanyName, &d.Industry, &d.CompanySize, &d.Website,
		&d.DealTitle, &d.ValueAmount, &d.ValueCurrency, &stage, &d.Probability,
		&d.CloseDate, &d.Source, &d.PrimaryContact, &d.PrimaryEmail, &d.Summary,
		&painPoints, &nextSteps, &blockers, &opportunities, &tags,
		&d.Momentum, &trend, &createdAt, &updatedAt, &d.CreatedBy, &d.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	d.Stage = types.Stage(stage)
	d.MomentumTrend = types.MomentumTrend(trend)
	d.PainPoints = unpackList(painPoints)
	d.NextSteps = unpackList(nextSteps)
	d.Blockers = unpackList(blockers)
	d.Opportunities = unpackList(opportunities)
	d.Tags = unpackList(tags)
	d.CreatedAt = parseStoredTime(createdAt)
	d.UpdatedAt = parseStoredTime(updatedAt)
	return &d, nil
}

func packList(v []string) string {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unpackList(s string) []string {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return []string{}
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseStoredTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
