// Package sqlite provides a SQLite-backed Store implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/storage"
	"github.com/burgerbus/memberclub/internal/storage/sqlite/migrations"
)

// Store persists club state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Probe verifies the database is reachable.
func (s *Store) Probe(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// --- Members ---

func (s *Store) CreateMember(ctx context.Context, member domain.Member) error {
	if member.ID == "" {
		return fmt.Errorf("%w: member id is required", domain.ErrValidation)
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO members (
		   id, email, full_name, phone, password_hash, role,
		   agreement_signed, dues_settled, membership_tier, total_orders,
		   referral_code, referred_by, wallet_address, favorite_items,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.Email,
		member.FullName,
		member.Phone,
		member.PasswordHash,
		string(member.Role),
		boolToInt(member.AgreementSigned),
		boolToInt(member.DuesSettled),
		member.MembershipTier,
		member.TotalOrders,
		member.ReferralCode,
		member.ReferredBy,
		member.WalletAddress,
		encodeStringList(member.FavoriteItems),
		toMillis(member.CreatedAt),
		toMillis(member.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

const memberColumns = `id, email, full_name, phone, password_hash, role,
  agreement_signed, dues_settled, membership_tier, total_orders,
  referral_code, referred_by, wallet_address, favorite_items, created_at, updated_at`

func (s *Store) GetMember(ctx context.Context, id string) (domain.Member, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	return scanMember(row)
}

func (s *Store) GetMemberByEmail(ctx context.Context, email string) (domain.Member, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE email = ? COLLATE NOCASE`, email)
	return scanMember(row)
}

func (s *Store) GetMemberByReferralCode(ctx context.Context, code string) (domain.Member, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE referral_code = ?`, code)
	return scanMember(row)
}

func (s *Store) UpdateMember(ctx context.Context, member domain.Member) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE members SET
		   email = ?, full_name = ?, phone = ?, password_hash = ?, role = ?,
		   agreement_signed = ?, dues_settled = ?, membership_tier = ?,
		   total_orders = ?, wallet_address = ?, favorite_items = ?, updated_at = ?
		 WHERE id = ?`,
		member.Email,
		member.FullName,
		member.Phone,
		member.PasswordHash,
		string(member.Role),
		boolToInt(member.AgreementSigned),
		boolToInt(member.DuesSettled),
		member.MembershipTier,
		member.TotalOrders,
		member.WalletAddress,
		encodeStringList(member.FavoriteItems),
		toMillis(member.UpdatedAt),
		member.ID,
	)
	if err != nil {
		return fmt.Errorf("update member %s: %w", member.ID, err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (domain.Member, error) {
	var (
		m                         domain.Member
		role                      string
		agreementSigned, duesPaid int
		favorites                 string
		createdAt, updatedAt      int64
	)
	err := row.Scan(
		&m.ID, &m.Email, &m.FullName, &m.Phone, &m.PasswordHash, &role,
		&agreementSigned, &duesPaid, &m.MembershipTier, &m.TotalOrders,
		&m.ReferralCode, &m.ReferredBy, &m.WalletAddress, &favorites,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("scan member: %w", err)
	}
	m.Role = domain.Role(role)
	m.AgreementSigned = agreementSigned != 0
	m.DuesSettled = duesPaid != 0
	m.FavoriteItems = decodeStringList(favorites)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}

// --- Payment intents ---

func (s *Store) CreateIntent(ctx context.Context, intent domain.PaymentIntent) error {
	if intent.ID == "" {
		return fmt.Errorf("%w: intent id is required", domain.ErrValidation)
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO payment_intents (
		   id, member_id, member_email, purpose, channel,
		   amount_usd, amount_bch, bonus_usd, handle, instructions,
		   qr_payload, transaction_ref, status, created_at, expires_at, verified_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		intent.ID,
		intent.MemberID,
		intent.MemberEmail,
		string(intent.Purpose),
		string(intent.Channel),
		intent.AmountUSD,
		intent.AmountBCH,
		intent.BonusUSD,
		intent.Handle,
		intent.Instructions,
		intent.QRPayload,
		intent.TransactionRef,
		string(intent.Status),
		toMillis(intent.CreatedAt),
		toMillis(intent.ExpiresAt),
	)
	if err != nil {
		// The partial unique index on (member_id, purpose) WHERE pending
		// enforces the one-open-intent invariant at the storage layer.
		if isUniqueViolation(err) {
			return domain.ErrDuplicatePending
		}
		return fmt.Errorf("create payment intent: %w", err)
	}
	return nil
}

const intentColumns = `id, member_id, member_email, purpose, channel,
  amount_usd, amount_bch, bonus_usd, handle, instructions,
  qr_payload, transaction_ref, status, created_at, expires_at, verified_at`

func (s *Store) GetIntent(ctx context.Context, id string) (domain.PaymentIntent, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = ?`, id)
	return scanIntent(row)
}

func (s *Store) PendingIntent(ctx context.Context, memberID string, purpose domain.Purpose) (domain.PaymentIntent, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents
		 WHERE member_id = ? AND purpose = ? AND status = 'pending'`,
		memberID, string(purpose))
	return scanIntent(row)
}

func (s *Store) ListPendingIntents(ctx context.Context, purpose domain.Purpose) ([]domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE status = 'pending'`
	args := []any{}
	if purpose != "" {
		query += ` AND purpose = ?`
		args = append(args, string(purpose))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending intents: %w", err)
	}
	defer rows.Close()

	var intents []domain.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// VerifyIntent transitions a pending intent to verified and applies the
// purpose-specific side effects in the same transaction.
func (s *Store) VerifyIntent(ctx context.Context, id, transactionRef string, at time.Time) (storage.VerifyResult, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.VerifyResult{}, fmt.Errorf("begin verify: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = ?`, id)
	intent, err := scanIntent(row)
	if err != nil {
		return storage.VerifyResult{}, err
	}
	if intent.Status.Terminal() {
		return storage.VerifyResult{}, domain.ErrAlreadyVerified
	}

	verifiedAt := at
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_intents
		 SET status = 'verified', transaction_ref = ?, verified_at = ?
		 WHERE id = ? AND status = 'pending'`,
		transactionRef, toMillis(at), id,
	)
	if err != nil {
		return storage.VerifyResult{}, fmt.Errorf("verify intent %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.VerifyResult{}, err
	}
	if affected == 0 {
		// A concurrent verify won the race between our status read and the
		// guarded update.
		return storage.VerifyResult{}, domain.ErrAlreadyVerified
	}

	memberRow := tx.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, intent.MemberID)
	member, err := scanMember(memberRow)
	if err != nil {
		return storage.VerifyResult{}, err
	}

	result := storage.VerifyResult{}

	switch intent.Purpose {
	case domain.PurposeDues:
		result.Activated = !member.DuesSettled
		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET dues_settled = 1, updated_at = ? WHERE id = ?`,
			toMillis(at), member.ID,
		); err != nil {
			return storage.VerifyResult{}, fmt.Errorf("activate member %s: %w", member.ID, err)
		}
		member.DuesSettled = true
		member.UpdatedAt = at.UTC()
		if member.ReferredBy != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE affiliate_attributions SET eligible = 1
				 WHERE referred_member_id = ? AND eligible = 0`,
				member.ID,
			); err != nil {
				return storage.VerifyResult{}, fmt.Errorf("mark commission eligible: %w", err)
			}
		}
	case domain.PurposeAffiliatePayout:
		if _, err := tx.ExecContext(ctx,
			`UPDATE affiliate_attributions
			 SET paid = 1, transaction_ref = ?, paid_at = ?
			 WHERE referrer_id = ? AND eligible = 1 AND paid = 0`,
			transactionRef, toMillis(at), member.ID,
		); err != nil {
			return storage.VerifyResult{}, fmt.Errorf("settle commissions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.VerifyResult{}, fmt.Errorf("commit verify: %w", err)
	}

	intent.Status = domain.IntentVerified
	intent.TransactionRef = transactionRef
	intent.VerifiedAt = &verifiedAt
	result.Intent = intent
	result.Member = member
	return result, nil
}

func (s *Store) RejectIntent(ctx context.Context, id string) (domain.PaymentIntent, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE payment_intents SET status = 'rejected' WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("reject intent %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if affected == 0 {
		// Distinguish missing from already-terminal.
		if _, err := s.GetIntent(ctx, id); errors.Is(err, domain.ErrNotFound) {
			return domain.PaymentIntent{}, domain.ErrNotFound
		}
		return domain.PaymentIntent{}, domain.ErrAlreadyVerified
	}
	return s.GetIntent(ctx, id)
}

func (s *Store) ExpireIntents(ctx context.Context, now time.Time) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE payment_intents SET status = 'expired'
		 WHERE status = 'pending' AND expires_at < ?`,
		toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("expire intents: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func scanIntent(row rowScanner) (domain.PaymentIntent, error) {
	var (
		p                    domain.PaymentIntent
		purpose, channel     string
		status               string
		createdAt, expiresAt int64
		verifiedAt           sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &p.MemberID, &p.MemberEmail, &purpose, &channel,
		&p.AmountUSD, &p.AmountBCH, &p.BonusUSD, &p.Handle, &p.Instructions,
		&p.QRPayload, &p.TransactionRef, &status, &createdAt, &expiresAt, &verifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("scan payment intent: %w", err)
	}
	p.Purpose = domain.Purpose(purpose)
	p.Channel = domain.Channel(channel)
	p.Status = domain.IntentStatus(status)
	p.CreatedAt = fromMillis(createdAt)
	p.ExpiresAt = fromMillis(expiresAt)
	if verifiedAt.Valid {
		ts := fromMillis(verifiedAt.Int64)
		p.VerifiedAt = &ts
	}
	return p, nil
}

// --- Affiliate attribution ---

func (s *Store) CreateAttribution(ctx context.Context, attr domain.AffiliateAttribution) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO affiliate_attributions (
		   referred_member_id, referral_code, referrer_id, referred_email,
		   commission_usd, eligible, paid, transaction_ref, created_at, paid_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		attr.ReferredMemberID,
		attr.ReferralCode,
		attr.ReferrerID,
		attr.ReferredEmail,
		attr.CommissionUSD,
		boolToInt(attr.Eligible),
		boolToInt(attr.Paid),
		attr.TransactionRef,
		toMillis(attr.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAttributionExists
		}
		return fmt.Errorf("create attribution: %w", err)
	}
	return nil
}

const attributionColumns = `referred_member_id, referral_code, referrer_id, referred_email,
  commission_usd, eligible, paid, transaction_ref, created_at, paid_at`

func (s *Store) ListAttributionsByReferrer(ctx context.Context, referrerID string) ([]domain.AffiliateAttribution, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+attributionColumns+` FROM affiliate_attributions
		 WHERE referrer_id = ? ORDER BY created_at ASC`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("list attributions: %w", err)
	}
	defer rows.Close()
	return collectAttributions(rows)
}

func (s *Store) ListEligibleUnpaidAttributions(ctx context.Context) ([]domain.AffiliateAttribution, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+attributionColumns+` FROM affiliate_attributions
		 WHERE eligible = 1 AND paid = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list eligible attributions: %w", err)
	}
	defer rows.Close()
	return collectAttributions(rows)
}

func collectAttributions(rows *sql.Rows) ([]domain.AffiliateAttribution, error) {
	var out []domain.AffiliateAttribution
	for rows.Next() {
		var (
			attr           domain.AffiliateAttribution
			eligible, paid int
			createdAt      int64
			paidAt         sql.NullInt64
		)
		if err := rows.Scan(
			&attr.ReferredMemberID, &attr.ReferralCode, &attr.ReferrerID, &attr.ReferredEmail,
			&attr.CommissionUSD, &eligible, &paid, &attr.TransactionRef, &createdAt, &paidAt,
		); err != nil {
			return nil, fmt.Errorf("scan attribution: %w", err)
		}
		attr.Eligible = eligible != 0
		attr.Paid = paid != 0
		attr.CreatedAt = fromMillis(createdAt)
		if paidAt.Valid {
			ts := fromMillis(paidAt.Int64)
			attr.PaidAt = &ts
		}
		out = append(out, attr)
	}
	return out, rows.Err()
}

// --- Menu and orders ---

func (s *Store) UpsertMenuItem(ctx context.Context, item domain.MenuItem) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO menu_items (id, name, description, public_price, member_price, category, available)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   public_price = excluded.public_price,
		   member_price = excluded.member_price,
		   category = excluded.category,
		   available = excluded.available`,
		item.ID, item.Name, item.Description, item.PublicPrice, item.MemberPrice,
		item.Category, boolToInt(item.Available),
	)
	if err != nil {
		return fmt.Errorf("upsert menu item %s: %w", item.ID, err)
	}
	return nil
}

func (s *Store) ListMenuItems(ctx context.Context) ([]domain.MenuItem, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, description, public_price, member_price, category, available
		 FROM menu_items ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var items []domain.MenuItem
	for rows.Next() {
		var (
			item      domain.MenuItem
			available int
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Description,
			&item.PublicPrice, &item.MemberPrice, &item.Category, &available); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		item.Available = available != 0
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (domain.MenuItem, error) {
	var (
		item      domain.MenuItem
		available int
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, description, public_price, member_price, category, available
		 FROM menu_items WHERE id = ?`, id).
		Scan(&item.ID, &item.Name, &item.Description,
			&item.PublicPrice, &item.MemberPrice, &item.Category, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MenuItem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("get menu item %s: %w", id, err)
	}
	item.Available = available != 0
	return item, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pickupAt any
	if order.PickupAt != nil {
		pickupAt = toMillis(*order.PickupAt)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, member_id, item_id, item_name, quantity, total_usd, pickup_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.MemberID, order.ItemID, order.ItemName,
		order.Quantity, order.TotalUSD, pickupAt, toMillis(order.CreatedAt),
	); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE members SET total_orders = total_orders + 1, updated_at = ? WHERE id = ?`,
		toMillis(order.CreatedAt), order.MemberID)
	if err != nil {
		return fmt.Errorf("bump order count: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListOrdersByMember(ctx context.Context, memberID string) ([]domain.Order, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, member_id, item_id, item_name, quantity, total_usd, pickup_at, created_at
		 FROM orders WHERE member_id = ? ORDER BY created_at ASC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			order     domain.Order
			pickupAt  sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&order.ID, &order.MemberID, &order.ItemID, &order.ItemName,
			&order.Quantity, &order.TotalUSD, &pickupAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if pickupAt.Valid {
			ts := fromMillis(pickupAt.Int64)
			order.PickupAt = &ts
		}
		order.CreatedAt = fromMillis(createdAt)
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// --- helpers ---

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func encodeStringList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(raw)
}

func decodeStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
