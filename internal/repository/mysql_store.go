package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/ursol-insurance/internal/model"
)

// MySQLStore implements Store on top of the tables created by
// database.Migrate. Amounts are stored as their decimal strings so the
// values returned to clients are exactly the values that were written.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore binds a store to an open connection pool.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying pool for health checks.
func (r *MySQLStore) DB() *sql.DB { return r.db }

// isDuplicate reports whether err is a MySQL unique key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func fill(id *string, at *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if at.IsZero() {
		*at = time.Now().UTC()
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// ---- users ----

const userCols = `id, address, ursol_balance, is_world_id_verified, created_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Address, &u.UrsolBalance, &u.IsWorldIDVerified, &u.CreatedAt)
	return u, notFound(err)
}

func (r *MySQLStore) GetUser(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
}

func (r *MySQLStore) GetUserByAddress(ctx context.Context, address string) (model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE LOWER(address) = LOWER(?) LIMIT 1`, address))
}

func (r *MySQLStore) CreateUser(ctx context.Context, u *model.User) error {
	fill(&u.ID, &u.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userCols+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Address, u.UrsolBalance, u.IsWorldIDVerified, u.CreatedAt)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (r *MySQLStore) UpdateUserBalance(ctx context.Context, id, balance string) (model.User, error) {
	// RowsAffected is 0 when the value is unchanged, so existence is
	// confirmed by reading the row back.
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET ursol_balance = ? WHERE id = ?`, balance, id); err != nil {
		return model.User{}, err
	}
	return r.GetUser(ctx, id)
}

func (r *MySQLStore) SetUserVerified(ctx context.Context, id string, verified bool) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_world_id_verified = ? WHERE id = ?`, verified, id); err != nil {
		return err
	}
	_, err := r.GetUser(ctx, id)
	return err
}

// ---- policies ----

const policyCols = `id, user_id, token_id, tier, coverage_amount, monthly_premium, staking_bonus, is_active, next_premium_due, created_at`

func scanPolicy(row interface{ Scan(...any) error }) (model.Policy, error) {
	var (
		p   model.Policy
		due sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.TokenID, &p.Tier, &p.CoverageAmount,
		&p.MonthlyPremium, &p.StakingBonus, &p.IsActive, &due, &p.CreatedAt)
	p.NextPremiumDue = timePtr(due)
	return p, notFound(err)
}

func (r *MySQLStore) ListPolicies(ctx context.Context, userID string) ([]model.Policy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+policyCols+` FROM policies WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MySQLStore) GetPolicy(ctx context.Context, id string) (model.Policy, error) {
	return scanPolicy(r.db.QueryRowContext(ctx, `SELECT `+policyCols+` FROM policies WHERE id = ?`, id))
}

func (r *MySQLStore) CreatePolicy(ctx context.Context, p *model.Policy) error {
	fill(&p.ID, &p.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO policies (`+policyCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.TokenID, p.Tier, p.CoverageAmount, p.MonthlyPremium,
		p.StakingBonus, p.IsActive, nullTime(p.NextPremiumDue), p.CreatedAt)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// ---- staking ----

const stakingCols = `id, user_id, type, amount, apy, pending_rewards, lock_period, created_at`

func scanStaking(row interface{ Scan(...any) error }) (model.StakingPosition, error) {
	var s model.StakingPosition
	err := row.Scan(&s.ID, &s.UserID, &s.Type, &s.Amount, &s.APY, &s.PendingRewards, &s.LockPeriod, &s.CreatedAt)
	return s, notFound(err)
}

func (r *MySQLStore) ListStakingPositions(ctx context.Context, userID string) ([]model.StakingPosition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stakingCols+` FROM staking_positions WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.StakingPosition{}
	for rows.Next() {
		s, err := scanStaking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *MySQLStore) GetStakingPosition(ctx context.Context, id string) (model.StakingPosition, error) {
	return scanStaking(r.db.QueryRowContext(ctx,
		`SELECT `+stakingCols+` FROM staking_positions WHERE id = ?`, id))
}

func (r *MySQLStore) CreateStakingPosition(ctx context.Context, s *model.StakingPosition) error {
	fill(&s.ID, &s.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO staking_positions (`+stakingCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Type, s.Amount, s.APY, s.PendingRewards, s.LockPeriod, s.CreatedAt)
	return err
}

func (r *MySQLStore) UpdatePendingRewards(ctx context.Context, id, rewards string) (model.StakingPosition, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE staking_positions SET pending_rewards = ? WHERE id = ?`, rewards, id); err != nil {
		return model.StakingPosition{}, err
	}
	return r.GetStakingPosition(ctx, id)
}

// ---- loans ----

const loanCols = `id, user_id, policy_id, amount, interest_rate, health_factor, liquidation_ratio, is_active, created_at`

func (r *MySQLStore) ListLoans(ctx context.Context, userID string) ([]model.Loan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanCols+` FROM loans WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Loan{}
	for rows.Next() {
		var l model.Loan
		if err := rows.Scan(&l.ID, &l.UserID, &l.PolicyID, &l.Amount, &l.InterestRate,
			&l.HealthFactor, &l.LiquidationRatio, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *MySQLStore) CreateLoan(ctx context.Context, l *model.Loan) error {
	fill(&l.ID, &l.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO loans (`+loanCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.PolicyID, l.Amount, l.InterestRate, l.HealthFactor,
		l.LiquidationRatio, l.IsActive, l.CreatedAt)
	return err
}

// ---- beneficiaries ----

func (r *MySQLStore) GetBeneficiary(ctx context.Context, userID string) (model.Beneficiary, error) {
	var (
		b        model.Beneficiary
		settings []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, encrypted_data, on_chain_settings, created_at, updated_at
		   FROM beneficiaries WHERE user_id = ?`, userID).
		Scan(&b.ID, &b.UserID, &b.EncryptedData, &settings, &b.CreatedAt, &b.UpdatedAt)
	if len(settings) > 0 {
		b.OnChainSettings = settings
	}
	return b, notFound(err)
}

func (r *MySQLStore) PutBeneficiary(ctx context.Context, b *model.Beneficiary) error {
	fill(&b.ID, &b.CreatedAt)
	b.UpdatedAt = time.Now().UTC()
	var settings any
	if len(b.OnChainSettings) > 0 {
		settings = []byte(b.OnChainSettings)
	}
	// user_id is unique: an existing row keeps its id and created_at.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO beneficiaries (id, user_id, encrypted_data, on_chain_settings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE encrypted_data = VALUES(encrypted_data),
		   on_chain_settings = VALUES(on_chain_settings), updated_at = VALUES(updated_at)`,
		b.ID, b.UserID, b.EncryptedData, settings, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	stored, err := r.GetBeneficiary(ctx, b.UserID)
	if err != nil {
		return err
	}
	*b = stored
	return nil
}

// ---- claims ----

const claimCols = `id, user_id, policy_id, payout_type, status, verification_method, amount, submitted_at`

func (r *MySQLStore) ListClaims(ctx context.Context, userID string) ([]model.Claim, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+claimCols+` FROM claims WHERE user_id = ? ORDER BY submitted_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Claim{}
	for rows.Next() {
		var c model.Claim
		if err := rows.Scan(&c.ID, &c.UserID, &c.PolicyID, &c.PayoutType, &c.Status,
			&c.VerificationMethod, &c.Amount, &c.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *MySQLStore) CreateClaim(ctx context.Context, c *model.Claim) error {
	fill(&c.ID, &c.SubmittedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO claims (`+claimCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.PolicyID, c.PayoutType, c.Status, c.VerificationMethod, c.Amount, c.SubmittedAt)
	return err
}

// ---- activities ----

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *MySQLStore) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, description, amount, created_at
		   FROM activities WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Activity{}
	for rows.Next() {
		var (
			a      model.Activity
			amount sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Description, &amount, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Amount = amount.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *MySQLStore) CreateActivity(ctx context.Context, a *model.Activity) error {
	return insertActivity(ctx, r.db, a)
}

func insertActivity(ctx context.Context, ex execer, a *model.Activity) error {
	fill(&a.ID, &a.CreatedAt)
	amount := sql.NullString{String: a.Amount, Valid: a.Amount != ""}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO activities (id, user_id, type, description, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Type, a.Description, amount, a.CreatedAt)
	return err
}

// ---- payments ----

const paymentCols = `id, user_id, payment_id, type, amount, currency, status, related_entity_id,
	related_entity_type, transaction_id, ledger_tx_hash, created_at, completed_at`

func scanPayment(row interface{ Scan(...any) error }) (model.Payment, error) {
	var (
		p    model.Payment
		done sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Reference, &p.Type, &p.Amount, &p.Currency, &p.Status,
		&p.RelatedEntityID, &p.RelatedEntityType, &p.TransactionID, &p.LedgerTxHash, &p.CreatedAt, &done)
	p.CompletedAt = timePtr(done)
	return p, notFound(err)
}

func (r *MySQLStore) ListPayments(ctx context.Context, userID string) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MySQLStore) GetPaymentByReference(ctx context.Context, reference string) (model.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE payment_id = ?`, reference))
}

func (r *MySQLStore) CreatePayment(ctx context.Context, p *model.Payment) error {
	fill(&p.ID, &p.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Reference, p.Type, p.Amount, p.Currency, p.Status, p.RelatedEntityID,
		p.RelatedEntityType, p.TransactionID, p.LedgerTxHash, p.CreatedAt, nullTime(p.CompletedAt))
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (r *MySQLStore) UpdatePayment(ctx context.Context, p model.Payment) error {
	return updatePayment(ctx, r.db, p)
}

func updatePayment(ctx context.Context, ex execer, p model.Payment) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE payments SET status = ?, transaction_id = ?, ledger_tx_hash = ?, completed_at = ?
		  WHERE payment_id = ?`,
		p.Status, p.TransactionID, p.LedgerTxHash, nullTime(p.CompletedAt), p.Reference)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		if err := ex.QueryRowContext(ctx,
			`SELECT 1 FROM payments WHERE payment_id = ?`, p.Reference).Scan(&one); err != nil {
			return notFound(err)
		}
	}
	return nil
}

// CompletePayment runs the status update and the activity insert in one
// transaction. The update only matches a pending row.
func (r *MySQLStore) CompletePayment(ctx context.Context, p model.Payment, a *model.Activity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, transaction_id = ?, ledger_tx_hash = ?, completed_at = ?
		  WHERE payment_id = ? AND status = ?`,
		p.Status, p.TransactionID, p.LedgerTxHash, nullTime(p.CompletedAt), p.Reference, model.PaymentPending)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		var status string
		if err := tx.QueryRowContext(ctx,
			`SELECT status FROM payments WHERE payment_id = ?`, p.Reference).Scan(&status); err != nil {
			return notFound(err)
		}
		return ErrNotPending
	}
	if err := insertActivity(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

var _ Store = (*MySQLStore)(nil)
