package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wicaksn/koperasi-engine/internal/domain"
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (id, loan_id, principal, interest_rate, tenor_months, installment_amount, start_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.LoanID,
		loan.Principal,
		loan.InterestRate,
		loan.TenorMonths,
		loan.InstallmentAmount,
		loan.StartDate,
		loan.Status,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `
		SELECT id, loan_id, principal, interest_rate, tenor_months, installment_amount, start_date, status, created_at, updated_at
		FROM loans
		WHERE loan_id = $1
	`

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, loanID); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) UpdateStatus(ctx context.Context, loanID string, status string) error {
	query := `
		UPDATE loans
		SET status = $2, updated_at = $3
		WHERE loan_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, loanID, status, time.Now())
	return err
}

func (r *loanRepository) ListActive(ctx context.Context) ([]*domain.Loan, error) {
	query := `
		SELECT id, loan_id, principal, interest_rate, tenor_months, installment_amount, start_date, status, created_at, updated_at
		FROM loans
		WHERE status = 'active'
		ORDER BY created_at
	`

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, err
	}

	return loans, nil
}

// ReplaceSchedule deletes any existing schedule for the loan and inserts the
// new set in the same transaction. Regeneration always replaces the whole
// set, never a subset.
func (r *loanRepository) ReplaceSchedule(ctx context.Context, loanID string, installments []*domain.Installment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM installments WHERE loan_id = $1`, loanID); err != nil {
		return err
	}

	query := `
		INSERT INTO installments (id, loan_id, sequence, amount, due_date, status, paid_at, proof_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	for _, inst := range installments {
		_, err = tx.ExecContext(ctx, query,
			inst.ID,
			inst.LoanID,
			inst.Sequence,
			inst.Amount,
			inst.DueDate,
			inst.Status,
			inst.PaidAt,
			inst.ProofRef,
			now,
		)
		if err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	for _, inst := range installments {
		inst.Origin = domain.OriginPersisted
		inst.CreatedAt = now
	}
	return nil
}

func (r *loanRepository) GetScheduleByLoanID(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	query := `
		SELECT id, loan_id, sequence, amount, due_date, status, paid_at, proof_ref, created_at
		FROM installments
		WHERE loan_id = $1
		ORDER BY sequence
	`

	var installments []*domain.Installment
	if err := r.db.SelectContext(ctx, &installments, query, loanID); err != nil {
		return nil, err
	}

	for _, inst := range installments {
		inst.Origin = domain.OriginPersisted
	}
	return installments, nil
}

func (r *loanRepository) GetInstallment(ctx context.Context, loanID string, sequence int) (*domain.Installment, error) {
	query := `
		SELECT id, loan_id, sequence, amount, due_date, status, paid_at, proof_ref, created_at
		FROM installments
		WHERE loan_id = $1 AND sequence = $2
	`

	var inst domain.Installment
	if err := r.db.GetContext(ctx, &inst, query, loanID, sequence); err != nil {
		return nil, err
	}

	inst.Origin = domain.OriginPersisted
	return &inst, nil
}

func (r *loanRepository) UpdateInstallment(ctx context.Context, inst *domain.Installment) error {
	query := `
		UPDATE installments
		SET status = $3, paid_at = $4, proof_ref = $5
		WHERE loan_id = $1 AND sequence = $2
	`

	_, err := r.db.ExecContext(ctx, query,
		inst.LoanID,
		inst.Sequence,
		inst.Status,
		inst.PaidAt,
		inst.ProofRef,
	)
	return err
}

func (r *loanRepository) SumPaid(ctx context.Context, loanID string) (string, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM installments
		WHERE loan_id = $1 AND status = 'paid'
	`

	var total string
	if err := r.db.GetContext(ctx, &total, query, loanID); err != nil {
		return "", err
	}

	return total, nil
}

func (r *loanRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Installment, error) {
	query := `
		SELECT id, loan_id, sequence, amount, due_date, status, paid_at, proof_ref, created_at
		FROM installments
		WHERE status = 'pending' AND due_date >= $1 AND due_date < $2
		ORDER BY due_date, loan_id, sequence
	`

	var installments []*domain.Installment
	if err := r.db.SelectContext(ctx, &installments, query, from, to); err != nil {
		return nil, err
	}

	for _, inst := range installments {
		inst.Origin = domain.OriginPersisted
	}
	return installments, nil
}
