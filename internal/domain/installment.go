package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stored installment statuses. Overdue is never stored: it is derived at
// read time from the due date, see schedule.EffectiveStatus.
const (
	InstallmentStatusPending = "pending"
	InstallmentStatusPaid    = "paid"
	InstallmentStatusOverdue = "overdue"
)

// Installment origin. Generated schedules start as local rows; only the
// repository flips them to persisted, so an unsaved schedule can never be
// mistaken for a stored one.
const (
	OriginLocal     = "local"
	OriginPersisted = "persisted"
)

// Installment is one scheduled repayment of a loan.
type Installment struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	LoanID    string          `json:"loan_id" db:"loan_id"`
	Sequence  int             `json:"sequence" db:"sequence"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	DueDate   time.Time       `json:"due_date" db:"due_date"`
	Status    string          `json:"status" db:"status"`
	PaidAt    *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	ProofRef  *string         `json:"proof_ref,omitempty" db:"proof_ref"`
	Origin    string          `json:"origin" db:"-"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type ScheduleResponse struct {
	LoanID   string         `json:"loan_id"`
	Schedule []*Installment `json:"schedule"`
	Summary  interface{}    `json:"summary,omitempty"`
}

type MarkPaidRequest struct {
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

type AttachProofRequest struct {
	ProofRef string `json:"proof_ref" validate:"required"`
}
