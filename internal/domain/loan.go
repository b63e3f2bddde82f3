package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusActive = "active"
	LoanStatusClosed = "closed"
)

// Loan represents a member loan repaid in monthly installments.
// Principal is held in whole currency units (smallest denomination),
// InterestRate is a flat percentage applied once over the full tenor.
type Loan struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            string          `json:"loan_id" db:"loan_id"`
	Principal         decimal.Decimal `json:"principal" db:"principal"`
	InterestRate      decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	TenorMonths       int             `json:"tenor_months" db:"tenor_months"`
	InstallmentAmount decimal.Decimal `json:"installment_amount" db:"installment_amount"`
	StartDate         time.Time       `json:"start_date" db:"start_date"`
	Status            string          `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	LoanID       string          `json:"loan_id" validate:"required"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TenorMonths  int             `json:"tenor_months" validate:"required,gt=0"`
	StartDate    time.Time       `json:"start_date" validate:"required"`
}

type CreateLoanResponse struct {
	Loan     *Loan          `json:"loan"`
	Schedule []*Installment `json:"schedule"`
}

type OutstandingResponse struct {
	LoanID      string          `json:"loan_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}
