// Package schedule generates and projects monthly repayment schedules using
// flat (simple) interest. All functions are pure: they take values in and
// return new values, leaving persistence to the caller.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wicaksn/koperasi-engine/internal/domain"
	customError "github.com/wicaksn/koperasi-engine/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Generate computes the full installment schedule for a loan.
//
// Interest is flat over the whole tenor: principal * rate * tenor / 100.
// Every installment, including the last, is round((principal+interest)/tenor)
// in whole currency units, so the schedule total may differ from
// principal+interest by a small rounding residual (reported by Summarize,
// never corrected here).
//
// Due date for installment i is startDate plus i calendar months, with
// time.AddDate overflow semantics for short months.
func Generate(loan *domain.Loan) ([]*domain.Installment, error) {
	if loan.TenorMonths <= 0 {
		return nil, customError.WrapInvalidSchedule(
			fmt.Sprintf("tenor must be at least 1 month, got %d", loan.TenorMonths))
	}
	if loan.Principal.IsNegative() {
		return nil, customError.WrapInvalidSchedule(
			fmt.Sprintf("principal must not be negative, got %s", loan.Principal))
	}
	if loan.InterestRate.IsNegative() {
		return nil, customError.WrapInvalidSchedule(
			fmt.Sprintf("interest rate must not be negative, got %s", loan.InterestRate))
	}

	tenor := decimal.NewFromInt(int64(loan.TenorMonths))
	totalInterest := loan.Principal.Mul(loan.InterestRate).Mul(tenor).Div(hundred)
	perInstallment := loan.Principal.Add(totalInterest).Div(tenor).Round(0)

	installments := make([]*domain.Installment, 0, loan.TenorMonths)
	for i := 1; i <= loan.TenorMonths; i++ {
		installments = append(installments, &domain.Installment{
			ID:       uuid.New(),
			LoanID:   loan.LoanID,
			Sequence: i,
			Amount:   perInstallment,
			DueDate:  loan.StartDate.AddDate(0, i, 0),
			Status:   domain.InstallmentStatusPending,
			Origin:   domain.OriginLocal,
		})
	}

	return installments, nil
}

// MarkPaid returns a paid copy of the installment. Paying an installment
// twice is a conflict; the input is returned unchanged alongside the error.
func MarkPaid(inst domain.Installment, paidAt time.Time) (domain.Installment, error) {
	if inst.Status == domain.InstallmentStatusPaid {
		return inst, customError.WrapPaymentConflict(inst.LoanID, inst.Sequence)
	}

	inst.Status = domain.InstallmentStatusPaid
	inst.PaidAt = &paidAt
	return inst, nil
}

// AttachProof attaches a payment proof reference without touching status.
// Proof alone never confirms a payment; that requires MarkPaid.
func AttachProof(inst domain.Installment, proofRef string) domain.Installment {
	inst.ProofRef = &proofRef
	return inst
}

// EffectiveStatus is the read-time projection of an installment's status:
// a pending installment whose due date has passed presents as overdue.
// Callers recompute this with a fresh now on every read; it is never stored.
func EffectiveStatus(inst domain.Installment, now time.Time) string {
	if inst.Status == domain.InstallmentStatusPending && inst.DueDate.Before(now) {
		return domain.InstallmentStatusOverdue
	}
	return inst.Status
}

// Summary aggregates a schedule for display and reporting.
type Summary struct {
	TotalInstallments int             `json:"total_installments"`
	PaidCount         int             `json:"paid_count"`
	PendingCount      int             `json:"pending_count"`
	OverdueCount      int             `json:"overdue_count"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	RoundingDelta     decimal.Decimal `json:"rounding_delta"`
}

// Summarize totals a schedule using effective statuses at the given time.
// RoundingDelta is the schedule total minus principal+interest for the loan.
func Summarize(loan *domain.Loan, installments []*domain.Installment, now time.Time) Summary {
	summary := Summary{
		TotalInstallments: len(installments),
		TotalAmount:       decimal.Zero,
		PaidAmount:        decimal.Zero,
		OutstandingAmount: decimal.Zero,
	}

	for _, inst := range installments {
		summary.TotalAmount = summary.TotalAmount.Add(inst.Amount)

		switch EffectiveStatus(*inst, now) {
		case domain.InstallmentStatusPaid:
			summary.PaidCount++
			summary.PaidAmount = summary.PaidAmount.Add(inst.Amount)
		case domain.InstallmentStatusOverdue:
			summary.OverdueCount++
			summary.OutstandingAmount = summary.OutstandingAmount.Add(inst.Amount)
		default:
			summary.PendingCount++
			summary.OutstandingAmount = summary.OutstandingAmount.Add(inst.Amount)
		}
	}

	tenor := decimal.NewFromInt(int64(loan.TenorMonths))
	totalInterest := loan.Principal.Mul(loan.InterestRate).Mul(tenor).Div(hundred)
	summary.RoundingDelta = summary.TotalAmount.Sub(loan.Principal.Add(totalInterest))

	return summary
}
