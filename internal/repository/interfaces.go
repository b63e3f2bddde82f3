package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wicaksn/koperasi-engine/internal/domain"
)

// LoanRepository defines the interface for loan and installment data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByLoanID retrieves a loan by its loan ID
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// UpdateStatus updates a loan's status
	UpdateStatus(ctx context.Context, loanID string, status string) error

	// ListActive lists all active loans
	ListActive(ctx context.Context) ([]*domain.Loan, error)

	// ReplaceSchedule replaces the full installment set for a loan in one
	// transaction; schedules are never partially regenerated
	ReplaceSchedule(ctx context.Context, loanID string, installments []*domain.Installment) error

	// GetScheduleByLoanID retrieves the installment schedule ordered by sequence
	GetScheduleByLoanID(ctx context.Context, loanID string) ([]*domain.Installment, error)

	// GetInstallment retrieves a single installment by loan and sequence
	GetInstallment(ctx context.Context, loanID string, sequence int) (*domain.Installment, error)

	// UpdateInstallment persists status, paid-at, and proof changes
	UpdateInstallment(ctx context.Context, inst *domain.Installment) error

	// SumPaid totals the amounts of paid installments for a loan
	SumPaid(ctx context.Context, loanID string) (string, error)

	// ListDueBetween lists pending installments due in a window, across loans
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Installment, error)
}

// ChatRepository defines the interface for chat message data operations
type ChatRepository interface {
	// Insert stores a new chat message
	Insert(ctx context.Context, msg *domain.ChatMessage) error

	// ListBefore returns up to limit messages of a chat whose (created_at, id)
	// sort key is strictly below the cursor, ascending by creation time
	ListBefore(ctx context.Context, chatID string, before time.Time, beforeID uuid.UUID, limit int) ([]domain.ChatMessage, error)

	// GetByID retrieves a single message of a chat
	GetByID(ctx context.Context, chatID string, id uuid.UUID) (*domain.ChatMessage, error)
}
