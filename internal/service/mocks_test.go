package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/wicaksn/koperasi-engine/internal/domain"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) UpdateStatus(ctx context.Context, loanID string, status string) error {
	args := m.Called(ctx, loanID, status)
	return args.Error(0)
}

func (m *MockLoanRepository) ListActive(ctx context.Context) ([]*domain.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ReplaceSchedule(ctx context.Context, loanID string, installments []*domain.Installment) error {
	args := m.Called(ctx, loanID, installments)
	return args.Error(0)
}

func (m *MockLoanRepository) GetScheduleByLoanID(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockLoanRepository) GetInstallment(ctx context.Context, loanID string, sequence int) (*domain.Installment, error) {
	args := m.Called(ctx, loanID, sequence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Installment), args.Error(1)
}

func (m *MockLoanRepository) UpdateInstallment(ctx context.Context, inst *domain.Installment) error {
	args := m.Called(ctx, inst)
	return args.Error(0)
}

func (m *MockLoanRepository) SumPaid(ctx context.Context, loanID string) (string, error) {
	args := m.Called(ctx, loanID)
	return args.String(0), args.Error(1)
}

func (m *MockLoanRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Installment, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockChatRepository) ListBefore(ctx context.Context, chatID string, before time.Time, beforeID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, chatID, before, beforeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

func (m *MockChatRepository) GetByID(ctx context.Context, chatID string, id uuid.UUID) (*domain.ChatMessage, error) {
	args := m.Called(ctx, chatID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatMessage), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Del(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
