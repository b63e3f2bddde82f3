package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wicaksn/koperasi-engine/internal/config"
	"github.com/wicaksn/koperasi-engine/internal/repository"
	"github.com/wicaksn/koperasi-engine/internal/service"
	"github.com/wicaksn/koperasi-engine/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New("koperasi-scheduler")
	defer zlog.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	loanRepo := repository.NewLoanRepository(db)
	installmentService := service.NewInstallmentService(loanRepo, noopCache{}, cfg, zlog)

	c := cron.New(cron.WithSeconds())
	setupCronJobs(c, cfg, installmentService, zlog)

	c.Start()
	zlog.Info("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down scheduler")
	<-c.Stop().Done()
	zlog.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, svc *service.InstallmentService, zlog *zap.Logger) {
	// Daily overdue report. Overdue is a derived status: the job projects
	// every active schedule at run time and reports, it writes nothing.
	_, err := c.AddFunc(cfg.Scheduler.OverdueReportSpec, func() {
		reportOverdue(svc, zlog)
	})
	if err != nil {
		zlog.Error("failed to schedule overdue report job", zap.Error(err))
	}

	// Daily reminders for installments falling due soon.
	_, err = c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		remindUpcoming(svc, cfg.Scheduler.ReminderDays, zlog)
	})
	if err != nil {
		zlog.Error("failed to schedule reminder job", zap.Error(err))
	}
}

func reportOverdue(svc *service.InstallmentService, zlog *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report, err := svc.OverdueReport(ctx, time.Now())
	if err != nil {
		zlog.Error("overdue report failed", zap.Error(err))
		return
	}

	for loanID, summary := range report {
		zlog.Warn("loan has overdue installments",
			zap.String("loan_id", loanID),
			zap.Int("overdue_count", summary.OverdueCount),
			zap.String("outstanding", summary.OutstandingAmount.String()))
	}
	zlog.Info("overdue report complete", zap.Int("loans_overdue", len(report)))
}

func remindUpcoming(svc *service.InstallmentService, days int, zlog *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now()
	due, err := svc.DueBetween(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		zlog.Error("reminder query failed", zap.Error(err))
		return
	}

	for _, inst := range due {
		zlog.Info("payment reminder",
			zap.String("loan_id", inst.LoanID),
			zap.Int("sequence", inst.Sequence),
			zap.Time("due_date", inst.DueDate),
			zap.String("amount", inst.Amount.String()))
	}
}

// noopCache satisfies the cache dependency; the scheduler's jobs never read
// or populate the outstanding cache.
type noopCache struct{}

var errCacheDisabled = errors.New("cache disabled")

func (noopCache) Get(ctx context.Context, key string) (string, error) {
	return "", errCacheDisabled
}

func (noopCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

func (noopCache) Del(ctx context.Context, key string) error {
	return nil
}
