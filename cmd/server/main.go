package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wicaksn/koperasi-engine/internal/config"
	"github.com/wicaksn/koperasi-engine/internal/handler"
	"github.com/wicaksn/koperasi-engine/internal/repository"
	"github.com/wicaksn/koperasi-engine/internal/service"
	"github.com/wicaksn/koperasi-engine/pkg/logger"
	"github.com/wicaksn/koperasi-engine/pkg/response"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := newLogger(cfg)
	defer zlog.Sync()

	db, err := initDB(cfg)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	loanRepo := repository.NewLoanRepository(db)
	chatRepo := repository.NewChatRepository(db)
	cache := repository.NewRedisCache(redisClient)

	installmentService := service.NewInstallmentService(loanRepo, cache, cfg, zlog)
	chatService := service.NewChatService(chatRepo, redisClient, cfg, zlog)

	loanHandler := handler.NewLoanHandler(installmentService)
	chatHandler := handler.NewChatHandler(chatService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	router := setupRoutes(loanHandler, chatHandler, healthHandler, zlog)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zlog.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}

func newLogger(cfg *config.Config) *zap.Logger {
	if cfg.IsDevelopment() {
		return logger.NewDevelopment("koperasi-server")
	}
	return logger.New("koperasi-server")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(
	loanHandler *handler.LoanHandler,
	chatHandler *handler.ChatHandler,
	healthHandler *handler.HealthHandler,
	zlog *zap.Logger,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(zlog))
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loans", loanHandler.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/{loanId}/schedule", loanHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/outstanding", loanHandler.GetOutstanding).Methods("GET")
	api.HandleFunc("/loans/{loanId}/installments/{sequence}/payment", loanHandler.MarkPaid).Methods("POST")
	api.HandleFunc("/loans/{loanId}/installments/{sequence}/proof", loanHandler.AttachProof).Methods("POST")

	api.HandleFunc("/chats/{chatId}/messages", chatHandler.GetMessages).Methods("GET")
	api.HandleFunc("/chats/{chatId}/messages", chatHandler.SendMessage).Methods("POST")
	api.HandleFunc("/chats/{chatId}/messages/{messageId}", chatHandler.GetMessage).Methods("GET")

	return router
}
