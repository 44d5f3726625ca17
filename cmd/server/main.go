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

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/coopfin/credito-engine/internal/config"
	"github.com/coopfin/credito-engine/internal/handler"
	"github.com/coopfin/credito-engine/internal/repository"
	"github.com/coopfin/credito-engine/internal/service"
	"github.com/coopfin/credito-engine/pkg/response"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := runMigrations(db, cfg); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	creditoRepo := repository.NewCreditoRepository(db)
	pagoRepo := repository.NewPagoRepository(db)

	locks := service.NewCreditLocks()
	creditService := service.NewCreditService(creditoRepo, pagoRepo, redisClient, cfg, locks)
	paymentService := service.NewPaymentService(creditoRepo, pagoRepo, redisClient, cfg, locks)
	portfolioService := service.NewPortfolioService(creditoRepo, paymentService, redisClient, cfg, locks)

	creditHandler := handler.NewCreditHandler(creditService, paymentService, cfg)
	reportHandler := handler.NewReportHandler(portfolioService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout)

	router := setupRoutes(creditHandler, reportHandler, healthHandler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

// runMigrations applies pending schema migrations on startup.
func runMigrations(db *sqlx.DB, cfg *config.Config) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.Database.MigrationsPath, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(creditHandler *handler.CreditHandler, reportHandler *handler.ReportHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/creditos", creditHandler.Solicitar).Methods("POST")
	api.HandleFunc("/creditos", creditHandler.List).Methods("GET")
	api.HandleFunc("/creditos/solicitar", creditHandler.Solicitar).Methods("POST")
	api.HandleFunc("/creditos/simular", creditHandler.Simular).Methods("POST")
	api.HandleFunc("/creditos/{id}", creditHandler.Get).Methods("GET")
	api.HandleFunc("/creditos/{id}/estudiar", creditHandler.Estudiar).Methods("POST")
	api.HandleFunc("/creditos/{id}/aprobar", creditHandler.Aprobar).Methods("POST")
	api.HandleFunc("/creditos/{id}/rechazar", creditHandler.Rechazar).Methods("POST")
	api.HandleFunc("/creditos/{id}/desembolsar", creditHandler.Desembolsar).Methods("POST")
	api.HandleFunc("/creditos/{id}/castigar", creditHandler.Castigar).Methods("POST")
	api.HandleFunc("/creditos/{id}/amortizacion", creditHandler.Amortizacion).Methods("GET")
	api.HandleFunc("/creditos/{id}/pagos", creditHandler.RegistrarPago).Methods("POST")
	api.HandleFunc("/creditos/{id}/pagos", creditHandler.ListPagos).Methods("GET")
	api.HandleFunc("/creditos/{id}/pagos/{pagoId}/reversar", creditHandler.Reversar).Methods("POST")
	api.HandleFunc("/creditos/{id}/replay", creditHandler.Replay).Methods("POST")

	api.HandleFunc("/reportes/cartera", reportHandler.Cartera).Methods("GET")
	api.HandleFunc("/reportes/mora", reportHandler.Mora).Methods("GET")
	api.HandleFunc("/reportes/calcular-mora", reportHandler.CalcularMora).Methods("POST")

	return router
}
