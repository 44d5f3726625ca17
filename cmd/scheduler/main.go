package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/coopfin/credito-engine/internal/config"
	"github.com/coopfin/credito-engine/internal/repository"
	"github.com/coopfin/credito-engine/internal/service"
	"github.com/coopfin/credito-engine/pkg/utils"
)

func main() {
	log.Println("Starting portfolio scheduler...")

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	creditoRepo := repository.NewCreditoRepository(db)
	pagoRepo := repository.NewPagoRepository(db)
	locks := service.NewCreditLocks()
	paymentService := service.NewPaymentService(creditoRepo, pagoRepo, redisClient, cfg, locks)
	portfolioService := service.NewPortfolioService(creditoRepo, paymentService, redisClient, cfg, locks)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("Invalid scheduler timezone %q: %v", cfg.Scheduler.Timezone, err)
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))
	setupCronJobs(c, cfg, portfolioService)

	c.Start()
	log.Println("Scheduler started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Println("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, portfolio *service.PortfolioService) {
	// Daily delinquency refresh: accrues mora, reclassifies installments and
	// applies pending credit balances across the live portfolio.
	_, err := c.AddFunc(cfg.Scheduler.MoraCronSpec, func() {
		asOf := utils.Truncate(time.Now())
		log.Printf("Running daily mora update as of %s...", utils.FormatDate(asOf))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		actualizados, err := portfolio.ActualizarMora(ctx, asOf)
		if err != nil {
			log.Printf("Mora update failed: %v", err)
			return
		}
		log.Printf("Mora update finished: %d credits refreshed", actualizados)
	})
	if err != nil {
		log.Printf("Error scheduling mora update job: %v", err)
	}

	log.Println("Cron jobs scheduled successfully")
}
