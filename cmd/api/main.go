package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/example/complaintflow/backend/internal/config"
	"github.com/example/complaintflow/backend/internal/db"
	httpserver "github.com/example/complaintflow/backend/internal/http"
	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/mq"
	"github.com/example/complaintflow/backend/internal/repository"
	"github.com/example/complaintflow/backend/internal/service"
	"github.com/example/complaintflow/backend/internal/worker"
)

func main() {
	cfg := config.Load()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	autoMigrate(database)

	var publisher mq.Publisher
	rabbitPublisher, err := mq.NewRabbitPublisher(cfg.MQURL, cfg.MQExchange)
	if err != nil {
		log.Printf("warning: rabbitmq unavailable (%v), continuing without events", err)
	} else {
		publisher = rabbitPublisher
	}

	userRepo := repository.NewUserRepository(database)
	complaintRepo := repository.NewComplaintRepository(database)
	notificationRepo := repository.NewNotificationRepository(database)
	shippingRepo := repository.NewShippingRepository(database)

	notifier := service.NewNotifier(notificationRepo, publisher)
	complaintService := service.NewComplaintService(database, complaintRepo, userRepo, shippingRepo, notifier, publisher)
	shippingService := service.NewShippingService(shippingRepo, userRepo)
	notificationService := service.NewNotificationService(notificationRepo)

	apiServer := httpserver.NewServer(userRepo, complaintService, shippingService, notificationService)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scanner := worker.NewOverdueScanner(database, complaintRepo, userRepo, notifier, cfg.ScannerInterval, cfg.InstallerSLADays)
	go scanner.Run(ctx)

	if publisher != nil {
		// Re-dispatch whatever was persisted while the bus was down.
		if unsent, err := notificationRepo.ListUnsent(ctx, 500); err != nil {
			log.Printf("list unsent notifications: %v", err)
		} else if len(unsent) > 0 {
			log.Printf("re-dispatching %d unsent notifications", len(unsent))
			notifier.Dispatch(ctx, unsent)
		}

		consumer, err := mq.NewRabbitConsumer(cfg.MQURL, cfg.MQExchange, cfg.MQDeliveryQueue)
		if err != nil {
			log.Printf("warning: delivery consumer unavailable: %v", err)
		} else {
			delivery := worker.NewDeliveryWorker(consumer, notificationRepo)
			if err := delivery.Run(ctx); err != nil {
				log.Printf("warning: delivery worker failed to start: %v", err)
			}
			defer consumer.Close()
		}
	}

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: apiServer.Engine,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if rabbitPublisher != nil {
		_ = rabbitPublisher.Close()
	}
	log.Println("bye")
}

func autoMigrate(conn *gorm.DB) {
	if err := conn.AutoMigrate(
		&models.User{},
		&models.Complaint{},
		&models.DefectiveProduct{},
		&models.Attachment{},
		&models.Comment{},
		&models.Notification{},
		&models.ShippingEntry{},
		&models.ProductionSite{},
		&models.ComplaintReason{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
