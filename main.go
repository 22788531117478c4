package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"StockLedger/app/config"
	"StockLedger/app/database"
	"StockLedger/app/logger"
	"StockLedger/app/services"
	"StockLedger/app/websocket"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Optional .env for local development overrides
	_ = godotenv.Load(".env")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.FirstRun {
		if err := config.SaveConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}

	if err := logger.Initialize(cfg.System.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := database.Initialize(cfg); err != nil {
		logger.Log.Fatal("database initialization failed", zap.Error(err))
	}
	logger.Log.Info("database ready", zap.String("driver", cfg.Database.Driver))

	ledgerService := services.NewLedgerService()
	productService := services.NewProductService(ledgerService)
	reservationService := services.NewReservationService(productService, ledgerService)
	salesService := services.NewSalesService(productService, ledgerService)
	reorderService := services.NewReorderService()
	reportsService := services.NewReportsService(ledgerService)

	server := websocket.NewServer(":" + cfg.Server.Port)
	server.SetRESTHandlers(websocket.NewRESTHandlers(
		productService,
		ledgerService,
		reservationService,
		salesService,
		reorderService,
		reportsService,
		cfg.System.LowStockThreshold,
	))

	productService.SetEventPublisher(server)
	reservationService.SetEventPublisher(server)
	salesService.SetEventPublisher(server)
	reorderService.SetEventPublisher(server)

	go func() {
		if err := server.Start(); err != nil {
			logger.Log.Fatal("event feed server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down")
	server.Stop()
}
