package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Martin-Hayot/auctionhub/configs"
	"github.com/Martin-Hayot/auctionhub/internal/app"
	"github.com/Martin-Hayot/auctionhub/internal/handlers/api"
	"github.com/Martin-Hayot/auctionhub/internal/handlers/websocket"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configurations
	cfg, err := configs.LoadConfig()
	if err != nil {
		log.Fatal("Error loading config", "error", err)
	}

	// Setup logger
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	logLevel, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		log.Error("Invalid log level", "level", cfg.Server.LogLevel, "error", err)
		logLevel = log.InfoLevel
	}
	log.SetLevel(logLevel)
	log.SetReportTimestamp(true)

	if err := run(cfg); err != nil {
		log.Fatal("Server stopped", "error", err)
	}
}

func run(cfg *configs.Config) error {
	// Redirect logs to buffer while the dashboard owns the terminal
	var logs *logBuffer
	if cfg.Features.EnableDashboard {
		logs = &logBuffer{}
		log.SetOutput(logs)
	}

	a, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	pingInterval, err := time.ParseDuration(cfg.WebSocket.PingInterval)
	if err != nil && cfg.WebSocket.PingInterval != "" {
		log.Warn("Invalid websocket ping interval, using default", "value", cfg.WebSocket.PingInterval)
	}
	hub := websocket.NewHub(pingInterval, int64(cfg.WebSocket.MaxMessageSize))
	defer hub.Close()

	a.Scheduler.Subscribe(func(entry types.JobLog) {
		hub.Publish(websocket.EventJobRun, entry)
	})
	if cfg.Scheduler.Enabled {
		a.Scheduler.Start()
	} else {
		log.Warn("Scheduler disabled, jobs only run on demand")
	}

	handler := api.NewHandler(a.Store, a.Archiver, a.Maintenance, a.Scheduler, hub, api.Options{
		AllowCrossOrigin: cfg.Server.AllowCrossOrigin,
		LogRequests:      cfg.Features.EnableLogging,
		RateLimit:        cfg.Server.RateLimit,
		RateBurst:        cfg.Server.RateBurst,
	})
	router := handler.SetupRoutes(nil)
	router.HandleFunc("/ws/feed", hub.HandleFeed)

	port := cfg.Server.Port
	if port == "" {
		port = "5000"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server started", "port", port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	if cfg.Features.EnableDashboard {
		p := tea.NewProgram(newDashboard(a.Store, logs), tea.WithAltScreen(), tea.WithContext(ctx))
		go func() {
			if err := <-serverErr; err != nil {
				log.Error("Failed to start server", "error", err)
				p.Quit()
			}
		}()
		if _, err := p.Run(); err != nil && err != tea.ErrProgramKilled {
			log.Error("Error running dashboard", "error", err)
		}
		// restore terminal logging for the shutdown messages
		log.SetOutput(os.Stderr)
	} else {
		select {
		case <-ctx.Done():
		case err := <-serverErr:
			if err != nil {
				return err
			}
		}
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
