package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"cortex/workspace/internal/config"
	"cortex/workspace/internal/db"
	"cortex/workspace/internal/handler"
	"cortex/workspace/internal/logging"
	"cortex/workspace/internal/repository"
	"cortex/workspace/internal/router"
	"cortex/workspace/internal/service"
)

func main() {
	cfg := config.Load()

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Printf("%v, using info", err)
	}
	logging.SetLevel(level)
	if level < logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	for _, warning := range cfg.Warnings() {
		logging.Warnf("config: %s", warning)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, db.MigrationSource(cfg.MigrationsDir)); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewUserRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)
	pomodoroRepo := repository.NewPomodoroRepository(database)

	authService := service.NewAuthService(userRepo, settingsRepo, cfg.JWTSecret, cfg.TokenTTL)
	pomodoroService := service.NewPomodoroService(pomodoroRepo, settingsRepo)
	timerService := service.NewTimerService(ctx, pomodoroService, service.TimerServiceOptions{
		CallTimeout: cfg.CollaboratorTimeout,
	})

	authHandler := handler.NewAuthHandler(authService)
	pomodoroHandler := handler.NewPomodoroHandler(pomodoroService)
	timerHandler := handler.NewTimerHandler(timerService)

	engine := router.New(authService, authHandler, pomodoroHandler, timerHandler, cfg.CORSOrigins)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("backend listening on :%s", cfg.Port)
	if err := serve(ctx, server, cfg.ShutdownTimeout); err != nil {
		log.Fatalf("run server: %v", err)
	}
	logging.Infof("server: stopped")
}

// serve runs server until ctx is cancelled and returns once Shutdown has
// drained open connections or timed out.
func serve(ctx context.Context, server *http.Server, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warnf("server: shutdown: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
