package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"redstring/internal/api"
	"redstring/internal/config"
	grpcserver "redstring/internal/grpc"
	"redstring/internal/progress"
	"redstring/internal/tcpsync"
	"redstring/internal/udpnotify"
	"redstring/internal/user"
	"redstring/internal/websocket"
	"redstring/pkg/database"
	"redstring/pkg/logger"
	"redstring/pkg/models"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("create data dir", "dir", dir, "error", err)
		}
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("open database", "path", cfg.DBPath, "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("migrate", "error", err)
	}
	seed(db, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressCh := make(chan models.ProgressUpdate, 100)
	tcpServer := tcpsync.New(cfg.TCPAddr, progressCh, log)
	go func() {
		if err := tcpServer.Start(); err != nil {
			log.Fatal("tcp sync", "error", err)
		}
	}()
	udpServer := udpnotify.New(cfg.UDPAddr, log)
	go func() {
		if err := udpServer.Start(); err != nil {
			log.Fatal("udp notify", "error", err)
		}
	}()

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	policy := progress.ParsePolicy(cfg.CompletionPolicy)
	tracker := progress.NewTracker(db, policy)
	fanout := progress.NewFanout(db, log, progressCh, hub)

	grpcServer := grpc.NewServer()
	grpcserver.Register(grpcServer, grpcserver.NewServer(tracker, fanout, log))
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal("grpc listen", "addr", cfg.GRPCAddr, "error", err)
		}
		log.Info("grpc listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("grpc serve", "error", err)
		}
	}()

	router := api.NewRouter(api.Options{
		DB:          db,
		Tracker:     tracker,
		Secret:      []byte(cfg.JWTSecret),
		TokenTTL:    cfg.TokenTTL,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
		Hub:         hub,
		Fanout:      fanout,
		Announcer:   udpServer,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http api listening", "addr", srv.Addr, "completion_policy", policy.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	// both writers of progressCh are stopped before it is closed
	grpcServer.GracefulStop()
	_ = tcpServer.Close()
	_ = udpServer.Close()
	close(progressCh)
}

// seed loads the content tree on an empty store and makes sure the
// bootstrap accounts exist.
func seed(db *sql.DB, cfg config.Config, log *logger.Logger) {
	if _, err := os.Stat(cfg.SeedPath); err == nil {
		chapters, err := database.LoadContentFromJSON(cfg.SeedPath)
		if err != nil {
			log.Fatal("load seed content", "path", cfg.SeedPath, "error", err)
		}
		n, err := database.SeedContent(db, chapters)
		if err != nil {
			log.Fatal("seed content", "error", err)
		}
		if n > 0 {
			log.Info("seeded content", "chapters", n, "path", cfg.SeedPath)
		}
	} else {
		log.Warn("seed content not found, skipping", "path", cfg.SeedPath, "error", err)
	}

	ctx := context.Background()
	adminPassword := cfg.AdminPassword
	if adminPassword == "" {
		adminPassword = "admin123"
		log.Warn("ADMIN_PASSWORD not set, using the development default")
	}
	accounts := []struct{ username, password, role string }{
		{cfg.AdminUsername, adminPassword, models.RoleAdmin},
		{"reader", "reader123", models.RoleReader},
	}
	for _, a := range accounts {
		u, created, err := user.EnsureUser(ctx, db, a.username, a.password, a.role)
		if err != nil {
			log.Fatal("ensure user", "username", a.username, "error", err)
		}
		if created {
			log.Info("created user", "username", u.Username, "role", u.Role)
		}
	}

	if cfg.JWTSecret == "dev-secret-change-me" {
		log.Warn("JWT_SECRET not set, using a development secret")
	}
}
