package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"librarium-backend/internal/library/catalog"
	"librarium-backend/internal/library/chat"
	"librarium-backend/internal/library/rental"
	"librarium-backend/internal/library/users"
	"librarium-backend/internal/platform/auth"
	"librarium-backend/internal/platform/blob"
	"librarium-backend/internal/platform/db"
	"librarium-backend/internal/platform/mail"
)

func main() {
	_ = godotenv.Load()

	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	sdb, err := db.Connect(cfg.DB)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer sdb.Close()

	blobs, err := blob.NewStore(cfg.BlobDir)
	if err != nil {
		logger.Fatal("blob dir unavailable", zap.Error(err))
	}

	mailer := mail.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTPUser, cfg.SMTPPassword, logger)

	authSvc := auth.NewService(sdb, []byte(cfg.JWTSecret), mailer, cfg.FrontendOrigin)
	catalogSvc := catalog.NewService(catalog.NewStore(sdb), blobs, logger)
	rentalSvc := rental.NewService(sdb)
	usersSvc := users.NewService(users.NewStore(sdb))

	registry := chat.NewRegistry()
	hub := chat.NewHub(registry, logger)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.SetTrustedProxies(nil)

	if cfg.Mode != "release" && cfg.FrontendOrigin != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{cfg.FrontendOrigin},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authn := auth.RequireAuth([]byte(cfg.JWTSecret))
	auth.RegisterRoutes(r, authSvc)
	catalog.RegisterRoutes(r, catalogSvc, authn)
	rental.RegisterRoutes(r, rentalSvc, hub, authn)
	users.RegisterRoutes(r, usersSvc, authn)
	chat.RegisterRoutes(r, registry, hub, logger, wsOriginCheck(cfg.FrontendOrigin))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// wsOriginCheck allows same-host upgrades plus the configured frontend origin.
func wsOriginCheck(frontend string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if u.Host == req.Host {
			return true
		}
		return frontend != "" && origin == frontend
	}
}
