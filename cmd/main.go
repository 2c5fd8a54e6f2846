package main

import (
	"context"
	"fmt"
	"log" // Using standard log for early errors before zap is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/captcha"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/config"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/crypto"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/database"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/grants"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/handlers"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/otp"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/protocols"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/ratelimit"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/repository"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/server"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/services"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/sessions"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/twilio"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/utils"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := utils.NewLogger(cfg.App.Env)
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()
	sugar.Infof("Starting service in %s environment on port %d", cfg.App.Env, cfg.App.Port)

	ctx := context.Background()
	db, mongoClient, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
	if err != nil {
		sugar.Fatal(err)
	}
	rdb, err := database.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		sugar.Fatal(err)
	}

	cookieKey, err := cfg.CookieKey()
	if err != nil {
		sugar.Fatal(err)
	}
	cookieCodec, err := crypto.NewCodec(cookieKey)
	if err != nil {
		sugar.Fatal(err)
	}
	grantKey, err := cfg.GrantKey()
	if err != nil {
		sugar.Fatal(err)
	}
	grantCodec, err := crypto.NewCodec(grantKey)
	if err != nil {
		sugar.Fatal(err)
	}
	hasher := crypto.NewHasher([]byte(cfg.Security.HashSalt))

	registry, err := protocols.NewRegistry(cfg.Platforms)
	if err != nil {
		sugar.Fatalf("invalid platform configuration: %v", err)
	}

	userRepo := repository.NewMongoUserRepo(db, "users")
	sessionRepo := repository.NewMongoSessionRepo(db, "sessions")
	grantRepo := repository.NewMongoGrantRepo(db, "grants")

	sessionMgr := sessions.NewManager(sessionRepo, cfg.Cookie, logger)
	grantMgr := grants.NewManager(grantRepo, grantCodec, registry, logger)
	counters := otp.NewCounterStore(rdb, cfg.Security.OTPAttemptLimit, logger)
	loginThrottle := ratelimit.NewLoginThrottle(rdb, cfg.Security.LoginAttemptLimit, cfg.Security.LoginAttemptWindow.Std(), logger)

	verifier := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.ServiceSID, cfg.Twilio.BaseURL)
	captchaVerifier := captcha.NewVerifier(cfg.Security.RecaptchaSecret, cfg.Security.RecaptchaURL)
	passwords := utils.NewPasswordHasher(cfg.Security.PasswordHashCost)

	authSvc := services.NewAuthService(
		userRepo, sessionMgr, grantMgr, counters, loginThrottle,
		verifier, captchaVerifier, hasher, passwords,
		cfg.Security.EnableOTPCounter, cfg.Security.EnableRecaptcha,
		logger,
	)
	grantSvc := services.NewGrantService(userRepo, sessionMgr, grantMgr, registry, passwords, logger)

	h := handlers.NewHandler(authSvc, grantSvc, cookieCodec, cfg.Cookie, logger)
	app := server.New(cfg, h, logger)

	go func() {
		listenAddr := fmt.Sprintf(":%d", cfg.App.Port)
		sugar.Infof("Server listening on %s", listenAddr)
		if err := app.Listen(listenAddr); err != nil {
			sugar.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	sugar.Info("Shutting down server...")

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := app.ShutdownWithContext(ctxShut); err != nil {
		sugar.Errorf("Fiber app shutdown error: %v", err)
	}
	if err := mongoClient.Disconnect(ctxShut); err != nil {
		sugar.Errorf("MongoDB disconnect error: %v", err)
	}
	if err := rdb.Close(); err != nil {
		sugar.Errorf("Redis client close error: %v", err)
	}

	sugar.Info("Graceful shutdown complete. Goodbye!")
}
