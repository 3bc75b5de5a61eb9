package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/slava-lu/auth-app-backend/internal/admin"
	"github.com/slava-lu/auth-app-backend/internal/config"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/mail"
	"github.com/slava-lu/auth-app-backend/internal/metrics"
	"github.com/slava-lu/auth-app-backend/internal/middleware"
	"github.com/slava-lu/auth-app-backend/internal/oauth"
	"github.com/slava-lu/auth-app-backend/internal/password"
	"github.com/slava-lu/auth-app-backend/internal/profile"
	"github.com/slava-lu/auth-app-backend/internal/ratelimit"
	rolerepo "github.com/slava-lu/auth-app-backend/internal/role/repo"
	"github.com/slava-lu/auth-app-backend/internal/router"
	"github.com/slava-lu/auth-app-backend/internal/schema"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/setting"
	settingrepo "github.com/slava-lu/auth-app-backend/internal/setting/repo"
	"github.com/slava-lu/auth-app-backend/internal/twofa"
	"github.com/slava-lu/auth-app-backend/internal/user"
	"github.com/slava-lu/auth-app-backend/pkg/database"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting auth api")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg, err := database.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("%v", err)
	}
	db, err := database.Open(ctx, dbCfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	if err := schema.Ensure(ctx, db); err != nil {
		sugar.Fatalf("schema: %v", err)
	}
	rt, err := setting.NewService(settingrepo.NewRepo(db)).Load(ctx)
	if err != nil {
		sugar.Fatalf("load runtime config: %v", err)
	}
	sugar.Infow("runtime config loaded", "one_login_only", rt.OneLoginOnly, "social_login_not_allowed", rt.SocialLoginNotAllowed)

	var limiter ratelimit.Limiter = ratelimit.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			sugar.Fatalf("redis ping: %v", err)
		}
		limiter = ratelimit.NewAttempts(rdb, cfg.Limits.MaxAttempts, cfg.Limits.AttemptWindow)
	} else {
		sugar.Warn("REDIS_ADDR not set; attempt limiting disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	var sender mail.Sender = mail.LogSender{Logger: sugar}
	if cfg.Mail.SendGridAPIKey != "" {
		sender = mail.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.SendGridHost, cfg.Mail.Templates)
	} else {
		sugar.Warn("SENDGRID_API_KEY not set; emails are only logged")
	}
	dispatcher := mail.NewDispatcher(sender, sugar, 256, 2)
	defer dispatcher.Close()

	hasher, err := password.NewHasher(cfg.Hash.Iterations, cfg.Hash.KeyLength, cfg.Hash.Digest)
	if err != nil {
		sugar.Fatalf("hasher: %v", err)
	}
	tokens, err := session.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}
	cookies := session.NewCookies(cfg.Cookie.Name, cfg.Cookie.Domain, cfg.SecureCookies(), cfg.Cookie.ExpiresInDays)
	render := httpx.Renderer{Logger: sugar, ClearSession: cookies.Clear}

	userStore := user.NewSQLStore(db)
	userSvc := user.NewService(user.Deps{
		Store:   userStore,
		Hasher:  hasher,
		Tokens:  tokens,
		Mail:    dispatcher,
		Limiter: limiter,
		Metrics: rec,
		Runtime: rt,
		Config:  cfg,
		Logger:  sugar,
	})
	twofaSvc := twofa.NewService(twofa.NewSQLStore(db), userSvc, limiter, rec,
		twofa.Config{Issuer: cfg.TwoFa.Issuer, ChallengeTTL: cfg.TwoFa.ChallengeTTL}, sugar)
	oauthSvc := oauth.NewService(oauth.NewSQLStore(db),
		oauth.NewProviders(cfg, &http.Client{Timeout: 10 * time.Second}),
		oauth.NewAvatarFetcher(oauth.NewSafeClient(5*time.Second), sugar),
		userSvc, rt, rec, sugar)

	ipLimiter := middleware.NewIPLimiter(middleware.DefaultIPLimiterConfig(cfg.Limits.IPRatePerMin, cfg.Limits.IPBurst), render, sugar)
	defer ipLimiter.Stop()

	roleRepo := rolerepo.NewRoleRepo(db)
	handler := router.RegisterRoutes(router.Deps{
		Logger:   sugar,
		Metrics:  rec,
		Gatherer: reg,
		Render:   render,
		Guard: middleware.NewGuard(middleware.GuardConfig{
			Tokens:   tokens,
			Cookies:  cookies,
			Accounts: userStore,
			Render:   render,
			Metrics:  rec,
			Logger:   sugar,
		}),
		Roles:     middleware.Roles{Source: roleRepo, Runtime: rt, Render: render, Metrics: rec},
		Confirmer: userSvc,
		IPLimiter: ipLimiter,
		Ping:      db.PingContext,
		User:      user.NewHandler(userSvc, cookies, render, sugar),
		TwoFa:     twofa.NewHandler(twofaSvc, cookies, render, sugar),
		OAuth:     oauth.NewHandler(oauthSvc, cookies, render, sugar),
		Profile:   profile.NewHandler(profile.NewService(profile.NewSQLStore(db), sugar), render, sugar),
		Admin:     admin.NewHandler(admin.NewService(admin.NewSQLStore(db), sugar), render, sugar),
		System:    setting.NewHandler(rt, roleRepo, render, sugar),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
