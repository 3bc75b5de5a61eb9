// Command seed prepares a fresh database: tables, the role catalog, the
// default runtime options, the gender lookup and the first admin account.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/slava-lu/auth-app-backend/internal/config"
	"github.com/slava-lu/auth-app-backend/internal/password"
	"github.com/slava-lu/auth-app-backend/internal/role"
	rolerepo "github.com/slava-lu/auth-app-backend/internal/role/repo"
	"github.com/slava-lu/auth-app-backend/internal/schema"
	"github.com/slava-lu/auth-app-backend/internal/setting"
	settingrepo "github.com/slava-lu/auth-app-backend/internal/setting/repo"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/database"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

var genders = map[int64]string{1: "male", 2: "female"}

func main() {
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	var adm AdminConfig
	if err := env.Parse(&adm); err != nil {
		sugar.Fatalf("parse env: %v", err)
	}
	var hashCfg config.Hash
	if err := env.Parse(&hashCfg); err != nil {
		sugar.Fatalf("parse env: %v", err)
	}
	hasher, err := password.NewHasher(hashCfg.Iterations, hashCfg.KeyLength, hashCfg.Digest)
	if err != nil {
		sugar.Fatalf("hasher: %v", err)
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
	if err := rolerepo.NewRoleRepo(db).Seed(ctx, role.Builtin); err != nil {
		sugar.Fatalf("seed roles: %v", err)
	}
	if err := setting.NewService(settingrepo.NewRepo(db)).Seed(ctx); err != nil {
		sugar.Fatalf("seed settings: %v", err)
	}
	if err := userrepo.NewUserRepo(db).SeedGenders(ctx, genders); err != nil {
		sugar.Fatalf("seed genders: %v", err)
	}
	sugar.Info("catalogs seeded")

	if adm.Email == "" {
		sugar.Warn("ADMIN_EMAIL not set; skipping admin account")
		return
	}
	created, err := SeedAdmin(ctx, db, hasher, adm)
	if err != nil {
		sugar.Fatalf("seed admin: %v", err)
	}
	if created {
		sugar.Infow("admin account created", "email", adm.Email, "roles", adm.Roles)
	} else {
		sugar.Infow("admin account exists", "email", adm.Email)
	}
}
