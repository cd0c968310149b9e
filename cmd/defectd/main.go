package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-print"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	defects "github.com/goliatone/go-defects"
	"github.com/goliatone/go-defects/mailer"
	"github.com/goliatone/go-defects/storage"
)

func main() {
	var (
		envFile     = flag.String("env", ".env", "dotenv file loaded before reading the environment")
		seed        = flag.Bool("seed", false, "load development fixture data")
		migrateOnly = flag.Bool("migrate-only", false, "create the schema and exit")
		setRole     = flag.String("set-role", "", "assign a role and exit, as email=role")
	)
	flag.Parse()

	if err := run(*envFile, *seed, *migrateOnly, *setRole); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(envFile string, seed, migrateOnly bool, setRole string) error {
	cfg, err := LoadConfig(envFile)
	if err != nil {
		return err
	}

	zl, err := newLogger(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	defer zl.Sync()

	logger := zapLogger{s: zl.Sugar()}

	if cfg.Debug {
		fmt.Println(print.MaybePrettyJSON(cfg.Redacted()))
	}

	ctx := context.Background()

	sqldb, dialect, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer sqldb.Close()

	client, err := defects.NewPersistence(cfg, sqldb, dialect, logger)
	if err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if migrateOnly {
		logger.Info("schema ready", "driver", cfg.GetDriver())
		return nil
	}

	db, err := defects.ClientDB(client)
	if err != nil {
		return err
	}

	repo := defects.NewRepositoryManager(db)
	repo.MustValidate()

	if setRole != "" {
		return assignRole(ctx, repo, setRole, logger)
	}

	if seed {
		owner := defects.SeedOwner{
			Email:    cfg.SeedEmail,
			Login:    cfg.SeedLogin,
			FullName: cfg.SeedFullName,
			Password: cfg.SeedPassword,
		}
		if err := defects.Seed(ctx, client, owner, logger); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	app := defects.NewApp(defects.AppOptions{
		Repo:   repo,
		Config: cfg,
		Mailer: mailer.NewSMTP(mailer.Config{
			Host:     cfg.SMTPServer,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}),
		Storage: storage.NewLocal(cfg.UploadDir),
		Logger:  logger,
		Metrics: defects.NewMetrics("defects"),
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		errc <- app.Server.Serve(cfg.HTTPAddr)
	}()

	select {
	case err := <-errc:
		return err
	case sig := <-waitExitSignal():
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return app.Server.Shutdown(shutdownCtx)
}

// openDB picks the driver and dialect from the DSN scheme
func openDB(dsn string) (*sql.DB, schema.Dialect, error) {
	if isPostgresDSN(dsn) {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return sqldb, pgdialect.New(), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, err
	}
	sqldb.SetMaxOpenConns(1)

	return sqldb, sqlitedialect.New(), nil
}

func assignRole(ctx context.Context, repo defects.RepositoryManager, arg string, logger zapLogger) error {
	email, rawRole, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("invalid -set-role value %q, expected email=role", arg)
	}

	role, ok := defects.ParseRole(rawRole)
	if !ok {
		return fmt.Errorf("unknown role %q, expected one of %v", rawRole, defects.GetAllRoles())
	}

	user, err := repo.Users().GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if _, err := repo.Users().SetRole(ctx, user.ID, role); err != nil {
		return err
	}

	logger.Info("role updated", "email", user.Email, "role", role.String(), "previous", user.Role.String())
	return nil
}

func waitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
