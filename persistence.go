package defects

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/fixtures
var fixturesFS embed.FS

const (
	migrationsRoot = "data/sql/migrations"
	fixturesRoot   = "data/fixtures"
)

// GetMigrationsFS returns the migration files, one directory per dialect
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GetFixturesFS returns the development fixtures
func GetFixturesFS() embed.FS {
	return fixturesFS
}

// Models returns every persisted model in creation order
func Models() []any {
	return []any{
		(*User)(nil),
		(*Project)(nil),
		(*ProjectStage)(nil),
		(*Defect)(nil),
		(*DefectComment)(nil),
		(*DefectAttachment)(nil),
		(*DefectHistory)(nil),
	}
}

// DialectLabel names the migration directory used for d
func DialectLabel(d schema.Dialect) string {
	switch d.Name() {
	case dialect.PG:
		return "postgres"
	case dialect.SQLite:
		return "sqlite"
	default:
		return d.Name().String()
	}
}

// DialectMigrations returns the migrations written for label
func DialectMigrations(label string) (fs.FS, error) {
	if _, err := fs.Stat(migrationsFS, path.Join(migrationsRoot, label)); err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", label, err)
	}
	return fs.Sub(migrationsFS, path.Join(migrationsRoot, label))
}

// NewPersistence registers the models, opens the persistence client on
// sqlDB and queues the migrations for d. Call client.Migrate to apply them.
func NewPersistence(cfg persistence.Config, sqlDB *sql.DB, d schema.Dialect, logger Logger) (*persistence.Client, error) {
	logger = normalizeLogger(logger)

	persistence.RegisterModel(Models()...)

	client, err := persistence.New(cfg, sqlDB, d)
	if err != nil {
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	client.SetLogger(func(format string, args ...any) {
		logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
	})

	label := DialectLabel(d)
	migrations, err := DialectMigrations(label)
	if err != nil {
		return nil, err
	}
	client.RegisterSQLMigrations(migrations)

	logger.Debug("persistence ready", "dialect", label, "driver", cfg.GetDriver())

	return client, nil
}

// ClientDB returns the bun handle behind the persistence client
func ClientDB(client *persistence.Client) (*bun.DB, error) {
	db, ok := client.DB().(*bun.DB)
	if !ok {
		return nil, fmt.Errorf("persistence client returned %T, expected *bun.DB", client.DB())
	}
	return db, nil
}
