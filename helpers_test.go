package defects_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	defects "github.com/goliatone/go-defects"
)

const testPassword = "Secret123"

var (
	testHashOnce sync.Once
	testHash     string
)

// passwordHash hashes testPassword once per test binary
func passwordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		var err error
		testHash, err = defects.HashPassword(testPassword)
		require.NoError(t, err)
	})
	return testHash
}

type testPersistenceConfig struct{}

func (testPersistenceConfig) GetDebug() bool                { return false }
func (testPersistenceConfig) GetDriver() string             { return sqliteshim.ShimName }
func (testPersistenceConfig) GetServer() string             { return "" }
func (testPersistenceConfig) GetDatabase() string           { return "defects_test" }
func (testPersistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (testPersistenceConfig) GetOtelIdentifier() string     { return "" }

// newTestPersistence opens a migrated in-memory sqlite database
func newTestPersistence(t *testing.T) (*persistence.Client, defects.RepositoryManager) {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	client, err := defects.NewPersistence(testPersistenceConfig{}, sqldb, sqlitedialect.New(), nopLogger{})
	require.NoError(t, err)
	require.NoError(t, client.Migrate(context.Background()))

	db, err := defects.ClientDB(client)
	require.NoError(t, err)

	return client, defects.NewRepositoryManager(db)
}

func newTestRepo(t *testing.T) defects.RepositoryManager {
	t.Helper()
	_, repo := newTestPersistence(t)
	return repo
}

// createUser stores a confirmed user with testPassword
func createUser(t *testing.T, repo defects.RepositoryManager, login string, role defects.UserRole) *defects.User {
	t.Helper()

	user, err := repo.Users().Create(context.Background(), &defects.User{
		Email:        login + "@example.com",
		Login:        login,
		FullName:     "Test User",
		PasswordHash: passwordHash(t),
		Role:         role,
	})
	require.NoError(t, err)
	return user
}

// createPendingUser stores a user that still holds a registration token
func createPendingUser(t *testing.T, repo defects.RepositoryManager, login, token string) *defects.User {
	t.Helper()

	user, err := repo.Users().Create(context.Background(), &defects.User{
		Email:        login + "@example.com",
		Login:        login,
		FullName:     "Pending User",
		PasswordHash: passwordHash(t),
		RegToken:     &token,
	})
	require.NoError(t, err)
	return user
}

func createProject(t *testing.T, repo defects.RepositoryManager, owner *defects.User, name string) *defects.Project {
	t.Helper()

	project, err := repo.Projects().Create(context.Background(), &defects.Project{
		Name:      name,
		CreatedBy: owner.ID,
	})
	require.NoError(t, err)
	return project
}

func createDefect(t *testing.T, repo defects.RepositoryManager, project *defects.Project, reporter *defects.User, title string) *defects.Defect {
	t.Helper()

	defect, err := repo.Defects().Create(context.Background(), &defects.Defect{
		ProjectID:  project.ID,
		Title:      title,
		ReportedBy: reporter.ID,
	})
	require.NoError(t, err)
	return defect
}

// stubMailer records confirmation links, or fails with err
type stubMailer struct {
	mu    sync.Mutex
	err   error
	sent  map[string]string
	calls int
}

func newStubMailer() *stubMailer {
	return &stubMailer{sent: map[string]string{}}
}

func (m *stubMailer) SendConfirmation(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent[email] = link
	return nil
}

func (m *stubMailer) Link(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[email]
}

type testConfig struct {
	landing string
}

func (c testConfig) GetSigningKey() string   { return "test-signing-key" }
func (c testConfig) GetTokenExpiration() int { return 24 }
func (c testConfig) GetIssuer() string       { return "defects-test" }
func (c testConfig) GetPublicURL() string    { return "http://localhost:25526" }
func (c testConfig) GetLandingURL() string {
	if c.landing == "" {
		return "/"
	}
	return c.landing
}

// nopLogger keeps test output quiet
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// assertErrorMessage checks the user facing message of a rich error
func assertErrorMessage(t *testing.T, err error, msg string) {
	t.Helper()
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected a rich error, got %v", err)
	assert.Equal(t, msg, richErr.Message)
}
