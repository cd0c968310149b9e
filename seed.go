package defects

import (
	"context"
	"io/fs"
	"text/template"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
)

// SeedOwner describes the manager account that owns fixture data
type SeedOwner struct {
	Email    string
	Login    string
	FullName string
	Password string
}

// Seed loads the development fixtures: a confirmed manager, two projects
// and two defects. It does nothing when any project already exists.
func Seed(ctx context.Context, client *persistence.Client, owner SeedOwner, logger Logger) error {
	logger = normalizeLogger(logger)

	if owner.Email == "" || owner.Login == "" || owner.Password == "" {
		return NewValidationError("seed owner email, login and password are required")
	}

	count, err := client.DB().NewSelect().Model((*Project)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("seed data already present, skipping", "projects", count)
		return nil
	}

	funcs, err := seedFuncs(owner)
	if err != nil {
		return err
	}

	fixtures, err := fs.Sub(fixturesFS, fixturesRoot)
	if err != nil {
		return err
	}

	client.RegisterFixtures(fixtures).AddOptions(persistence.WithTemplateFuncs(funcs))

	if err := client.Seed(ctx); err != nil {
		return err
	}

	logger.Info("seed data created", "owner", normalizeEmail(owner.Email))
	return nil
}

// seedFuncs exposes the owner to the fixture templates
func seedFuncs(owner SeedOwner) (template.FuncMap, error) {
	hash, err := HashPassword(owner.Password)
	if err != nil {
		return nil, err
	}

	id, err := UserID(owner.Email)
	if err != nil {
		return nil, err
	}

	fullName := owner.FullName
	if fullName == "" {
		fullName = owner.Login
	}

	return template.FuncMap{
		"ownerID":           func() any { return id },
		"ownerEmail":        func() any { return normalizeEmail(owner.Email) },
		"ownerLogin":        func() any { return owner.Login },
		"ownerFullName":     func() any { return fullName },
		"ownerPasswordHash": func() any { return hash },
		"newID":             func() any { return uuid.New() },
	}, nil
}
