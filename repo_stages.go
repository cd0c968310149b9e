package defects

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Stages interface {
	Create(ctx context.Context, record *ProjectStage) (*ProjectStage, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *ProjectStage) (*ProjectStage, error)
	Get(ctx context.Context, id uuid.UUID) (*ProjectStage, error)
	GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ProjectStage, error)
	List(ctx context.Context, projectID *uuid.UUID) ([]*ProjectStage, error)
	Update(ctx context.Context, id uuid.UUID, patch StagePatch) (*ProjectStage, error)
}

type stages struct {
	repo repository.Repository[*ProjectStage]
	db   *bun.DB
}

var _ Stages = (*stages)(nil)

func NewStagesRepository(db *bun.DB) Stages {
	return &stages{
		repo: newModelRepository(db,
			func() *ProjectStage { return &ProjectStage{} },
			func(s *ProjectStage) uuid.UUID {
				if s == nil {
					return uuid.Nil
				}
				return s.ID
			},
			func(s *ProjectStage, id uuid.UUID) {
				if s != nil {
					s.ID = id
				}
			},
		),
		db: db,
	}
}

func (r *stages) Create(ctx context.Context, record *ProjectStage) (*ProjectStage, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *stages) CreateTx(ctx context.Context, tx bun.IDB, record *ProjectStage) (*ProjectStage, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if strings.TrimSpace(record.Status) == "" {
		record.Status = DefaultStageStatus
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	return r.repo.CreateTx(ctx, tx, record)
}

func (r *stages) Get(ctx context.Context, id uuid.UUID) (*ProjectStage, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	return record, notFound(err, "project stage", id.String())
}

func (r *stages) GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ProjectStage, error) {
	record, err := r.repo.GetByIdentifierTx(ctx, tx, id.String())
	return record, notFound(err, "project stage", id.String())
}

// List returns stages ordered by sequence number, optionally for one project
func (r *stages) List(ctx context.Context, projectID *uuid.UUID) ([]*ProjectStage, error) {
	var records []*ProjectStage
	q := r.db.NewSelect().Model(&records)
	if projectID != nil {
		q = q.Where("?TableAlias.project_id = ?", *projectID)
	}
	err := q.
		Order("project_id ASC", "sequence_number ASC").
		Scan(ctx)
	return records, err
}

func (r *stages) Update(ctx context.Context, id uuid.UUID, patch StagePatch) (*ProjectStage, error) {
	var record *ProjectStage
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if record, err = r.GetTx(ctx, tx, id); err != nil {
			return err
		}

		cols := patch.Apply(record)
		if len(cols) == 0 {
			return nil
		}

		record.UpdatedAt = time.Now().UTC()
		_, err = tx.NewUpdate().
			Model(record).
			Column(append(cols, "updated_at")...).
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
