package defects

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Projects interface {
	Create(ctx context.Context, record *Project) (*Project, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Project) (*Project, error)
	Get(ctx context.Context, id uuid.UUID) (*Project, error)
	GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, id uuid.UUID, patch ProjectPatch) (*Project, error)
}

type projects struct {
	repo repository.Repository[*Project]
	db   *bun.DB
}

var _ Projects = (*projects)(nil)

func NewProjectsRepository(db *bun.DB) Projects {
	return &projects{
		repo: newModelRepository(db,
			func() *Project { return &Project{} },
			func(p *Project) uuid.UUID {
				if p == nil {
					return uuid.Nil
				}
				return p.ID
			},
			func(p *Project, id uuid.UUID) {
				if p != nil {
					p.ID = id
				}
			},
		),
		db: db,
	}
}

func (r *projects) Create(ctx context.Context, record *Project) (*Project, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *projects) CreateTx(ctx context.Context, tx bun.IDB, record *Project) (*Project, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if strings.TrimSpace(record.Status) == "" {
		record.Status = DefaultProjectStatus
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	return r.repo.CreateTx(ctx, tx, record)
}

func (r *projects) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	return record, notFound(err, "project", id.String())
}

func (r *projects) GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Project, error) {
	record, err := r.repo.GetByIdentifierTx(ctx, tx, id.String())
	return record, notFound(err, "project", id.String())
}

func (r *projects) List(ctx context.Context) ([]*Project, error) {
	var records []*Project
	err := r.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Scan(ctx)
	return records, err
}

func (r *projects) Update(ctx context.Context, id uuid.UUID, patch ProjectPatch) (*Project, error) {
	var record *Project
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
