package defects

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Comments has no update or delete, comments are immutable
type Comments interface {
	Create(ctx context.Context, record *DefectComment) (*DefectComment, error)
	ListByDefect(ctx context.Context, defectID uuid.UUID) ([]*DefectComment, error)
}

type comments struct {
	repo repository.Repository[*DefectComment]
	db   *bun.DB
}

func NewCommentsRepository(db *bun.DB) Comments {
	return &comments{
		repo: newModelRepository(db,
			func() *DefectComment { return &DefectComment{} },
			func(c *DefectComment) uuid.UUID {
				if c == nil {
					return uuid.Nil
				}
				return c.ID
			},
			func(c *DefectComment, id uuid.UUID) {
				if c != nil {
					c.ID = id
				}
			},
		),
		db: db,
	}
}

func (r *comments) Create(ctx context.Context, record *DefectComment) (*DefectComment, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now().UTC()
	return r.repo.CreateTx(ctx, r.db, record)
}

func (r *comments) ListByDefect(ctx context.Context, defectID uuid.UUID) ([]*DefectComment, error) {
	var records []*DefectComment
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.defect_id = ?", defectID).
		Order("created_at ASC").
		Scan(ctx)
	return records, err
}
