package defects

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// History is append only, rows are never updated or deleted
type History interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *DefectHistory) (*DefectHistory, error)
	ListByDefect(ctx context.Context, defectID uuid.UUID) ([]*DefectHistory, error)
}

type history struct {
	repo repository.Repository[*DefectHistory]
	db   *bun.DB
}

func NewHistoryRepository(db *bun.DB) History {
	return &history{
		repo: newModelRepository(db,
			func() *DefectHistory { return &DefectHistory{} },
			func(h *DefectHistory) uuid.UUID {
				if h == nil {
					return uuid.Nil
				}
				return h.ID
			},
			func(h *DefectHistory, id uuid.UUID) {
				if h != nil {
					h.ID = id
				}
			},
		),
		db: db,
	}
}

func (r *history) CreateTx(ctx context.Context, tx bun.IDB, record *DefectHistory) (*DefectHistory, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.ChangedAt.IsZero() {
		record.ChangedAt = time.Now().UTC()
	}
	return r.repo.CreateTx(ctx, tx, record)
}

// ListByDefect returns entries in the order they were written
func (r *history) ListByDefect(ctx context.Context, defectID uuid.UUID) ([]*DefectHistory, error) {
	var records []*DefectHistory
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.defect_id = ?", defectID).
		Order("changed_at ASC", "field_name ASC").
		Scan(ctx)
	return records, err
}
