package defects

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Attachments interface {
	Create(ctx context.Context, record *DefectAttachment) (*DefectAttachment, error)
	Get(ctx context.Context, id uuid.UUID) (*DefectAttachment, error)
	ListByDefect(ctx context.Context, defectID uuid.UUID) ([]*DefectAttachment, error)
}

type attachments struct {
	repo repository.Repository[*DefectAttachment]
	db   *bun.DB
}

func NewAttachmentsRepository(db *bun.DB) Attachments {
	return &attachments{
		repo: newModelRepository(db,
			func() *DefectAttachment { return &DefectAttachment{} },
			func(a *DefectAttachment) uuid.UUID {
				if a == nil {
					return uuid.Nil
				}
				return a.ID
			},
			func(a *DefectAttachment, id uuid.UUID) {
				if a != nil {
					a.ID = id
				}
			},
		),
		db: db,
	}
}

func (r *attachments) Create(ctx context.Context, record *DefectAttachment) (*DefectAttachment, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now().UTC()
	return r.repo.CreateTx(ctx, r.db, record)
}

func (r *attachments) Get(ctx context.Context, id uuid.UUID) (*DefectAttachment, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	return record, notFound(err, "attachment", id.String())
}

func (r *attachments) ListByDefect(ctx context.Context, defectID uuid.UUID) ([]*DefectAttachment, error) {
	var records []*DefectAttachment
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.defect_id = ?", defectID).
		Order("created_at ASC").
		Scan(ctx)
	return records, err
}
