package defects

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Defects interface {
	Create(ctx context.Context, record *Defect) (*Defect, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Defect) (*Defect, error)
	Get(ctx context.Context, id uuid.UUID) (*Defect, error)
	GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Defect, error)
	List(ctx context.Context, filter DefectFilter) ([]*Defect, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *Defect, columns ...string) error
	CountByStatus(ctx context.Context, filter DefectFilter) (map[DefectStatus]int, error)
}

type defectsRepo struct {
	repo repository.Repository[*Defect]
	db   *bun.DB
}

var _ Defects = (*defectsRepo)(nil)

func NewDefectsRepository(db *bun.DB) Defects {
	return &defectsRepo{
		repo: newModelRepository(db,
			func() *Defect { return &Defect{} },
			func(d *Defect) uuid.UUID {
				if d == nil {
					return uuid.Nil
				}
				return d.ID
			},
			func(d *Defect, id uuid.UUID) {
				if d != nil {
					d.ID = id
				}
			},
		),
		db: db,
	}
}

func (r *defectsRepo) Create(ctx context.Context, record *Defect) (*Defect, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *defectsRepo) CreateTx(ctx context.Context, tx bun.IDB, record *Defect) (*Defect, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = StatusNew
	}
	if record.Priority == "" {
		record.Priority = PriorityMedium
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	return r.repo.CreateTx(ctx, tx, record)
}

func (r *defectsRepo) Get(ctx context.Context, id uuid.UUID) (*Defect, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	return record, notFound(err, "defect", id.String())
}

func (r *defectsRepo) GetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Defect, error) {
	record, err := r.repo.GetByIdentifierTx(ctx, tx, id.String())
	return record, notFound(err, "defect", id.String())
}

func (r *defectsRepo) List(ctx context.Context, filter DefectFilter) ([]*Defect, error) {
	var records []*Defect
	err := r.db.NewSelect().
		Model(&records).
		Apply(filter.apply).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

// UpdateTx writes the given columns plus updated_at
func (r *defectsRepo) UpdateTx(ctx context.Context, tx bun.IDB, record *Defect, columns ...string) error {
	record.UpdatedAt = time.Now().UTC()
	_, err := tx.NewUpdate().
		Model(record).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

func (r *defectsRepo) CountByStatus(ctx context.Context, filter DefectFilter) (map[DefectStatus]int, error) {
	var rows []struct {
		Status DefectStatus `bun:"status"`
		Count  int          `bun:"count"`
	}

	err := r.db.NewSelect().
		Model((*Defect)(nil)).
		ColumnExpr("?TableAlias.status AS status").
		ColumnExpr("count(*) AS count").
		Apply(filter.apply).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	out := make(map[DefectStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (f DefectFilter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.ProjectID != nil {
		q = q.Where("?TableAlias.project_id = ?", *f.ProjectID)
	}
	if f.Status != nil {
		q = q.Where("?TableAlias.status = ?", string(*f.Status))
	}
	if f.ParticipantID != nil {
		id := *f.ParticipantID
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.reported_by = ?", id).
				WhereOr("?TableAlias.assigned_to = ?", id)
		})
	}
	return q
}
