package defects

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	DB() *bun.DB
	Users() Users
	Projects() Projects
	Stages() Stages
	Defects() Defects
	Comments() Comments
	Attachments() Attachments
	History() History
}

type mngr struct {
	db          *bun.DB
	users       Users
	projects    Projects
	stages      Stages
	defects     Defects
	comments    Comments
	attachments Attachments
	history     History
}

// NewRepositoryManager wires every repository on top of db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		users:       NewUsersRepository(db),
		projects:    NewProjectsRepository(db),
		stages:      NewStagesRepository(db),
		defects:     NewDefectsRepository(db),
		comments:    NewCommentsRepository(db),
		attachments: NewAttachmentsRepository(db),
		history:     NewHistoryRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.projects == nil || m.stages == nil {
		return errors.New("repository projects and stages should be initialized")
	}

	if m.defects == nil || m.history == nil {
		return errors.New("repository defects and history should be initialized")
	}

	if m.comments == nil || m.attachments == nil {
		return errors.New("repository comments and attachments should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Projects() Projects {
	return m.projects
}

func (m mngr) Stages() Stages {
	return m.stages
}

func (m mngr) Defects() Defects {
	return m.defects
}

func (m mngr) Comments() Comments {
	return m.comments
}

func (m mngr) Attachments() Attachments {
	return m.attachments
}

func (m mngr) History() History {
	return m.history
}

// newModelRepository builds a generic repository for uuid keyed models
func newModelRepository[T any](db *bun.DB, newRecord func() T, getID func(T) uuid.UUID, setID func(T, uuid.UUID)) repository.Repository[T] {
	return repository.NewRepository[T](db, repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID:     getID,
		SetID:     setID,
		GetIdentifier: func() string {
			return "id"
		},
	})
}

// notFound maps storage not found errors to a domain error for entity
func notFound(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return NewNotFoundError(entity).WithMetadata(map[string]any{
			"entity": entity,
			"id":     id,
		})
	}
	return err
}
