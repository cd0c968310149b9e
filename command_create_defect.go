package defects

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateDefectMessage struct {
	Actor      *User
	Defect     Defect
	OnResponse func(d *Defect)
}

func (e CreateDefectMessage) Type() string { return "defect.create" }

// CreateDefectHandler validates references and stores a new defect
// reported by the actor.
type CreateDefectHandler struct {
	repo   RepositoryManager
	policy Policy
}

func NewCreateDefectHandler(repo RepositoryManager) *CreateDefectHandler {
	return &CreateDefectHandler{repo: repo}
}

func (h *CreateDefectHandler) Execute(ctx context.Context, event CreateDefectMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during defect creation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateDefectHandler) execute(ctx context.Context, event CreateDefectMessage) error {
	if err := h.policy.Authorize(event.Actor, ActionCreateDefect); err != nil {
		return err
	}

	record := event.Defect
	record.ID = uuid.Nil
	record.Title = strings.TrimSpace(record.Title)
	record.ReportedBy = event.Actor.ID
	record.ActualCompletionDate = nil

	if record.Title == "" {
		return NewValidationError("title is required")
	}

	if record.Priority != "" && !record.Priority.IsValid() {
		return NewValidationError("invalid defect priority: " + string(record.Priority))
	}

	if record.Status != "" && !record.Status.IsValid() {
		return NewValidationError("invalid defect status: " + string(record.Status))
	}

	var created *Defect
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Projects().GetTx(ctx, tx, record.ProjectID); err != nil {
			return err
		}

		if record.StageID != nil {
			if err := checkStage(ctx, tx, h.repo, record.ProjectID, *record.StageID); err != nil {
				return err
			}
		}

		if record.AssignedTo != nil {
			if _, err := h.repo.Users().GetByIDTx(ctx, tx, *record.AssignedTo); err != nil {
				return err
			}
		}

		var err error
		created, err = h.repo.Defects().CreateTx(ctx, tx, &record)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "defect creation transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(created)
	}

	return nil
}
