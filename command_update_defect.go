package defects

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdateDefectMessage struct {
	DefectID   uuid.UUID
	Actor      *User
	Patch      DefectPatch
	OnResponse func(d *Defect, changes []FieldChange)
}

func (e UpdateDefectMessage) Type() string { return "defect.update" }

// UpdateDefectHandler applies a DefectPatch. The column update and one
// history row per changed field commit in the same transaction.
type UpdateDefectHandler struct {
	repo         RepositoryManager
	policy       Policy
	logger       Logger
	activitySink ActivitySink
}

func NewUpdateDefectHandler(repo RepositoryManager) *UpdateDefectHandler {
	return &UpdateDefectHandler{
		repo:         repo,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *UpdateDefectHandler) WithLogger(logger Logger) *UpdateDefectHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *UpdateDefectHandler) WithActivitySink(sink ActivitySink) *UpdateDefectHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *UpdateDefectHandler) Execute(ctx context.Context, event UpdateDefectMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during defect update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateDefectHandler) execute(ctx context.Context, event UpdateDefectMessage) error {
	if event.Actor == nil {
		return ErrUnauthenticated
	}

	var defect *Defect
	var changes []FieldChange

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if defect, err = h.repo.Defects().GetTx(ctx, tx, event.DefectID); err != nil {
			return err
		}

		if err := h.policy.AuthorizeDefect(event.Actor, ActionUpdateDefect, defect); err != nil {
			return err
		}

		if err := h.checkReferences(ctx, tx, defect, event.Patch); err != nil {
			return err
		}

		changes = event.Patch.Apply(defect)
		if len(changes) == 0 {
			return nil
		}

		columns := make([]string, 0, len(changes))
		for _, change := range changes {
			columns = append(columns, change.Column)
		}

		if err := h.repo.Defects().UpdateTx(ctx, tx, defect, columns...); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update defect")
		}

		for _, change := range changes {
			if _, err := h.repo.History().CreateTx(ctx, tx, &DefectHistory{
				DefectID:  defect.ID,
				FieldName: change.Field,
				OldValue:  change.Old,
				NewValue:  change.New,
				ChangedBy: event.Actor.ID,
				ChangedAt: defect.UpdatedAt,
			}); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record defect history")
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "defect update transaction failed")
	}

	if len(changes) > 0 {
		fields := make([]string, 0, len(changes))
		for _, change := range changes {
			fields = append(fields, change.Field)
		}
		recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
			EventType: ActivityEventDefectUpdated,
			Actor:     userActor(event.Actor),
			UserID:    event.Actor.ID.String(),
			Metadata: map[string]any{
				"defect_id": defect.ID.String(),
				"fields":    fields,
			},
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(defect, changes)
	}

	return nil
}

// checkReferences validates the stage and assignee a patch points to
func (h *UpdateDefectHandler) checkReferences(ctx context.Context, tx bun.IDB, defect *Defect, patch DefectPatch) error {
	if patch.StageID != nil && !patch.ClearStage {
		if err := checkStage(ctx, tx, h.repo, defect.ProjectID, *patch.StageID); err != nil {
			return err
		}
	}

	if patch.AssignedTo != nil && !patch.ClearAssignee {
		if _, err := h.repo.Users().GetByIDTx(ctx, tx, *patch.AssignedTo); err != nil {
			return err
		}
	}

	return nil
}

// checkStage makes sure the stage exists and belongs to projectID
func checkStage(ctx context.Context, tx bun.IDB, repo RepositoryManager, projectID, stageID uuid.UUID) error {
	stage, err := repo.Stages().GetTx(ctx, tx, stageID)
	if err != nil {
		return err
	}
	if stage.ProjectID != projectID {
		return NewValidationError("stage does not belong to the defect's project")
	}
	return nil
}
