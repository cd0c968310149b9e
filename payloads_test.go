package defects_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defects "github.com/goliatone/go-defects"
)

func TestParseDefectPatchAbsentKeysAreUntouched(t *testing.T) {
	patch, err := defects.ParseDefectPatch([]byte(`{"status": "in_progress"}`))
	require.NoError(t, err)

	require.NotNil(t, patch.Status)
	assert.Equal(t, defects.StatusInProgress, *patch.Status)
	assert.Nil(t, patch.Title)
	assert.Nil(t, patch.StageID)
	assert.False(t, patch.ClearStage)
	assert.False(t, patch.ClearAssignee)
	assert.False(t, patch.ClearDueDate)
}

func TestParseDefectPatchNullClears(t *testing.T) {
	patch, err := defects.ParseDefectPatch([]byte(`{
		"stage_id": null,
		"assigned_to": "",
		"due_date": null,
		"actual_completion_date": null
	}`))
	require.NoError(t, err)

	assert.True(t, patch.ClearStage)
	assert.True(t, patch.ClearAssignee)
	assert.True(t, patch.ClearDueDate)
	assert.True(t, patch.ClearActualCompletionDate)
	assert.False(t, patch.IsEmpty())
}

func TestParseDefectPatchValues(t *testing.T) {
	stage := uuid.New()
	patch, err := defects.ParseDefectPatch([]byte(`{
		"title": "  Crack in slab  ",
		"priority": "критический",
		"stage_id": "` + stage.String() + `",
		"due_date": "2024-05-01"
	}`))
	require.NoError(t, err)

	require.NotNil(t, patch.Title)
	assert.Equal(t, "Crack in slab", *patch.Title)
	require.NotNil(t, patch.Priority)
	assert.Equal(t, defects.PriorityCritical, *patch.Priority)
	require.NotNil(t, patch.StageID)
	assert.Equal(t, stage, *patch.StageID)
	require.NotNil(t, patch.DueDate)
	assert.True(t, patch.DueDate.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseDefectPatchRejects(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "not json", body: `nope`, wantErr: "invalid request body"},
		{name: "empty title", body: `{"title": "  "}`, wantErr: "title must not be empty"},
		{name: "unknown status", body: `{"status": "done"}`, wantErr: "invalid defect status: done"},
		{name: "unknown priority", body: `{"priority": "urgent"}`, wantErr: "invalid defect priority: urgent"},
		{name: "bad stage id", body: `{"stage_id": "42"}`, wantErr: "invalid stage_id"},
		{name: "bad date", body: `{"due_date": "01.05.2024"}`, wantErr: "invalid due_date, expected YYYY-MM-DD"},
		{name: "reporter", body: `{"reported_by": "` + uuid.NewString() + `"}`, wantErr: "reported_by can not be changed"},
		{name: "wrong type", body: `{"title": 12}`, wantErr: "title must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := defects.ParseDefectPatch([]byte(tt.body))
			assertErrorMessage(t, err, tt.wantErr)
		})
	}
}

func TestDefectCreatePayload(t *testing.T) {
	project := uuid.New()

	t.Run("defaults are left to storage", func(t *testing.T) {
		payload := defects.DefectCreatePayload{ProjectID: project.String(), Title: " Leak "}
		require.NoError(t, payload.Validate())

		d, err := payload.Defect()
		require.NoError(t, err)
		assert.Equal(t, project, d.ProjectID)
		assert.Equal(t, "Leak", d.Title)
		assert.Empty(t, d.Status)
		assert.Empty(t, d.Priority)
		assert.Nil(t, d.StageID)
	})

	t.Run("codes are mapped to labels", func(t *testing.T) {
		d, err := defects.DefectCreatePayload{
			ProjectID: project.String(),
			Title:     "Leak",
			Priority:  "high",
			Status:    "under_review",
		}.Defect()
		require.NoError(t, err)
		assert.Equal(t, defects.PriorityHigh, d.Priority)
		assert.Equal(t, defects.StatusUnderReview, d.Status)
	})

	t.Run("missing title", func(t *testing.T) {
		err := defects.DefectCreatePayload{ProjectID: project.String()}.Validate()
		assert.Error(t, err)
	})
}

func TestCommentPayloadText(t *testing.T) {
	assert.Equal(t, "body", defects.CommentPayload{Body: "body", CommentText: "alias"}.Text())
	assert.Equal(t, "alias", defects.CommentPayload{CommentText: "alias"}.Text())
}

func TestParseDate(t *testing.T) {
	for _, value := range []string{"2024-05-01", "2024-05-01T00:00:00Z", "2024-05-01T00:00:00"} {
		got, err := defects.ParseDate(value)
		require.NoError(t, err, value)
		assert.Equal(t, "2024-05-01", got.Format(defects.DateLayout))
	}

	got, err := defects.ParseDate("2024-05-01T15:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = defects.ParseDate("yesterday")
	assert.Error(t, err)
}
