package defects

import (
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// ProjectPayload is used for create and patch, nil fields are absent
type ProjectPayload struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Address     *string `json:"address"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Status      *string `json:"status"`
}

// Validate will validate the payload for creation
func (p ProjectPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&p.Address, validation.RuneLength(0, 500)),
	)
}

func (p ProjectPayload) Patch() (ProjectPatch, error) {
	patch := ProjectPatch{
		Name:        trimmed(p.Name),
		Description: p.Description,
		Address:     p.Address,
		Status:      trimmed(p.Status),
	}

	if patch.Name != nil && *patch.Name == "" {
		return patch, NewValidationError("name must not be empty")
	}

	var err error
	if patch.StartDate, err = parseDatePtr("start_date", p.StartDate); err != nil {
		return patch, err
	}
	if patch.EndDate, err = parseDatePtr("end_date", p.EndDate); err != nil {
		return patch, err
	}
	return patch, nil
}

// StagePayload is used for create and patch
type StagePayload struct {
	ProjectID      string  `json:"project_id"`
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	SequenceNumber *int    `json:"sequence_number"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Status         *string `json:"status"`
}

// Validate will validate the payload for creation
func (p StagePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProjectID, validation.Required),
		validation.Field(&p.Name, validation.Required, validation.RuneLength(1, 200)),
	)
}

func (p StagePayload) Patch() (StagePatch, error) {
	patch := StagePatch{
		Name:           trimmed(p.Name),
		Description:    p.Description,
		SequenceNumber: p.SequenceNumber,
		Status:         trimmed(p.Status),
	}

	if patch.Name != nil && *patch.Name == "" {
		return patch, NewValidationError("name must not be empty")
	}

	var err error
	if patch.StartDate, err = parseDatePtr("start_date", p.StartDate); err != nil {
		return patch, err
	}
	if patch.EndDate, err = parseDatePtr("end_date", p.EndDate); err != nil {
		return patch, err
	}
	return patch, nil
}

// DefectCreatePayload is the body of POST /api/defects
type DefectCreatePayload struct {
	ProjectID   string  `json:"project_id"`
	StageID     *string `json:"stage_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	AssignedTo  *string `json:"assigned_to"`
	DueDate     *string `json:"due_date"`
}

// Validate will validate the payload
func (p DefectCreatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProjectID, validation.Required),
		validation.Field(&p.Title, validation.Required, validation.RuneLength(1, 300)),
	)
}

func (p DefectCreatePayload) Defect() (Defect, error) {
	var d Defect
	var err error

	if d.ProjectID, err = parseID("project_id", p.ProjectID); err != nil {
		return d, err
	}

	d.Title = strings.TrimSpace(p.Title)
	d.Description = p.Description

	if p.Priority != "" {
		if d.Priority, err = ParsePriority(p.Priority); err != nil {
			return d, err
		}
	}

	if p.Status != "" {
		if d.Status, err = ParseStatus(p.Status); err != nil {
			return d, err
		}
	}

	if p.StageID != nil && *p.StageID != "" {
		id, err := parseID("stage_id", *p.StageID)
		if err != nil {
			return d, err
		}
		d.StageID = &id
	}

	if p.AssignedTo != nil && *p.AssignedTo != "" {
		id, err := parseID("assigned_to", *p.AssignedTo)
		if err != nil {
			return d, err
		}
		d.AssignedTo = &id
	}

	if d.DueDate, err = parseDatePtr("due_date", p.DueDate); err != nil {
		return d, err
	}

	return d, nil
}

// ParseDefectPatch decodes a PATCH body. Absent keys are left untouched and
// an explicit null clears the nullable columns.
func ParseDefectPatch(body []byte) (DefectPatch, error) {
	var patch DefectPatch

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return patch, NewValidationError("invalid request body")
	}

	str := func(key string) (*string, bool, error) {
		v, ok := raw[key]
		if !ok {
			return nil, false, nil
		}
		if isJSONNull(v) {
			return nil, true, nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, true, NewValidationError(key + " must be a string")
		}
		return &s, true, nil
	}

	if s, _, err := str("title"); err != nil {
		return patch, err
	} else if s != nil {
		title := strings.TrimSpace(*s)
		if title == "" {
			return patch, NewValidationError("title must not be empty")
		}
		patch.Title = &title
	}

	if s, _, err := str("description"); err != nil {
		return patch, err
	} else if s != nil {
		patch.Description = s
	}

	if s, _, err := str("priority"); err != nil {
		return patch, err
	} else if s != nil {
		p, err := ParsePriority(*s)
		if err != nil {
			return patch, err
		}
		patch.Priority = &p
	}

	if s, _, err := str("status"); err != nil {
		return patch, err
	} else if s != nil {
		st, err := ParseStatus(*s)
		if err != nil {
			return patch, err
		}
		patch.Status = &st
	}

	if s, present, err := str("stage_id"); err != nil {
		return patch, err
	} else if present && (s == nil || *s == "") {
		patch.ClearStage = true
	} else if s != nil {
		id, err := parseID("stage_id", *s)
		if err != nil {
			return patch, err
		}
		patch.StageID = &id
	}

	if s, present, err := str("assigned_to"); err != nil {
		return patch, err
	} else if present && (s == nil || *s == "") {
		patch.ClearAssignee = true
	} else if s != nil {
		id, err := parseID("assigned_to", *s)
		if err != nil {
			return patch, err
		}
		patch.AssignedTo = &id
	}

	if s, present, err := str("due_date"); err != nil {
		return patch, err
	} else if present && (s == nil || *s == "") {
		patch.ClearDueDate = true
	} else if s != nil {
		if patch.DueDate, err = parseDatePtr("due_date", s); err != nil {
			return patch, err
		}
	}

	if s, present, err := str("actual_completion_date"); err != nil {
		return patch, err
	} else if present && (s == nil || *s == "") {
		patch.ClearActualCompletionDate = true
	} else if s != nil {
		if patch.ActualCompletionDate, err = parseDatePtr("actual_completion_date", s); err != nil {
			return patch, err
		}
	}

	if _, ok := raw["reported_by"]; ok {
		return patch, NewValidationError("reported_by can not be changed")
	}

	return patch, nil
}

// CommentPayload is the body of POST /api/comments
type CommentPayload struct {
	DefectID    string `json:"defect_id"`
	Body        string `json:"body"`
	CommentText string `json:"comment_text"`
}

func (p CommentPayload) Text() string {
	if p.Body != "" {
		return p.Body
	}
	return p.CommentText
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, NewValidationError("invalid " + field)
	}
	return id, nil
}

var dateLayouts = []string{DateLayout, time.RFC3339, "2006-01-02T15:04:05"}

// ParseDate accepts a date or an RFC3339 timestamp. The result is
// midnight UTC of the day, timestamps lose their time of day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			y, m, d := t.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, err
}

func parseDatePtr(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := ParseDate(*value)
	if err != nil {
		return nil, NewValidationError("invalid " + field + ", expected YYYY-MM-DD")
	}
	return &t, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func isJSONNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}
