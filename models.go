package defects

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	Login         string    `bun:"login,notnull,unique" json:"login"`
	FullName      string    `bun:"full_name,notnull" json:"full_name"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	Role          UserRole  `bun:"role,notnull,default:'observer'" json:"role"`
	RegToken      *string   `bun:"reg_token,unique" json:"-"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// IsPending is true until the registration token is consumed
func (u *User) IsPending() bool {
	return u.RegToken != nil
}

// IsConfirmed reports a consumed registration token
func (u *User) IsConfirmed() bool {
	return !u.IsPending()
}

// MarshalJSON adds is_confirmed to the public user profile
func (u User) MarshalJSON() ([]byte, error) {
	type profile User
	return json.Marshal(struct {
		profile
		IsConfirmed bool `json:"is_confirmed"`
	}{
		profile:     profile(u),
		IsConfirmed: u.IsConfirmed(),
	})
}

// Project is a construction site
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:prj"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	Description   string     `bun:"description" json:"description"`
	Address       string     `bun:"address" json:"address"`
	StartDate     *time.Time `bun:"start_date,nullzero" json:"start_date,omitempty"`
	EndDate       *time.Time `bun:"end_date,nullzero" json:"end_date,omitempty"`
	Status        string     `bun:"status,notnull" json:"status"`
	CreatedBy     uuid.UUID  `bun:"created_by,notnull,type:uuid" json:"created_by"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// DefaultProjectStatus is used when a project is created without one
const DefaultProjectStatus = "активный"

// ProjectPatch lists the mutable project fields, nil means unchanged
type ProjectPatch struct {
	Name        *string
	Description *string
	Address     *string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *string
}

// Apply mutates the project and returns the changed column names
func (p ProjectPatch) Apply(prj *Project) []string {
	var cols []string
	if p.Name != nil && *p.Name != prj.Name {
		prj.Name = *p.Name
		cols = append(cols, "name")
	}
	if p.Description != nil && *p.Description != prj.Description {
		prj.Description = *p.Description
		cols = append(cols, "description")
	}
	if p.Address != nil && *p.Address != prj.Address {
		prj.Address = *p.Address
		cols = append(cols, "address")
	}
	if p.StartDate != nil && !sameTime(p.StartDate, prj.StartDate) {
		prj.StartDate = p.StartDate
		cols = append(cols, "start_date")
	}
	if p.EndDate != nil && !sameTime(p.EndDate, prj.EndDate) {
		prj.EndDate = p.EndDate
		cols = append(cols, "end_date")
	}
	if p.Status != nil && *p.Status != prj.Status {
		prj.Status = *p.Status
		cols = append(cols, "status")
	}
	return cols
}

// ProjectStage belongs to a single project, ordered by sequence number
type ProjectStage struct {
	bun.BaseModel  `bun:"table:project_stages,alias:stg"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	ProjectID      uuid.UUID  `bun:"project_id,notnull,type:uuid" json:"project_id"`
	Name           string     `bun:"name,notnull" json:"name"`
	Description    string     `bun:"description" json:"description"`
	SequenceNumber int        `bun:"sequence_number,notnull" json:"sequence_number"`
	StartDate      *time.Time `bun:"start_date,nullzero" json:"start_date,omitempty"`
	EndDate        *time.Time `bun:"end_date,nullzero" json:"end_date,omitempty"`
	Status         string     `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// DefaultStageStatus is used when a stage is created without one
const DefaultStageStatus = "запланирован"

// StagePatch lists the mutable stage fields
type StagePatch struct {
	Name           *string
	Description    *string
	SequenceNumber *int
	StartDate      *time.Time
	EndDate        *time.Time
	Status         *string
}

// Apply mutates the stage and returns the changed column names
func (p StagePatch) Apply(stg *ProjectStage) []string {
	var cols []string
	if p.Name != nil && *p.Name != stg.Name {
		stg.Name = *p.Name
		cols = append(cols, "name")
	}
	if p.Description != nil && *p.Description != stg.Description {
		stg.Description = *p.Description
		cols = append(cols, "description")
	}
	if p.SequenceNumber != nil && *p.SequenceNumber != stg.SequenceNumber {
		stg.SequenceNumber = *p.SequenceNumber
		cols = append(cols, "sequence_number")
	}
	if p.StartDate != nil && !sameTime(p.StartDate, stg.StartDate) {
		stg.StartDate = p.StartDate
		cols = append(cols, "start_date")
	}
	if p.EndDate != nil && !sameTime(p.EndDate, stg.EndDate) {
		stg.EndDate = p.EndDate
		cols = append(cols, "end_date")
	}
	if p.Status != nil && *p.Status != stg.Status {
		stg.Status = *p.Status
		cols = append(cols, "status")
	}
	return cols
}

// DefectPriority is stored using its label
type DefectPriority string

const (
	PriorityLow      DefectPriority = "низкий"
	PriorityMedium   DefectPriority = "средний"
	PriorityHigh     DefectPriority = "высокий"
	PriorityCritical DefectPriority = "критический"
)

var priorityCodes = map[string]DefectPriority{
	"low":      PriorityLow,
	"medium":   PriorityMedium,
	"high":     PriorityHigh,
	"critical": PriorityCritical,
}

// Code returns the english code, e.g. "high"
func (p DefectPriority) Code() string {
	for code, v := range priorityCodes {
		if v == p {
			return code
		}
	}
	return ""
}

// IsValid checks the priority against the closed set
func (p DefectPriority) IsValid() bool {
	return p.Code() != ""
}

// ParsePriority accepts a code ("high") or a label ("высокий")
func ParsePriority(s string) (DefectPriority, error) {
	s = strings.TrimSpace(s)
	if p, ok := priorityCodes[strings.ToLower(s)]; ok {
		return p, nil
	}
	if p := DefectPriority(s); p.IsValid() {
		return p, nil
	}
	return "", NewValidationError("invalid defect priority: " + s)
}

// DefectStatus is stored using its label
type DefectStatus string

const (
	StatusNew         DefectStatus = "новая"
	StatusInProgress  DefectStatus = "в_работе"
	StatusUnderReview DefectStatus = "на_проверке"
	StatusClosed      DefectStatus = "закрыта"
	StatusCancelled   DefectStatus = "отменена"
)

var statusCodes = map[string]DefectStatus{
	"new":          StatusNew,
	"in_progress":  StatusInProgress,
	"under_review": StatusUnderReview,
	"closed":       StatusClosed,
	"cancelled":    StatusCancelled,
}

// Code returns the english code, e.g. "in_progress"
func (s DefectStatus) Code() string {
	for code, v := range statusCodes {
		if v == s {
			return code
		}
	}
	return ""
}

// IsValid checks the status against the closed set
func (s DefectStatus) IsValid() bool {
	return s.Code() != ""
}

// ParseStatus accepts a code ("closed") or a label ("закрыта")
func ParseStatus(s string) (DefectStatus, error) {
	s = strings.TrimSpace(s)
	if st, ok := statusCodes[strings.ToLower(s)]; ok {
		return st, nil
	}
	if st := DefectStatus(s); st.IsValid() {
		return st, nil
	}
	return "", NewValidationError("invalid defect status: " + s)
}

// Defect is a reported construction quality issue
type Defect struct {
	bun.BaseModel        `bun:"table:defects,alias:dft"`
	ID                   uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id"`
	ProjectID            uuid.UUID      `bun:"project_id,notnull,type:uuid" json:"project_id"`
	StageID              *uuid.UUID     `bun:"stage_id,type:uuid" json:"stage_id,omitempty"`
	Title                string         `bun:"title,notnull" json:"title"`
	Description          string         `bun:"description" json:"description"`
	Priority             DefectPriority `bun:"priority,notnull" json:"priority"`
	Status               DefectStatus   `bun:"status,notnull" json:"status"`
	ReportedBy           uuid.UUID      `bun:"reported_by,notnull,type:uuid" json:"reported_by"`
	AssignedTo           *uuid.UUID     `bun:"assigned_to,type:uuid" json:"assigned_to,omitempty"`
	DueDate              *time.Time     `bun:"due_date,nullzero" json:"due_date,omitempty"`
	ActualCompletionDate *time.Time     `bun:"actual_completion_date,nullzero" json:"actual_completion_date,omitempty"`
	CreatedAt            time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt            time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// IsParticipant is true for the reporter and the assignee
func (d *Defect) IsParticipant(userID uuid.UUID) bool {
	return d.ReportedBy == userID || (d.AssignedTo != nil && *d.AssignedTo == userID)
}

// DefectPatch is a partial defect update. Nil fields are left untouched,
// the Clear flags reset the nullable columns. The reporter is not patchable.
type DefectPatch struct {
	Title                *string
	Description          *string
	Priority             *DefectPriority
	Status               *DefectStatus
	StageID              *uuid.UUID
	AssignedTo           *uuid.UUID
	DueDate              *time.Time
	ActualCompletionDate *time.Time

	ClearStage                bool
	ClearAssignee             bool
	ClearDueDate              bool
	ClearActualCompletionDate bool
}

// IsEmpty is true when the patch carries no field at all
func (p DefectPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.StageID == nil && p.AssignedTo == nil &&
		p.DueDate == nil && p.ActualCompletionDate == nil &&
		!p.ClearStage && !p.ClearAssignee && !p.ClearDueDate && !p.ClearActualCompletionDate
}

// FieldChange is one tracked defect field going from Old to New
type FieldChange struct {
	Field  string
	Column string
	Old    string
	New    string
}

// Apply mutates the defect and returns one FieldChange per changed field
func (p DefectPatch) Apply(d *Defect) []FieldChange {
	var changes []FieldChange
	track := func(field, column, oldVal, newVal string) {
		changes = append(changes, FieldChange{Field: field, Column: column, Old: oldVal, New: newVal})
	}

	if p.Title != nil && *p.Title != d.Title {
		track("title", "title", d.Title, *p.Title)
		d.Title = *p.Title
	}

	if p.Description != nil && *p.Description != d.Description {
		track("description", "description", d.Description, *p.Description)
		d.Description = *p.Description
	}

	if p.Priority != nil && *p.Priority != d.Priority {
		track("priority", "priority", string(d.Priority), string(*p.Priority))
		d.Priority = *p.Priority
	}

	if p.Status != nil && *p.Status != d.Status {
		track("status", "status", string(d.Status), string(*p.Status))
		d.Status = *p.Status
	}

	switch {
	case p.ClearStage && d.StageID != nil:
		track("stage_id", "stage_id", uuidString(d.StageID), "")
		d.StageID = nil
	case p.StageID != nil && !sameUUID(p.StageID, d.StageID):
		track("stage_id", "stage_id", uuidString(d.StageID), p.StageID.String())
		d.StageID = copyUUID(p.StageID)
	}

	switch {
	case p.ClearAssignee && d.AssignedTo != nil:
		track("assigned_to", "assigned_to", uuidString(d.AssignedTo), "")
		d.AssignedTo = nil
	case p.AssignedTo != nil && !sameUUID(p.AssignedTo, d.AssignedTo):
		track("assigned_to", "assigned_to", uuidString(d.AssignedTo), p.AssignedTo.String())
		d.AssignedTo = copyUUID(p.AssignedTo)
	}

	switch {
	case p.ClearDueDate && d.DueDate != nil:
		track("due_date", "due_date", timeString(d.DueDate), "")
		d.DueDate = nil
	case p.DueDate != nil && !sameTime(p.DueDate, d.DueDate):
		track("due_date", "due_date", timeString(d.DueDate), timeString(p.DueDate))
		d.DueDate = p.DueDate
	}

	switch {
	case p.ClearActualCompletionDate && d.ActualCompletionDate != nil:
		track("actual_completion_date", "actual_completion_date", timeString(d.ActualCompletionDate), "")
		d.ActualCompletionDate = nil
	case p.ActualCompletionDate != nil && !sameTime(p.ActualCompletionDate, d.ActualCompletionDate):
		track("actual_completion_date", "actual_completion_date",
			timeString(d.ActualCompletionDate), timeString(p.ActualCompletionDate))
		d.ActualCompletionDate = p.ActualCompletionDate
	}

	return changes
}

// DefectFilter narrows defect listings, zero values are ignored
type DefectFilter struct {
	ProjectID     *uuid.UUID
	Status        *DefectStatus
	ParticipantID *uuid.UUID
}

// DefectComment is immutable once created
type DefectComment struct {
	bun.BaseModel `bun:"table:defect_comments,alias:cmt"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	DefectID      uuid.UUID `bun:"defect_id,notnull,type:uuid" json:"defect_id"`
	AuthorID      uuid.UUID `bun:"author_id,notnull,type:uuid" json:"author_id"`
	Body          string    `bun:"body,notnull" json:"body"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// DefectAttachment points to a stored file
type DefectAttachment struct {
	bun.BaseModel `bun:"table:defect_attachments,alias:att"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	DefectID      uuid.UUID `bun:"defect_id,notnull,type:uuid" json:"defect_id"`
	Filename      string    `bun:"filename,notnull" json:"filename"`
	StoragePath   string    `bun:"storage_path,notnull" json:"storage_path"`
	MimeType      string    `bun:"mime_type" json:"mime_type"`
	Size          int64     `bun:"size" json:"size"`
	UploadedBy    uuid.UUID `bun:"uploaded_by,notnull,type:uuid" json:"uploaded_by"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// DefectHistory is an append only audit entry
type DefectHistory struct {
	bun.BaseModel `bun:"table:defect_history,alias:hst"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	DefectID      uuid.UUID `bun:"defect_id,notnull,type:uuid" json:"defect_id"`
	FieldName     string    `bun:"field_name,notnull" json:"field_name"`
	OldValue      string    `bun:"old_value" json:"old_value"`
	NewValue      string    `bun:"new_value" json:"new_value"`
	ChangedBy     uuid.UUID `bun:"changed_by,notnull,type:uuid" json:"changed_by"`
	ChangedAt     time.Time `bun:"changed_at,nullzero,notnull,default:current_timestamp" json:"changed_at"`
}

// DateLayout is used for date only fields in history and payloads
const DateLayout = "2006-01-02"

func timeString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// sameTime compares at day precision, the unit history records
func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return timeString(a) == timeString(b)
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
