package defects

import "github.com/google/uuid"

// Action is something a user may try to do
type Action string

const (
	ActionViewProjects   Action = "projects.view"
	ActionManageProjects Action = "projects.manage"
	ActionViewDefects    Action = "defects.view"
	ActionCreateDefect   Action = "defects.create"
	ActionUpdateDefect   Action = "defects.update"
	ActionCommentDefect  Action = "defects.comment"
	ActionAttachDefect   Action = "defects.attach"
	ActionListUsers      Action = "users.list"
	ActionViewStatistics Action = "reports.statistics"
)

// Policy is the role matrix. Admin is reserved and read only.
type Policy struct{}

// Can checks role level permissions, ownership is checked by CanOnDefect
func (Policy) Can(u *User, action Action) bool {
	if u == nil {
		return false
	}

	switch action {
	case ActionViewProjects, ActionViewDefects:
		return u.Role.IsValid()
	case ActionManageProjects, ActionListUsers:
		return u.Role == RoleManager
	case ActionCreateDefect, ActionUpdateDefect, ActionCommentDefect, ActionAttachDefect:
		return u.Role == RoleManager || u.Role == RoleEngineer
	case ActionViewStatistics:
		return u.Role == RoleManager || u.Role == RoleObserver
	default:
		return false
	}
}

// CanOnDefect adds the engineer ownership rules to Can
func (p Policy) CanOnDefect(u *User, action Action, d *Defect) bool {
	if !p.Can(u, action) || d == nil {
		return false
	}

	if u.Role != RoleEngineer {
		return true
	}

	switch action {
	case ActionViewDefects, ActionCommentDefect, ActionAttachDefect:
		return d.IsParticipant(u.ID)
	case ActionUpdateDefect:
		return d.ReportedBy == u.ID
	default:
		return false
	}
}

// DefectScope returns the participant filter for roles that only see their own defects
func (Policy) DefectScope(u *User) *uuid.UUID {
	if u != nil && u.Role == RoleEngineer {
		id := u.ID
		return &id
	}
	return nil
}

// Authorize returns ErrForbidden when Can is false
func (p Policy) Authorize(u *User, action Action) error {
	if !p.Can(u, action) {
		return ErrForbidden
	}
	return nil
}

// AuthorizeDefect returns ErrForbidden when CanOnDefect is false
func (p Policy) AuthorizeDefect(u *User, action Action, d *Defect) error {
	if !p.CanOnDefect(u, action, d) {
		return ErrForbidden
	}
	return nil
}
