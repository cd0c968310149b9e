package defects_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	defects "github.com/goliatone/go-defects"
)

func TestPolicyCan(t *testing.T) {
	var policy defects.Policy

	matrix := map[defects.Action]map[defects.UserRole]bool{
		defects.ActionViewProjects: {
			defects.RoleObserver: true, defects.RoleEngineer: true, defects.RoleManager: true, defects.RoleAdmin: true,
		},
		defects.ActionManageProjects: {
			defects.RoleManager: true,
		},
		defects.ActionViewDefects: {
			defects.RoleObserver: true, defects.RoleEngineer: true, defects.RoleManager: true, defects.RoleAdmin: true,
		},
		defects.ActionCreateDefect: {
			defects.RoleEngineer: true, defects.RoleManager: true,
		},
		defects.ActionUpdateDefect: {
			defects.RoleEngineer: true, defects.RoleManager: true,
		},
		defects.ActionCommentDefect: {
			defects.RoleEngineer: true, defects.RoleManager: true,
		},
		defects.ActionAttachDefect: {
			defects.RoleEngineer: true, defects.RoleManager: true,
		},
		defects.ActionListUsers: {
			defects.RoleManager: true,
		},
		defects.ActionViewStatistics: {
			defects.RoleObserver: true, defects.RoleManager: true,
		},
	}

	for action, allowed := range matrix {
		for _, role := range defects.GetAllRoles() {
			user := &defects.User{ID: uuid.New(), Role: role}
			assert.Equal(t, allowed[role], policy.Can(user, action), "%s %s", role, action)
		}
	}

	assert.False(t, policy.Can(nil, defects.ActionViewProjects))
	assert.False(t, policy.Can(&defects.User{Role: "guest"}, defects.ActionViewProjects))
	assert.False(t, policy.Can(&defects.User{Role: defects.RoleManager}, defects.Action("unknown")))
}

func TestPolicyCanOnDefectEngineerOwnership(t *testing.T) {
	var policy defects.Policy

	engineer := &defects.User{ID: uuid.New(), Role: defects.RoleEngineer}
	other := uuid.New()

	reported := &defects.Defect{ReportedBy: engineer.ID}
	assigned := &defects.Defect{ReportedBy: other, AssignedTo: &engineer.ID}
	foreign := &defects.Defect{ReportedBy: other}

	tests := []struct {
		name   string
		action defects.Action
		defect *defects.Defect
		want   bool
	}{
		{name: "view reported", action: defects.ActionViewDefects, defect: reported, want: true},
		{name: "view assigned", action: defects.ActionViewDefects, defect: assigned, want: true},
		{name: "view foreign", action: defects.ActionViewDefects, defect: foreign, want: false},
		{name: "update reported", action: defects.ActionUpdateDefect, defect: reported, want: true},
		{name: "update assigned", action: defects.ActionUpdateDefect, defect: assigned, want: false},
		{name: "comment assigned", action: defects.ActionCommentDefect, defect: assigned, want: true},
		{name: "attach foreign", action: defects.ActionAttachDefect, defect: foreign, want: false},
		{name: "nil defect", action: defects.ActionViewDefects, defect: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.CanOnDefect(engineer, tt.action, tt.defect))
		})
	}
}

func TestPolicyCanOnDefectOtherRoles(t *testing.T) {
	var policy defects.Policy
	foreign := &defects.Defect{ReportedBy: uuid.New()}

	manager := &defects.User{ID: uuid.New(), Role: defects.RoleManager}
	assert.True(t, policy.CanOnDefect(manager, defects.ActionUpdateDefect, foreign))

	observer := &defects.User{ID: uuid.New(), Role: defects.RoleObserver}
	assert.True(t, policy.CanOnDefect(observer, defects.ActionViewDefects, foreign))
	assert.False(t, policy.CanOnDefect(observer, defects.ActionCommentDefect, foreign))

	assert.ErrorIs(t, policy.AuthorizeDefect(observer, defects.ActionUpdateDefect, foreign), defects.ErrForbidden)
	assert.NoError(t, policy.Authorize(manager, defects.ActionListUsers))
}

func TestPolicyDefectScope(t *testing.T) {
	var policy defects.Policy

	engineer := &defects.User{ID: uuid.New(), Role: defects.RoleEngineer}
	scope := policy.DefectScope(engineer)
	if assert.NotNil(t, scope) {
		assert.Equal(t, engineer.ID, *scope)
	}

	assert.Nil(t, policy.DefectScope(&defects.User{Role: defects.RoleManager}))
	assert.Nil(t, policy.DefectScope(&defects.User{Role: defects.RoleObserver}))
	assert.Nil(t, policy.DefectScope(nil))
}
