package acl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	active := New()
	active.Grant(1, PermissionRead, PermissionUpdate)

	tests := []struct {
		name  string
		list  *AccessControlList
		group int
		perm  Permission
		want  bool
	}{
		{"nil list grants", nil, 2, PermissionDelete, true},
		{"inactive list grants", &AccessControlList{}, 2, PermissionDelete, true},
		{"granted permission", active, 1, PermissionRead, true},
		{"missing permission", active, 1, PermissionDelete, false},
		{"unknown group", active, 2, PermissionRead, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.list, tc.group, tc.perm))
		})
	}
}

func TestVerify(t *testing.T) {
	l := New()
	l.Grant(1, PermissionRead)

	require.NoError(t, Verify(l, 1, PermissionRead))
	err := Verify(l, 2, PermissionRead)
	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.Contains(t, err.Error(), "group 2")
}

func TestGrantRevoke(t *testing.T) {
	var l AccessControlList
	l.Grant(3, PermissionRead, PermissionRead, PermissionCreate)
	assert.Equal(t, []Permission{PermissionRead, PermissionCreate}, l.Groups.Includes["3"])

	l.Revoke(3)
	_, ok := l.Groups.Includes["3"]
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	var nilList *AccessControlList
	require.NoError(t, nilList.Validate())

	good := New()
	good.Grant(1, Permissions()...)
	require.NoError(t, good.Validate())

	badGroup := New()
	badGroup.Groups.Includes["admins"] = []Permission{PermissionRead}
	assert.Error(t, badGroup.Validate())

	badPerm := New()
	badPerm.Groups.Includes["1"] = []Permission{"EXECUTE"}
	assert.Error(t, badPerm.Validate())
}

func TestMatchCondition(t *testing.T) {
	cond := MatchCondition("type", 2, PermissionRead)
	require.Len(t, cond, 1)
	assert.Equal(t, "$or", cond[0].Key)
}
