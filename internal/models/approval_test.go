package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveApprovalStatus(t *testing.T) {
	cases := []struct {
		name     string
		deptHead StageStatus
		admin    StageStatus
		want     ApprovalStatus
	}{
		{"both pending", StagePending, StagePending, ApprovalPendingDeptHead},
		{"dept head approved", StageApproved, StagePending, ApprovalPendingAdmin},
		{"fully approved", StageApproved, StageApproved, ApprovalApproved},
		{"dept head rejected", StageRejected, StagePending, ApprovalRejected},
		{"admin rejected", StageApproved, StageRejected, ApprovalRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveApprovalStatus(tc.deptHead, tc.admin))
		})
	}
}

func TestTerminal(t *testing.T) {
	a := NewApprovable()
	assert.False(t, a.Terminal())

	a.ApprovalStatus = ApprovalApproved
	assert.True(t, a.Terminal())

	a.ApprovalStatus = ApprovalRejected
	assert.True(t, a.Terminal())
}

func TestNewApprovableInitialState(t *testing.T) {
	a := NewApprovable()
	assert.Equal(t, StagePending, a.DeptHeadStatus)
	assert.Equal(t, StagePending, a.AdminStatus)
	assert.Equal(t, ApprovalPendingDeptHead, a.ApprovalStatus)
	assert.False(t, a.Locked)
	assert.Equal(t, int64(1), a.Version)
}
