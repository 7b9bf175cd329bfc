package models

// StageStatus is the decision state of one approval stage.
type StageStatus string

const (
	StagePending  StageStatus = "PENDING"
	StageApproved StageStatus = "APPROVED"
	StageRejected StageStatus = "REJECTED"
)

// ApprovalStatus is derived from the two stage statuses and never stored
// independently of them.
type ApprovalStatus string

const (
	ApprovalPendingDeptHead ApprovalStatus = "PENDING_DEPT_HEAD"
	ApprovalPendingAdmin    ApprovalStatus = "PENDING_ADMIN"
	ApprovalApproved        ApprovalStatus = "APPROVED"
	ApprovalRejected        ApprovalStatus = "REJECTED"
)

// Approvable carries the shared two-stage approval state embedded in
// petty-cash ledgers and assets. Version supports optimistic locking on
// decision writes.
type Approvable struct {
	DeptHeadStatus StageStatus    `db:"dept_head_status" json:"dept_head_status"`
	AdminStatus    StageStatus    `db:"admin_status" json:"admin_status"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	Locked         bool           `db:"locked" json:"locked"`
	Version        int64          `db:"version" json:"version"`
}

// DeriveApprovalStatus computes the aggregate status from the stage
// decisions. Rejection at either stage short-circuits; dept-head approval
// must precede the admin stage.
func DeriveApprovalStatus(deptHead, admin StageStatus) ApprovalStatus {
	if deptHead == StageRejected || admin == StageRejected {
		return ApprovalRejected
	}
	if deptHead != StageApproved {
		return ApprovalPendingDeptHead
	}
	if admin != StageApproved {
		return ApprovalPendingAdmin
	}
	return ApprovalApproved
}

// Terminal reports whether no further decisions are accepted.
func (a Approvable) Terminal() bool {
	return a.ApprovalStatus == ApprovalApproved || a.ApprovalStatus == ApprovalRejected
}

// NewApprovable returns the initial state for a freshly created record.
func NewApprovable() Approvable {
	return Approvable{
		DeptHeadStatus: StagePending,
		AdminStatus:    StagePending,
		ApprovalStatus: ApprovalPendingDeptHead,
		Version:        1,
	}
}
