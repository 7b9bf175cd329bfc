package models

import "time"

// CertificateStatus tracks asynchronous rendering.
type CertificateStatus string

const (
	CertificatePending   CertificateStatus = "PENDING"
	CertificateRendering CertificateStatus = "RENDERING"
	CertificateReady     CertificateStatus = "READY"
	CertificateFailed    CertificateStatus = "FAILED"
)

// Certificate is a generated completion certificate document.
type Certificate struct {
	ID            string            `db:"id" json:"id"`
	RecipientName string            `db:"recipient_name" json:"recipient_name"`
	ProgramTitle  string            `db:"program_title" json:"program_title"`
	RequestedBy   string            `db:"requested_by" json:"requested_by"`
	Status        CertificateStatus `db:"status" json:"status"`
	StoragePath   *string           `db:"storage_path" json:"storage_path,omitempty"`
	Error         *string           `db:"error" json:"error,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}
