package models

import "time"

// SLAStatus captures the lifecycle of a department timer.
type SLAStatus string

const (
	SLAStatusPending  SLAStatus = "PENDING"
	SLAStatusWarning  SLAStatus = "WARNING"
	SLAStatusBreached SLAStatus = "BREACHED"
	SLAStatusMet      SLAStatus = "MET"
)

// DefaultSLATargetHours applies when neither the caller nor configuration provides a target.
const DefaultSLATargetHours = 48.0

// SLAMetric is one timer per (request, department) pair.
type SLAMetric struct {
	ID          string     `db:"id" json:"id"`
	RequestID   string     `db:"request_id" json:"requestId"`
	Department  Department `db:"department" json:"department"`
	TargetHours float64    `db:"target_hours" json:"targetHours"`
	StartedAt   time.Time  `db:"started_at" json:"startedAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	ActualHours *float64   `db:"actual_hours" json:"actualHours,omitempty"`
	Status      SLAStatus  `db:"status" json:"status"`
	WarningSent bool       `db:"warning_sent" json:"warningSent"`
	Breached    bool       `db:"breached" json:"breached"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// HoursBetween returns the fractional hours from start to end without rounding.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Seconds() / 3600
}

// SweepResult summarises one sweep pass.
type SweepResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
}
