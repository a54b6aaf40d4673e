// internal/model/scheduled_action.go
package model

import (
	"encoding/json"
	"time"
)

type ActionType string

const (
	ActionEmail   ActionType = "email"
	ActionSMS     ActionType = "sms"
	ActionCRMPush ActionType = "crm_push"
)

type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusProcessing ActionStatus = "processing"
	StatusCompleted  ActionStatus = "completed"
	StatusFailed     ActionStatus = "failed"
)

func (s ActionStatus) String() string {
	return string(s)
}

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ActionStatus{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

type transition struct {
	from ActionStatus
	to   ActionStatus
}

// processing -> pending only happens when the retry policy reschedules.
var validTransitions = []transition{
	{from: StatusPending, to: StatusProcessing},
	{from: StatusProcessing, to: StatusCompleted},
	{from: StatusProcessing, to: StatusFailed},
	{from: StatusProcessing, to: StatusPending},
}

// CanTransition reports whether an action may move from one status to
// another. completed and failed are terminal.
func CanTransition(from, to ActionStatus) bool {
	for _, t := range validTransitions {
		if t.from == from && t.to == to {
			return true
		}
	}
	return false
}

type ScheduledAction struct {
	ID          int64           `db:"id" json:"id"`
	LeadID      int64           `db:"lead_id" json:"lead_id"`
	ActionType  ActionType      `db:"action_type" json:"action_type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	ScheduledAt time.Time       `db:"scheduled_at" json:"scheduled_at"`
	Status      ActionStatus    `db:"status" json:"status"` // pending, processing, completed, failed
	Attempts    int             `db:"attempts" json:"attempts"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	LockedBy    *string         `db:"locked_by" json:"locked_by,omitempty"`
	LockedAt    *time.Time      `db:"locked_at" json:"locked_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// IsDue reports whether the action is eligible for selection at now.
func (a *ScheduledAction) IsDue(now time.Time) bool {
	return a.Status == StatusPending && !a.ScheduledAt.After(now)
}
