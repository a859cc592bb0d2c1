package service

import (
	"github.com/noah-isme/sma-clearance-api/internal/models"
	"github.com/noah-isme/sma-clearance-api/pkg/config"
)

// NotificationRecipients maps each queue to a mailbox.
type NotificationRecipients struct {
	Library    string
	Bursar     string
	Academic   string
	Processor  string
	Operations string
}

// NotificationPolicy toggles rule families and names recipients.
type NotificationPolicy struct {
	Enabled       bool
	SystemNotices bool
	Recipients    NotificationRecipients
}

// NotificationPolicyFromConfig converts loaded configuration into a dispatcher policy.
func NotificationPolicyFromConfig(cfg config.NotificationConfig) NotificationPolicy {
	return NotificationPolicy{
		Enabled:       cfg.Enabled,
		SystemNotices: cfg.SystemNotices,
		Recipients: NotificationRecipients{
			Library:    cfg.LibraryQueue,
			Bursar:     cfg.BursarQueue,
			Academic:   cfg.AcademicQueue,
			Processor:  cfg.ProcessorQueue,
			Operations: cfg.OpsMailbox,
		},
	}
}

// systemNoticeFields are the fields whose every change is reported to operations.
var systemNoticeFields = []models.Field{
	models.FieldStatus,
	models.FieldLibraryStatus,
	models.FieldBursarStatus,
	models.FieldAcademicStatus,
}

// NotificationRuleDispatcher decides which parties to alert for a state transition.
// It holds no mutable state; Evaluate returns the same intents for the same pair.
type NotificationRuleDispatcher struct {
	policy NotificationPolicy
}

// NewNotificationRuleDispatcher constructs the dispatcher.
func NewNotificationRuleDispatcher(policy NotificationPolicy) *NotificationRuleDispatcher {
	return &NotificationRuleDispatcher{policy: policy}
}

// Evaluate returns intents for the transition from old to new in rule order. A nil old means creation.
// Intents for an unconfigured recipient keep an empty To; delivery skips and logs them.
func (d *NotificationRuleDispatcher) Evaluate(old, new *models.Request) []models.NotificationIntent {
	if d == nil || !d.policy.Enabled || new == nil {
		return nil
	}
	var intents []models.NotificationIntent
	add := func(to string, kind models.NotificationKind, extra map[string]interface{}) {
		ctx := baseContext(new)
		for k, v := range extra {
			ctx[k] = v
		}
		intents = append(intents, models.NotificationIntent{To: to, Kind: kind, RequestID: new.ID, Context: ctx})
	}
	r := d.policy.Recipients

	if old == nil {
		add(r.Library, models.NotificationNewRequestLibrary, nil)
		add(r.Bursar, models.NotificationNewRequestBursar, nil)
		return intents
	}

	if old.LibraryStatus == models.LibraryPending && new.LibraryStatus != models.LibraryPending {
		add(r.Bursar, models.NotificationLibraryResolved, map[string]interface{}{
			"oldLibraryStatus": string(old.LibraryStatus),
			"newLibraryStatus": string(new.LibraryStatus),
			"libraryNote":      new.LibraryNote,
		})
	}

	if d.policy.SystemNotices {
		for _, field := range systemNoticeFields {
			before, after := old.Value(field), new.Value(field)
			if before == after {
				continue
			}
			add(r.Operations, models.NotificationSystemNotice, map[string]interface{}{
				"field":    string(field),
				"oldValue": before,
				"newValue": after,
			})
		}
	}

	if new.LibraryStatus != models.LibraryPending && new.BursarStatus != models.BursarPending &&
		new.AcademicStatus == models.AcademicPending {
		add(r.Academic, models.NotificationAcademicReady, map[string]interface{}{
			"libraryStatus": string(new.LibraryStatus),
			"bursarStatus":  string(new.BursarStatus),
		})
	}

	if old.AcademicStatus != new.AcademicStatus {
		switch new.AcademicStatus {
		case models.AcademicCompleted:
			add(r.Processor, models.NotificationReadyForProcessing, nil)
		case models.AcademicCorrectionsRequired:
			add(r.Processor, models.NotificationCorrectionsRequired, map[string]interface{}{
				"academicNote": new.AcademicNote,
			})
		}
	}

	return intents
}

func baseContext(r *models.Request) map[string]interface{} {
	return map[string]interface{}{
		"requestCode":  r.RequestCode,
		"studentId":    r.StudentID,
		"studentEmail": r.StudentEmail,
		"program":      r.Program,
		"status":       string(r.Status),
	}
}
