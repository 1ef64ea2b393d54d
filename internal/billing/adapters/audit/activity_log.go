package audit

import (
	"context"
	"encoding/json"
	"errors"

	"academy-cloud/internal/audit"
	"academy-cloud/internal/auth"
	"academy-cloud/internal/billing/application"
)

const resourceInvoice = "invoice"

// ActivityLog writes ledger activities to the audit log.
type ActivityLog struct {
	logger audit.Logger
}

// NewActivityLog constructs an activity log.
func NewActivityLog(logger audit.Logger) (*ActivityLog, error) {
	if logger == nil {
		return nil, errors.New("activity log: nil audit logger")
	}
	return &ActivityLog{logger: logger}, nil
}

// LogActivity converts the activity and enriches it with request details.
func (l *ActivityLog) LogActivity(ctx context.Context, activity application.Activity) error {
	var metadata json.RawMessage
	if len(activity.Metadata) > 0 {
		raw, err := json.Marshal(activity.Metadata)
		if err != nil {
			return err
		}
		metadata = raw
	}
	info := audit.RequestInfoFromContext(ctx)
	return l.logger.Log(ctx, audit.Entry{
		OrganizationID: activity.OrganizationID,
		Actor:          activity.ActorID,
		Role:           string(auth.RoleFromContext(ctx)),
		Action:         activity.Action,
		ResourceType:   resourceInvoice,
		ResourceID:     activity.InvoiceID,
		SubjectID:      activity.StudentID,
		Description:    activity.Description,
		Metadata:       metadata,
		IP:             info.IP,
		UserAgent:      info.UserAgent,
		CreatedAt:      activity.OccurredAt,
	})
}
