package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	attendance "academy-cloud/internal/attendance/domain"
	attendancememory "academy-cloud/internal/attendance/infrastructure/memory"
	"academy-cloud/internal/auth"
	masterdata "academy-cloud/internal/masterdata/domain"
	masterdatamemory "academy-cloud/internal/masterdata/infrastructure/memory"
)

const (
	demoSecret       = "academy-demo-secret"
	demoOrganization = "org-demo"
	demoCoach        = "coach-demo"
	demoStudent      = "student-demo"
	demoBatch        = "batch-demo"
)

// seedDemo loads one organization with a coach, a student, a per-attendance
// batch and a month of attendance.
func seedDemo(ctx context.Context, members *masterdatamemory.MemberRepository, batches *masterdatamemory.BatchRepository, marks *attendancememory.Repository) error {
	now := time.Now().UTC()
	for _, member := range []masterdata.Member{
		{OrganizationID: demoOrganization, UserID: demoCoach, Name: "Demo Coach", Role: masterdata.MemberCoach},
		{OrganizationID: demoOrganization, UserID: demoStudent, Name: "Demo Student", Role: masterdata.MemberStudent},
	} {
		member.CreatedAt, member.UpdatedAt = now, now
		if err := members.Save(ctx, &member); err != nil {
			return err
		}
	}

	if err := batches.Save(ctx, &masterdata.Batch{
		ID:             demoBatch,
		OrganizationID: demoOrganization,
		Name:           "Evening Batch",
		PaymentType:    "PER_ATTENDANCE",
		PerSessionFee:  decimal.NewNullDecimal(decimal.NewFromInt(500)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return err
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 28; day += 7 {
		sessionDate := monthStart.AddDate(0, 0, day)
		if err := marks.Mark(ctx, attendance.Record{
			OrganizationID: demoOrganization,
			StudentID:      demoStudent,
			SessionID:      "session-" + sessionDate.Format("20060102"),
			BatchID:        demoBatch,
			SessionDate:    sessionDate,
			IsPresent:      day != 14,
			MarkedBy:       demoCoach,
			MarkedAt:       sessionDate.Add(18 * time.Hour),
		}); err != nil {
			return err
		}
	}
	return nil
}

func logDemoTokens(logger logrus.FieldLogger, secret []byte) {
	for subject, role := range map[string]auth.Role{demoCoach: auth.RoleCoach, demoStudent: auth.RoleStudent} {
		token, err := auth.SignJWT(secret, subject, demoOrganization, role, 24*time.Hour)
		if err != nil {
			logger.WithError(err).Warn("demo token error")
			continue
		}
		logger.WithFields(logrus.Fields{
			"evt":             "demo_token",
			"subject":         subject,
			"organization_id": demoOrganization,
			"token":           token,
		}).Info("demo bearer token")
	}
}
