package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Calculation is the priced breakdown for one student over one period.
type Calculation struct {
	Total decimal.Decimal `json:"totalAmount"`
	Items []InvoiceItem   `json:"items"`
}

// Calculate prices a student's attendance under the batch fee rule.
// Only present records dated inside the period count. It performs no I/O and
// returns the same result for the same inputs.
func Calculate(studentID string, batch BatchFeeConfig, period BillingPeriod, records []AttendanceRecord) (Calculation, error) {
	if err := period.Validate(); err != nil {
		return Calculation{}, err
	}
	if err := batch.Validate(); err != nil {
		return Calculation{}, err
	}

	var items []InvoiceItem
	switch fee := batch.Fee.(type) {
	case PerAttendanceFee:
		for _, record := range qualifying(studentID, period, records) {
			items = append(items, InvoiceItem{
				SessionID:   record.SessionID,
				SessionDate: record.SessionDate,
				Description: fmt.Sprintf("Attendance for session %s on %s", record.SessionID, record.SessionDate),
				Amount:      fee.SessionFee,
				Kind:        ItemAttendance,
			})
		}
	case PerSessionFee:
		seen := make(map[string]struct{})
		for _, record := range qualifying(studentID, period, records) {
			if _, ok := seen[record.SessionID]; ok {
				continue
			}
			seen[record.SessionID] = struct{}{}
			items = append(items, InvoiceItem{
				SessionID:   record.SessionID,
				SessionDate: record.SessionDate,
				Description: fmt.Sprintf("Session %s on %s", record.SessionID, record.SessionDate),
				Amount:      fee.SessionFee,
				Kind:        ItemSession,
			})
		}
	case FixedMonthlyFee:
		months := period.CalendarMonths()
		items = append(items, InvoiceItem{
			SessionDate: period.Start,
			Description: monthlyDescription(period, months),
			Amount:      fee.MonthlyFee.Mul(decimal.NewFromInt(int64(months))),
			Kind:        ItemFixedMonthly,
		})
	case OneTimeFee:
		items = append(items, InvoiceItem{
			SessionDate: period.Start,
			Description: fmt.Sprintf("One-time fee for %s", batchLabel(batch)),
			Amount:      fee.Amount,
			Kind:        ItemOneTime,
		})
	default:
		return Calculation{}, fmt.Errorf("%w: unsupported fee rule %T", ErrInvalidConfiguration, batch.Fee)
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	if items == nil {
		items = []InvoiceItem{}
	}
	return Calculation{Total: total, Items: items}, nil
}

// qualifying keeps present records inside the period in input order.
// Records are not checked against the batch; the attendance store has no batch column.
func qualifying(studentID string, period BillingPeriod, records []AttendanceRecord) []AttendanceRecord {
	out := make([]AttendanceRecord, 0, len(records))
	for _, record := range records {
		if !record.IsPresent {
			continue
		}
		if studentID != "" && record.StudentID != "" && record.StudentID != studentID {
			continue
		}
		if !period.Contains(record.SessionDate) {
			continue
		}
		out = append(out, record)
	}
	return out
}

func monthlyDescription(period BillingPeriod, months int) string {
	if months == 1 {
		return fmt.Sprintf("Monthly fee for %s %d", period.Start.Month(), period.Start.Year())
	}
	return fmt.Sprintf("Monthly fee for %d months from %s %d to %s %d",
		months, period.Start.Month(), period.Start.Year(), period.End.Month(), period.End.Year())
}

func batchLabel(batch BatchFeeConfig) string {
	if batch.Name != "" {
		return batch.Name
	}
	return "batch " + batch.BatchID
}
