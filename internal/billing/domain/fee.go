package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentModel names the pricing rule of a batch.
type PaymentModel string

const (
	ModelOneTime       PaymentModel = "ONE_TIME"
	ModelMonthly       PaymentModel = "MONTHLY"
	ModelFixedMonthly  PaymentModel = "FIXED_MONTHLY"
	ModelPerSession    PaymentModel = "PER_SESSION"
	ModelPerAttendance PaymentModel = "PER_ATTENDANCE"
)

// ParsePaymentModel normalizes a stored model name.
func ParsePaymentModel(value string) (PaymentModel, error) {
	model := PaymentModel(strings.ToUpper(strings.TrimSpace(value)))
	switch model {
	case ModelOneTime, ModelMonthly, ModelFixedMonthly, ModelPerSession, ModelPerAttendance:
		return model, nil
	}
	return "", fmt.Errorf("%w: unknown payment model %q", ErrInvalidConfiguration, value)
}

// FeeConfig is the fee rule of a batch. Each variant carries only the amount
// it needs.
type FeeConfig interface {
	Model() PaymentModel
	validate() error
}

// OneTimeFee charges a flat amount once per invoice.
type OneTimeFee struct {
	Amount decimal.Decimal
}

// FixedMonthlyFee charges per calendar month touched by the period.
type FixedMonthlyFee struct {
	MonthlyFee decimal.Decimal
}

// PerSessionFee charges once per distinct attended session.
type PerSessionFee struct {
	SessionFee decimal.Decimal
}

// PerAttendanceFee charges once per present attendance record.
type PerAttendanceFee struct {
	SessionFee decimal.Decimal
}

func (OneTimeFee) Model() PaymentModel       { return ModelOneTime }
func (FixedMonthlyFee) Model() PaymentModel  { return ModelFixedMonthly }
func (PerSessionFee) Model() PaymentModel    { return ModelPerSession }
func (PerAttendanceFee) Model() PaymentModel { return ModelPerAttendance }

func (f OneTimeFee) validate() error       { return nonNegative(f.Amount) }
func (f FixedMonthlyFee) validate() error  { return nonNegative(f.MonthlyFee) }
func (f PerSessionFee) validate() error    { return nonNegative(f.SessionFee) }
func (f PerAttendanceFee) validate() error { return nonNegative(f.SessionFee) }

func nonNegative(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidConfiguration
	}
	return nil
}

// NewFeeConfig builds a fee variant from the nullable storage shape of a batch.
// ONE_TIME reads its amount from the per-session slot; MONTHLY is read as FIXED_MONTHLY.
func NewFeeConfig(model string, fixedMonthlyFee, perSessionFee *decimal.Decimal) (FeeConfig, error) {
	parsed, err := ParsePaymentModel(model)
	if err != nil {
		return nil, err
	}
	var fee FeeConfig
	switch parsed {
	case ModelMonthly, ModelFixedMonthly:
		if fixedMonthlyFee == nil {
			return nil, fmt.Errorf("%w: %s requires a fixed monthly fee", ErrInvalidConfiguration, parsed)
		}
		fee = FixedMonthlyFee{MonthlyFee: *fixedMonthlyFee}
	case ModelPerSession:
		if perSessionFee == nil {
			return nil, fmt.Errorf("%w: %s requires a per session fee", ErrInvalidConfiguration, parsed)
		}
		fee = PerSessionFee{SessionFee: *perSessionFee}
	case ModelPerAttendance:
		if perSessionFee == nil {
			return nil, fmt.Errorf("%w: %s requires a per session fee", ErrInvalidConfiguration, parsed)
		}
		fee = PerAttendanceFee{SessionFee: *perSessionFee}
	case ModelOneTime:
		if perSessionFee == nil {
			return nil, fmt.Errorf("%w: %s requires an amount", ErrInvalidConfiguration, parsed)
		}
		fee = OneTimeFee{Amount: *perSessionFee}
	}
	if err := fee.validate(); err != nil {
		return nil, err
	}
	return fee, nil
}

// BatchFeeConfig is the billing view of a batch.
type BatchFeeConfig struct {
	BatchID        string
	OrganizationID string
	Name           string
	Fee            FeeConfig
}

// Validate checks the batch carries a usable fee rule.
func (b BatchFeeConfig) Validate() error {
	if b.Fee == nil {
		return ErrInvalidConfiguration
	}
	return b.Fee.validate()
}
