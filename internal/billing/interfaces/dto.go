package interfaces

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"academy-cloud/internal/billing/application"
	billing "academy-cloud/internal/billing/domain"
)

// GenerateInvoiceRequest is the body of POST .../invoices/generate.
type GenerateInvoiceRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	BatchID   string `json:"batchId" validate:"required"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

func (r GenerateInvoiceRequest) toCommand() (application.GenerateRequest, error) {
	period, err := parsePeriod(r.StartDate, r.EndDate)
	if err != nil {
		return application.GenerateRequest{}, err
	}
	return application.GenerateRequest{StudentID: r.StudentID, BatchID: r.BatchID, Period: period}, nil
}

// RecordPaymentRequest is the body of POST .../invoices/{id}/payments.
type RecordPaymentRequest struct {
	Amount      string `json:"amount" validate:"required,numeric"`
	Method      string `json:"paymentMethod" validate:"omitempty,max=32"`
	PaymentDate string `json:"paymentDate" validate:"omitempty,datetime=2006-01-02"`
	Notes       string `json:"notes" validate:"max=500"`
}

func (r RecordPaymentRequest) toPayment() (billing.Payment, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return billing.Payment{}, fmt.Errorf("%w: amount %q", billing.ErrInvalidArgument, r.Amount)
	}
	method, err := billing.ParsePaymentMethod(r.Method)
	if err != nil {
		return billing.Payment{}, err
	}
	paidOn, err := billing.ParseDate(r.PaymentDate)
	if err != nil {
		return billing.Payment{}, err
	}
	return billing.Payment{Amount: amount, Method: method, PaidOn: paidOn, Notes: r.Notes}, nil
}

// UpdateInvoiceRequest is the body of PUT .../invoices/{id}. Omitted fields
// stay unchanged.
type UpdateInvoiceRequest struct {
	CalculatedAmount *string `json:"calculatedAmount" validate:"omitempty,numeric"`
	AmountPaid       *string `json:"amountPaid" validate:"omitempty,numeric"`
	Status           *string `json:"status" validate:"omitempty,oneof=PENDING PARTIALLY_PAID PAID"`
	DueDate          *string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

func (r UpdateInvoiceRequest) toOverride() (billing.Override, error) {
	var override billing.Override
	if r.CalculatedAmount != nil {
		amount, err := decimal.NewFromString(*r.CalculatedAmount)
		if err != nil {
			return override, fmt.Errorf("%w: calculatedAmount", billing.ErrInvalidArgument)
		}
		override.CalculatedAmount = &amount
	}
	if r.AmountPaid != nil {
		amount, err := decimal.NewFromString(*r.AmountPaid)
		if err != nil {
			return override, fmt.Errorf("%w: amountPaid", billing.ErrInvalidArgument)
		}
		override.AmountPaid = &amount
	}
	if r.Status != nil {
		status, err := billing.ParseInvoiceStatus(*r.Status)
		if err != nil {
			return override, err
		}
		override.Status = &status
	}
	if r.DueDate != nil {
		due, err := billing.ParseDate(*r.DueDate)
		if err != nil {
			return override, err
		}
		override.DueDate = &due
	}
	return override, nil
}

func parsePeriod(start, end string) (billing.BillingPeriod, error) {
	from, err := billing.ParseDate(start)
	if err != nil {
		return billing.BillingPeriod{}, err
	}
	to, err := billing.ParseDate(end)
	if err != nil {
		return billing.BillingPeriod{}, err
	}
	return billing.NewBillingPeriod(from, to)
}

// validate runs struct tags and folds failures into ErrInvalidArgument.
func validate(v *validator.Validate, value any) error {
	err := v.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return fmt.Errorf("%w: %s failed %s", billing.ErrInvalidArgument, first.Field(), first.Tag())
	}
	return fmt.Errorf("%w: %v", billing.ErrInvalidArgument, err)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
