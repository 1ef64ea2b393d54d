package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusPending, DeriveStatus(d("0"), d("100")))
	assert.Equal(t, StatusPartiallyPaid, DeriveStatus(d("40"), d("100")))
	assert.Equal(t, StatusPaid, DeriveStatus(d("100"), d("100")))
	assert.Equal(t, StatusPaid, DeriveStatus(d("150"), d("100")))
	assert.Equal(t, StatusPending, DeriveStatus(d("0"), d("0")))
}

func TestCalendarMonths(t *testing.T) {
	p := BillingPeriod{Start: NewDate(2024, 1, 10), End: NewDate(2024, 3, 5)}
	assert.Equal(t, 3, p.CalendarMonths())
	p = BillingPeriod{Start: NewDate(2024, 2, 1), End: NewDate(2024, 2, 29)}
	assert.Equal(t, 1, p.CalendarMonths())
}

func TestDateJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Due Date `json:"due"`
	}{Due: NewDate(2024, 3, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-03-01"}`, string(raw))

	var out struct {
		Due Date `json:"due"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2024-02-29"}`), &out))
	assert.True(t, out.Due.Equal(NewDate(2024, 2, 29)))

	err = json.Unmarshal([]byte(`{"due":"29/02/2024"}`), &out)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInvoiceCloneDoesNotShareItems(t *testing.T) {
	invoice := &Invoice{ID: "i1", Items: []InvoiceItem{{Description: "a", Amount: d("1")}}}
	clone := invoice.Clone()
	clone.Items[0].Description = "changed"
	assert.Equal(t, "a", invoice.Items[0].Description)
}

func TestOverrideApply(t *testing.T) {
	invoice := &Invoice{CalculatedAmount: d("100"), AmountPaid: d("0"), Status: StatusPending}
	paid := d("100")
	status := StatusPaid
	Override{AmountPaid: &paid, Status: &status}.Apply(invoice)
	assert.True(t, invoice.AmountPaid.Equal(paid))
	assert.Equal(t, StatusPaid, invoice.Status)
	assert.True(t, invoice.CalculatedAmount.Equal(d("100")))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(ErrInvoiceNotFound))
	assert.Equal(t, KindConflictRetryable, KindOf(fmt.Errorf("ledger: %w", ErrConcurrentUpdate)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(Internal("load", errors.New("connection reset"))))
	assert.Equal(t, KindForbidden, KindOf(fmt.Errorf("%w: not a coach", ErrForbidden)))
}

func TestInvoiceFilterMatches(t *testing.T) {
	invoice := &Invoice{OrganizationID: "o1", StudentID: "s1", BatchID: "b1", Status: StatusPending, DueDate: NewDate(2024, 3, 1)}
	assert.True(t, InvoiceFilter{OrganizationID: "o1"}.Matches(invoice))
	assert.False(t, InvoiceFilter{OrganizationID: "o2"}.Matches(invoice))
	assert.True(t, InvoiceFilter{OrganizationID: "o1", DueFrom: NewDate(2024, 3, 1), DueTo: NewDate(2024, 3, 1)}.Matches(invoice))
	assert.False(t, InvoiceFilter{OrganizationID: "o1", DueFrom: NewDate(2024, 3, 2)}.Matches(invoice))
	assert.False(t, InvoiceFilter{OrganizationID: "o1", Status: StatusPaid}.Matches(invoice))
}

func TestNewPage(t *testing.T) {
	page := NewPage(nil, PageRequest{Page: 0, Size: 10}, 21)
	assert.Equal(t, 3, page.TotalPages)
	assert.NotNil(t, page.Items)
}

func TestParsePaymentMethod(t *testing.T) {
	for value, want := range map[string]PaymentMethod{
		"":              MethodOther,
		"cash":          MethodCash,
		" Card ":        MethodCard,
		"bank_transfer": MethodBankTransfer,
		"UPI":           MethodUPI,
		"other":         MethodOther,
	} {
		got, err := ParsePaymentMethod(value)
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}

	_, err := ParsePaymentMethod("CHEQUE")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestCheckScale(t *testing.T) {
	assert.NoError(t, CheckScale(d("10")))
	assert.NoError(t, CheckScale(d("10.5")))
	assert.NoError(t, CheckScale(d("10.100")))
	assert.ErrorIs(t, CheckScale(d("10.125")), ErrInvalidArgument)
	assert.ErrorIs(t, CheckScale(d("0.001")), ErrInvalidArgument)
}
