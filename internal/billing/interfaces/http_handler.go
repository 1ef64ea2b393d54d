package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"academy-cloud/internal/auth"
	"academy-cloud/internal/billing/application"
	billing "academy-cloud/internal/billing/domain"
	"academy-cloud/internal/observability/metrics"
)

const maxBodyBytes = 1 << 20

// InvoiceService is the ledger surface served over HTTP.
type InvoiceService interface {
	GenerateInvoice(ctx context.Context, actorID, organizationID string, req application.GenerateRequest) (*billing.Invoice, error)
	RecordPaymentWithRetry(ctx context.Context, actorID, organizationID, invoiceID string, payment billing.Payment) (*billing.Invoice, error)
	GetInvoice(ctx context.Context, actorID, organizationID, invoiceID string) (*billing.Invoice, error)
	ListInvoicesByStudent(ctx context.Context, actorID, organizationID, studentID string, page billing.PageRequest) (billing.Page, error)
	ListInvoices(ctx context.Context, actorID, organizationID string, filter billing.InvoiceFilter, page billing.PageRequest) (billing.Page, error)
	UpdateInvoice(ctx context.Context, actorID, organizationID, invoiceID string, override billing.Override) (*billing.Invoice, error)
	DeleteInvoice(ctx context.Context, actorID, organizationID, invoiceID string) error
	CalculateFees(ctx context.Context, actorID, organizationID, studentID, batchID string, period billing.BillingPeriod) (billing.Calculation, error)
}

// Handler serves the invoice API.
type Handler struct {
	service  InvoiceService
	validate *validator.Validate
	logger   logrus.FieldLogger
	currency string
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger logrus.FieldLogger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCurrency sets the currency printed on exports.
func WithCurrency(currency string) HandlerOption {
	return func(h *Handler) {
		if currency != "" {
			h.currency = currency
		}
	}
}

// NewHandler constructs the invoice handler.
func NewHandler(service InvoiceService, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, errors.New("invoice handler: nil service")
	}
	h := &Handler{
		service:  service,
		validate: newValidator(),
		logger:   logrus.StandardLogger(),
		currency: "INR",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts routes under /api/v1/organizations/{orgID}/invoices.
func (h *Handler) Register(router *mux.Router) {
	r := router.PathPrefix("/api/v1/organizations/{orgID}/invoices").Subrouter()
	r.HandleFunc("", h.listInvoices).Methods(http.MethodGet)
	r.HandleFunc("/generate", h.generateInvoice).Methods(http.MethodPost)
	r.HandleFunc("/calculate-fees", h.calculateFees).Methods(http.MethodGet)
	r.HandleFunc("/student/{studentID}", h.listByStudent).Methods(http.MethodGet)
	r.HandleFunc("/{invoiceID}/payments", h.recordPayment).Methods(http.MethodPost)
	r.HandleFunc("/{invoiceID}/export.pdf", h.exportPDF).Methods(http.MethodGet)
	r.HandleFunc("/{invoiceID}/export.xlsx", h.exportXLSX).Methods(http.MethodGet)
	r.HandleFunc("/{invoiceID}", h.getInvoice).Methods(http.MethodGet)
	r.HandleFunc("/{invoiceID}", h.updateInvoice).Methods(http.MethodPut)
	r.HandleFunc("/{invoiceID}", h.deleteInvoice).Methods(http.MethodDelete)
}

func (h *Handler) generateInvoice(w http.ResponseWriter, r *http.Request) {
	var req GenerateInvoiceRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	invoice, err := h.service.GenerateInvoice(r.Context(), actor(r), mux.Vars(r)["orgID"], cmd)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(invoice))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	payment, err := req.toPayment()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	vars := mux.Vars(r)
	invoice, err := h.service.RecordPaymentWithRetry(r.Context(), actor(r), vars["orgID"], vars["invoiceID"], payment)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	invoice, err := h.service.GetInvoice(r.Context(), actor(r), vars["orgID"], vars["invoiceID"])
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

func (h *Handler) listByStudent(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	vars := mux.Vars(r)
	result, err := h.service.ListInvoicesByStudent(r.Context(), actor(r), vars["orgID"], vars["studentID"], page)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(result))
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	result, err := h.service.ListInvoices(r.Context(), actor(r), mux.Vars(r)["orgID"], filter, page)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(result))
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	var req UpdateInvoiceRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	override, err := req.toOverride()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	vars := mux.Vars(r)
	invoice, err := h.service.UpdateInvoice(r.Context(), actor(r), vars["orgID"], vars["invoiceID"], override)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.DeleteInvoice(r.Context(), actor(r), vars["orgID"], vars["invoiceID"]); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) calculateFees(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	period, err := parsePeriod(query.Get("startDate"), query.Get("endDate"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	calc, err := h.service.CalculateFees(r.Context(), actor(r), mux.Vars(r)["orgID"], query.Get("studentId"), query.Get("batchId"), period)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationResponse(calc))
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", "application/pdf", func(invoice *billing.Invoice) ([]byte, error) {
		return BuildInvoicePDF(invoice, h.currency)
	})
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", func(invoice *billing.Invoice) ([]byte, error) {
		return BuildInvoiceXLSX(invoice, h.currency)
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format, contentType string, render func(*billing.Invoice) ([]byte, error)) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveInvoiceExport(format, result, time.Since(start))
	}()

	vars := mux.Vars(r)
	invoice, err := h.service.GetInvoice(r.Context(), actor(r), vars["orgID"], vars["invoiceID"])
	if err != nil {
		result = metrics.ResultError
		writeError(w, h.logger, r, err)
		return
	}
	data, err := render(invoice)
	if err != nil {
		result = metrics.ResultError
		writeError(w, h.logger, r, billing.Internal("render "+format, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.%s", invoice.ID, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", billing.ErrInvalidArgument, err)
	}
	return validate(h.validate, dst)
}

func actor(r *http.Request) string {
	return auth.SubjectFromContext(r.Context())
}

func parsePage(r *http.Request) (billing.PageRequest, error) {
	query := r.URL.Query()
	page, err := queryInt(query.Get("page"))
	if err != nil {
		return billing.PageRequest{}, fmt.Errorf("%w: page", billing.ErrInvalidArgument)
	}
	size, err := queryInt(query.Get("size"))
	if err != nil {
		return billing.PageRequest{}, fmt.Errorf("%w: size", billing.ErrInvalidArgument)
	}
	return billing.PageRequest{Page: page, Size: size}, nil
}

func queryInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseFilter(r *http.Request) (billing.InvoiceFilter, error) {
	query := r.URL.Query()
	filter := billing.InvoiceFilter{
		StudentID: query.Get("studentId"),
		BatchID:   query.Get("batchId"),
	}
	if value := query.Get("status"); value != "" {
		status, err := billing.ParseInvoiceStatus(value)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	var err error
	if filter.DueFrom, err = billing.ParseDate(query.Get("dueDateStart")); err != nil {
		return filter, err
	}
	if filter.DueTo, err = billing.ParseDate(query.Get("dueDateEnd")); err != nil {
		return filter, err
	}
	return filter, nil
}
