package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/wicaksn/koperasi-engine/internal/domain"
	"github.com/wicaksn/koperasi-engine/internal/service"
	customError "github.com/wicaksn/koperasi-engine/pkg/errors"
	"github.com/wicaksn/koperasi-engine/pkg/response"
)

type LoanHandler struct {
	service   *service.InstallmentService
	validator *validator.Validate
}

func NewLoanHandler(service *service.InstallmentService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: validator.New(),
	}
}

// CreateLoan handles POST /loans: creates the loan and its full schedule.
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	loan, schedule, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, domain.CreateLoanResponse{Loan: loan, Schedule: schedule})
}

// GetSchedule handles GET /loans/{loanId}/schedule: returns the schedule
// with statuses projected at request time plus a summary.
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	schedule, summary, err := h.service.GetSchedule(r.Context(), loanID, time.Now())
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{
		LoanID:   loanID,
		Schedule: schedule,
		Summary:  summary,
	})
}

// GetOutstanding handles GET /loans/{loanId}/outstanding.
func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	outstanding, err := h.service.Outstanding(r.Context(), loanID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.OutstandingResponse{LoanID: loanID, Outstanding: outstanding})
}

// MarkPaid handles POST /loans/{loanId}/installments/{sequence}/payment.
func (h *LoanHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	loanID, sequence, ok := installmentVars(w, r)
	if !ok {
		return
	}

	var request domain.MarkPaidRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			response.BadRequest(w, "invalid request body", err)
			return
		}
	}

	inst, err := h.service.MarkPaid(r.Context(), loanID, sequence, request.PaidAt)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, inst)
}

// AttachProof handles POST /loans/{loanId}/installments/{sequence}/proof.
func (h *LoanHandler) AttachProof(w http.ResponseWriter, r *http.Request) {
	loanID, sequence, ok := installmentVars(w, r)
	if !ok {
		return
	}

	var request domain.AttachProofRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	inst, err := h.service.AttachProof(r.Context(), loanID, sequence, request.ProofRef)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, inst)
}

func installmentVars(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	vars := mux.Vars(r)
	sequence, err := strconv.Atoi(vars["sequence"])
	if err != nil || sequence < 1 {
		response.BadRequest(w, "sequence must be a positive integer", err)
		return "", 0, false
	}
	return vars["loanId"], sequence, true
}

// writeBusinessError maps the error taxonomy onto HTTP statuses.
func writeBusinessError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, customError.ErrInvalidSchedule):
		status = http.StatusBadRequest
	case errors.Is(err, customError.ErrPaymentConflict),
		errors.Is(err, customError.ErrLoanAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, customError.ErrLoanNotFound),
		errors.Is(err, customError.ErrInstallmentNotFound),
		errors.Is(err, customError.ErrChatMessageNotFound):
		status = http.StatusNotFound
	}

	var businessErr *customError.BusinessError
	if errors.As(err, &businessErr) {
		response.BusinessError(w, status, businessErr.Code, businessErr.Message)
		return
	}

	response.Error(w, status, "request failed", err)
}
