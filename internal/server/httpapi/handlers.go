package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/logging"
	"github.com/dmitrijs2005/trainingpay/internal/server/auth"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/dmitrijs2005/trainingpay/internal/server/payments"
	"github.com/dmitrijs2005/trainingpay/internal/server/services"
)

const maxBodyBytes = 1 << 16

type UserService interface {
	Login(ctx context.Context, username, password string) (*models.User, error)
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
	GetUser(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, email string, upd services.ProfileUpdate) (*models.User, error)
	Delete(ctx context.Context, email string) error
}

type PaymentService interface {
	Initiate(ctx context.Context, email string, req payments.PaymentRequest) (*payments.PaymentResult, error)
	History(ctx context.Context, email, search string) ([]models.PaymentTransaction, error)
	HistoryForUser(ctx context.Context, email, userID string) ([]models.PaymentTransaction, error)
}

type Handler struct {
	users    UserService
	payments PaymentService
	logger   logging.Logger
}

func NewHandler(users UserService, pays PaymentService, logger logging.Logger) *Handler {
	return &Handler{users: users, payments: pays, logger: logger.With("module", "httpapi")}
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userRequest struct {
	Email     string  `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

type createPaymentRequest struct {
	Amount                int64  `json:"amount"`
	MobileNumber          string `json:"mobileNumber"`
	CourseID              string `json:"courseId"`
	PaymentMode           string `json:"paymentMode"`
	MembershipTransaction bool   `json:"membershipTransaction"`
}

type createPaymentResponse struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	RedirectURL           string `json:"redirectUrl"`
}

type userResponse struct {
	Email       string     `json:"email"`
	UniqueID    string     `json:"uniqueId"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	Token       string     `json:"token,omitempty"`
	TokenExpiry *time.Time `json:"tokenExpiry,omitempty"`
}

func toUserResponse(u *models.User, withToken bool) userResponse {
	resp := userResponse{
		Email:     u.Email,
		UniqueID:  u.UniqueID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Address:   u.Address,
		Role:      u.Role,
		Status:    u.Status,
	}
	if withToken {
		resp.Token = u.Token
		resp.TokenExpiry = u.TokenExpiry
	}
	return resp
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, true))
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), services.RegisterRequest{
		Email:     req.Email,
		Password:  deref(req.Password),
		FirstName: deref(req.FirstName),
		LastName:  deref(req.LastName),
		Phone:     deref(req.Phone),
		Address:   deref(req.Address),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user, false))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	email, ok := h.ownTarget(w, r, r.URL.Query().Get("customerId"))
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, false))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	email, ok := h.ownTarget(w, r, req.Email)
	if !ok {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), email, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
		Password:  req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, false))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	email, ok := h.ownTarget(w, r, r.URL.Query().Get("customerId"))
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), email); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user " + email + " deleted"})
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	subject, _ := auth.SubjectFromContext(r.Context())

	res, err := h.payments.Initiate(r.Context(), subject, payments.PaymentRequest{
		Amount:       req.Amount,
		MobileNumber: req.MobileNumber,
		CourseID:     req.CourseID,
		PaymentMode:  req.PaymentMode,
		Membership:   req.MembershipTransaction,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createPaymentResponse{
		MerchantTransactionID: res.MerchantTransactionID,
		RedirectURL:           res.RedirectURL,
	})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFromContext(r.Context())

	txs, err := h.payments.History(r.Context(), subject, r.URL.Query().Get("searchInput"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// PaymentsByUser accepts the caller's email or unique id as userId.
func (h *Handler) PaymentsByUser(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFromContext(r.Context())

	txs, err := h.payments.HistoryForUser(r.Context(), subject, r.URL.Query().Get("userId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// ownTarget resolves the identity a request acts on. An empty target means
// the caller; any other identity is forbidden.
func (h *Handler) ownTarget(w http.ResponseWriter, r *http.Request, target string) (string, bool) {
	subject, _ := auth.SubjectFromContext(r.Context())
	if target == "" {
		return subject, true
	}
	if target != subject {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return target, true
}

// writeServiceError maps service errors to responses. Unknown identity and
// wrong password on sign-in share one message so responses do not reveal
// which emails are registered.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	isSignIn := r.URL.Path == apiPrefix+"/signin"

	switch {
	case errors.Is(err, common.ErrBlankCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
	case isSignIn && (errors.Is(err, common.ErrUnknownIdentity) || errors.Is(err, common.ErrInvalidCredentials)):
		writeError(w, http.StatusUnauthorized, common.ErrInvalidCredentials.Error())
	case errors.Is(err, common.ErrUnknownIdentity):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusBadRequest, "email already exists")
	case errors.Is(err, payments.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrGatewayTimeout):
		writeError(w, http.StatusGatewayTimeout, "payment gateway timed out")
	case errors.Is(err, common.ErrGatewayRequestFailed), errors.Is(err, common.ErrMalformedGatewayResponse):
		writeError(w, http.StatusBadGateway, "payment gateway error")
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
