// Package api is a thin client for the trainingpay HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/netx"
)

const apiPrefix = "/api/v1/training"

// ErrUnauthorized is matched by APIError values carrying 401 or 403.
var ErrUnauthorized = common.ErrorUnauthorized

// APIError is a non-2xx response. Message is the server's "error" field,
// or the raw body when it is not JSON.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// User is the profile as returned by the server. Token fields are only
// set on sign-in.
type User struct {
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

// Registration is the createuser payload.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// ProfileChanges is the updateuser payload; nil fields are left unchanged.
type ProfileChanges struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	Password  *string `json:"password,omitempty"`
}

// Payment is the outcome of createpayment.
type Payment struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	RedirectURL           string `json:"redirectUrl"`
}

// Transaction is one recorded payment.
type Transaction struct {
	TransactionID   string    `json:"transactionId"`
	CourseID        string    `json:"courseId"`
	Amount          int64     `json:"amount"`
	PaymentMode     string    `json:"paymentMode"`
	Membership      bool      `json:"membershipTransaction"`
	TransactionDate time.Time `json:"transactionDate"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	var u User
	body := map[string]string{"username": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/signin", "", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Register(ctx context.Context, r Registration) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodPost, "/users/createuser", "", r, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetUser(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodGet, "/users/getuser", token, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUser(ctx context.Context, token string, ch ProfileChanges) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodPut, "/users/updateuser", token, ch, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes the caller's own account.
func (c *Client) DeleteUser(ctx context.Context, token, email string) error {
	path := "/users/deleteuser?customerId=" + url.QueryEscape(email)
	return c.call(ctx, http.MethodDelete, path, token, nil, nil)
}

// CreatePayment starts a payment; amount is in major units. course may be
// empty.
func (c *Client) CreatePayment(ctx context.Context, token string, amount int64, mobile, course string) (*Payment, error) {
	var p Payment
	body := map[string]any{"amount": amount, "mobileNumber": mobile, "courseId": course}
	if err := c.call(ctx, http.MethodPost, "/payments/createpayment", token, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayments returns the caller's payments, newest first. An empty search
// returns all of them.
func (c *Client) ListPayments(ctx context.Context, token, search string) ([]Transaction, error) {
	var txs []Transaction
	path := "/payments/getpayments?searchInput=" + url.QueryEscape(search)
	if err := c.call(ctx, http.MethodGet, path, token, nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// PaymentsByUser lists payments for userID, which must be the caller's
// email or unique id.
func (c *Client) PaymentsByUser(ctx context.Context, token, userID string) ([]Transaction, error) {
	var txs []Transaction
	path := "/payments/byuser?userId=" + url.QueryEscape(userID)
	if err := c.call(ctx, http.MethodGet, path, token, nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *Client) call(ctx context.Context, method, path, token string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	headers := map[string]string{"Accept": "application/json"}
	if token != "" {
		headers[common.AuthorizationHeaderName] = common.BearerPrefix + token
	}

	status, resp, err := netx.DoJSON(ctx, c.http, method, c.baseURL+apiPrefix+path, body, headers)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if status < 200 || status > 299 {
		return decodeError(status, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: status, Message: msg}
}
