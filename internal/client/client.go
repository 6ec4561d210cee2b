// Package client talks to the bill service REST API on behalf of operators.
// Every record is normalised into model.Bill right after it is fetched.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/model"
)

type Client struct {
	baseURL  string
	http     *http.Client
	session  *Session
	validate *validator.Validate
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(baseURL string, session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		session:  session,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

type ListParams struct {
	Page     int
	PageSize int
	BLNumber string
	Status   string
	Date     string
}

type Page struct {
	Bills    []model.Bill
	Total    int64
	Page     int
	PageSize int
}

type listEnvelope struct {
	Bills    []wireRecord `json:"bills"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

func (c *Client) ListBills(ctx context.Context, params ListParams) (*Page, error) {
	query := url.Values{}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(params.PageSize))
	}
	if params.BLNumber != "" {
		query.Set("bl_number", params.BLNumber)
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if params.Date != "" {
		query.Set("date", params.Date)
	}

	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/bills", query, nil, &env); err != nil {
		return nil, err
	}
	bills, err := normalizeBills(env.Bills)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return &Page{Bills: bills, Total: env.Total, Page: env.Page, PageSize: env.PageSize}, nil
}

// AwaitingSettlement returns the settlement queue. The classifier is
// reapplied locally so an older service that returns a wider list still
// yields the right queue.
func (c *Client) AwaitingSettlement(ctx context.Context, blNumber string) ([]model.Bill, error) {
	query := url.Values{}
	if blNumber != "" {
		query.Set("bl_number", blNumber)
	}

	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/bills/awaiting_bank_in", query, nil, &env); err != nil {
		return nil, err
	}
	bills, err := normalizeBills(env.Bills)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return billing.Select(bills, billing.IsAwaitingSettlement), nil
}

func (c *Client) GetBill(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	return c.billRequest(ctx, http.MethodGet, "/api/bills/"+id.String(), nil)
}

// BillUpdate is the partial payload for PUT /api/bills/{id}, keyed by the
// wire field names.
type BillUpdate map[string]interface{}

func (c *Client) UpdateBill(ctx context.Context, id uuid.UUID, update BillUpdate) (*model.Bill, error) {
	if len(update) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"update": "is empty"}}
	}
	return c.billRequest(ctx, http.MethodPut, "/api/bills/"+id.String(), update)
}

func (c *Client) DeleteBill(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/bill/"+id.String(), nil, nil, nil)
}

func (c *Client) CompleteBill(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	return c.billRequest(ctx, http.MethodPost, "/api/bill/"+id.String()+"/complete", nil)
}

func (c *Client) SettleReserve(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	return c.billRequest(ctx, http.MethodPost, "/api/bill/"+id.String()+"/settle_reserve", nil)
}

// Email is an operator-composed message. ConfirmTo must repeat the
// recipient.
type Email struct {
	BillID    uuid.UUID `json:"bill_id" validate:"required"`
	To        string    `json:"to_email" validate:"required,email"`
	ConfirmTo string    `json:"-" validate:"required,eqfield=To"`
	Subject   string    `json:"subject" validate:"required"`
	Body      string    `json:"body" validate:"required"`
}

func (c *Client) SendUniqueNumberEmail(ctx context.Context, email Email) error {
	if err := c.validate.Struct(email); err != nil {
		return newValidationError(err)
	}
	return c.do(ctx, http.MethodPost, "/api/send_unique_number_email", nil, email, nil)
}

func (c *Client) SendInvoiceEmail(ctx context.Context, email Email) error {
	if err := c.validate.Struct(email); err != nil {
		return newValidationError(err)
	}
	return c.do(ctx, http.MethodPost, "/api/send_invoice_email", nil, email, nil)
}

type accountEnvelope struct {
	Date    string        `json:"date"`
	Bills   []wireRecord  `json:"bills"`
	Summary model.Summary `json:"summary"`
}

// AccountBills fetches completed bills. An undated report's summary is
// recomputed from the normalised records; a dated one books Allinpay shares
// by the server's business day, so its summary is taken as sent.
func (c *Client) AccountBills(ctx context.Context, date, blNumber string) (*model.AccountReport, error) {
	query := url.Values{}
	if date != "" {
		query.Set("completed_at", date)
	}
	if blNumber != "" {
		query.Set("bl_number", blNumber)
	}

	var env accountEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/account_bills", query, nil, &env); err != nil {
		return nil, err
	}
	bills, err := normalizeBills(env.Bills)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	summary := env.Summary
	if date == "" {
		summary = billing.Summarize(bills)
	}
	return &model.AccountReport{Date: env.Date, Bills: bills, Summary: summary}, nil
}

func (c *Client) StatsSummary(ctx context.Context) (*model.StatsSummary, error) {
	var stats model.StatsSummary
	if err := c.do(ctx, http.MethodGet, "/api/stats/summary", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) OutstandingBills(ctx context.Context) ([]model.OutstandingBill, error) {
	var env struct {
		Bills []model.OutstandingBill `json:"bills"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/stats/outstanding_bills", nil, nil, &env); err != nil {
		return nil, err
	}
	return env.Bills, nil
}

func (c *Client) billRequest(ctx context.Context, method, path string, body interface{}) (*model.Bill, error) {
	var record wireRecord
	if err := c.do(ctx, method, path, nil, body, &record); err != nil {
		return nil, err
	}
	bill, err := normalizeBill(record)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return &bill, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	token, ok := c.session.Token()
	if !ok {
		return ErrUnauthenticated
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.session.Invalidate()
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if msg := errorMessage(payload); msg != "" {
			return &RemoteError{StatusCode: resp.StatusCode, Message: msg}
		}
		return &TransportError{StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorMessage(payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
