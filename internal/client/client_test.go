package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/logistics-bills/internal/model"
)

func newSession() *Session {
	return NewSession("token-1", model.Principal{Username: "ops", Role: model.RoleStaff})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, newSession(), WithHTTPClient(srv.Client())), srv
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestListBillsNormalisesRecords(t *testing.T) {
	id := uuid.New()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bills", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"bills": []map[string]interface{}{
				{
					"id":              id.String(),
					"bl_number":       "BL-1",
					"status":          "Completed",
					"display_ctn_fee": "10.50",
					"service_fee":     5,
					"paymentMethod":   "Allinpay",
					"created_at":      "2026-03-10T04:00:00Z",
				},
				{
					"bl_number": nil,
					"ctn_fee":   "abc",
					"status":    "Awaiting Bank In",
				},
			},
			"total":     2,
			"page":      2,
			"page_size": 50,
		})
	})

	page, err := c.ListBills(context.Background(), ListParams{Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Bills, 2)
	assert.EqualValues(t, 2, page.Total)

	first := page.Bills[0]
	assert.Equal(t, id, first.ID)
	assert.Equal(t, model.BillStatusCompleted, first.Status)
	assert.Equal(t, model.Money(1050), first.CTNFee)
	assert.Equal(t, model.Money(500), first.ServiceFee)
	assert.Equal(t, "Allinpay", first.PaymentMethod)
	assert.Equal(t, 2026, first.CreatedAt.Year())

	second := page.Bills[1]
	assert.Equal(t, "", second.BLNumber)
	assert.Equal(t, model.Money(0), second.CTNFee)
	assert.Equal(t, model.BillStatusAwaitingBankIn, second.Status)
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
	})

	_, err := c.ListBills(context.Background(), ListParams{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, ok := c.Session().Token()
	assert.False(t, ok)

	_, err = c.ListBills(context.Background(), ListParams{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRemoteErrorCarriesMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict: reserve is not awaiting settlement"})
	})

	_, err := c.SettleReserve(context.Background(), uuid.New())
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusConflict, remote.StatusCode)
	assert.Equal(t, "conflict: reserve is not awaiting settlement", remote.Message)
}

func TestTransportErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.StatsSummary(context.Background())
	var transport *TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, http.StatusBadGateway, transport.StatusCode)

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	offline := New(srv.URL, newSession())
	_, err = offline.StatsSummary(context.Background())
	require.True(t, errors.As(err, &transport))
	assert.Zero(t, transport.StatusCode)
}

func TestEmailValidationHappensBeforeRequest(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme@example.com", body["to_email"])
		_, hasConfirm := body["ConfirmTo"]
		assert.False(t, hasConfirm)
		writeJSON(w, http.StatusOK, map[string]string{"message": "sent"})
	})

	email := Email{
		BillID:    uuid.New(),
		To:        "acme@example.com",
		ConfirmTo: "acme@example.org",
		Subject:   "Invoice",
		Body:      "Please pay",
	}
	err := c.SendInvoiceEmail(context.Background(), email)
	var validation *ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Contains(t, validation.Fields, "ConfirmTo")

	err = c.SendUniqueNumberEmail(context.Background(), Email{To: "not-an-email"})
	require.True(t, errors.As(err, &validation))
	assert.Contains(t, validation.Fields, "To")
	assert.Contains(t, validation.Fields, "BillID")
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))

	email.ConfirmTo = email.To
	require.NoError(t, c.SendInvoiceEmail(context.Background(), email))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestAccountBillsRecomputesUndatedSummary(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("completed_at"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"bills": []map[string]interface{}{
				{"ctn_fee": "10.50", "service_fee": "5", "payment_method": "Bank", "status": "paid_and_ctn_valid"},
				{"ctn_fee": "20", "service_fee": "0", "payment_method": "Allinpay", "payment_status": "Paid 85%", "status": "paid_and_ctn_valid"},
			},
			"summary": map[string]interface{}{"total_entries": 99},
		})
	})

	report, err := c.AccountBills(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.TotalEntries)
	assert.Equal(t, model.Money(3050), report.Summary.TotalCTNFee)
	assert.Equal(t, model.Money(500), report.Summary.TotalServiceFee)
	assert.Equal(t, model.Money(1550), report.Summary.BankTotal)
	assert.Equal(t, model.Money(1700), report.Summary.Allinpay85Total)
	assert.Equal(t, model.Money(300), report.Summary.ReserveTotal)
}

func TestAccountBillsKeepsDatedSummary(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-03-10", r.URL.Query().Get("completed_at"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"date": "2026-03-10",
			"bills": []map[string]interface{}{
				{"ctn_fee": "100", "payment_method": "Allinpay", "reserve_status": "Settled", "status": "paid_and_ctn_valid"},
			},
			"summary": map[string]interface{}{"total_entries": 1, "total_ctn_fee": "15.00", "reserve_total": "15.00"},
		})
	})

	report, err := c.AccountBills(context.Background(), "2026-03-10", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", report.Date)
	require.Len(t, report.Bills, 1)
	assert.Equal(t, 1, report.Summary.TotalEntries)
	assert.Equal(t, model.Money(1500), report.Summary.ReserveTotal)
	assert.Zero(t, report.Summary.Allinpay85Total)
}

func TestNoSessionFailsWithoutRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, NewSession("", model.Principal{}))
	_, err := c.OutstandingBills(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}
