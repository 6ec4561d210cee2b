package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/logistics-bills/internal/model"
)

func TestBillService_SetUniqueNumberEmailsCustomer(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, model.Bill{BLNumber: "BL-1", CustomerName: "Acme", CustomerEmail: "acme@test"})

	bill, err := env.svc.SetUniqueNumber(context.Background(), staff, saved.ID, " CTN-1 ")
	require.NoError(t, err)
	assert.Equal(t, "CTN-1", bill.UniqueNumber)
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, "acme@test", env.mailer.sent[0].To)
	assert.Contains(t, env.mailer.sent[0].Body, "CTN-1")

	env.mailer.err = errors.New("smtp down")
	bill, err = env.svc.SetUniqueNumber(context.Background(), staff, saved.ID, "CTN-2")
	require.NoError(t, err)
	assert.Equal(t, "CTN-2", bill.UniqueNumber)

	_, err = env.svc.SetUniqueNumber(context.Background(), staff, saved.ID, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBillService_GeneratePaymentLinkDefaultsToReserve(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, model.Bill{CustomerEmail: "acme@test", CTNFee: 10000, UniqueNumber: "CTN-1"})

	result, err := env.svc.GeneratePaymentLink(context.Background(), staff, saved.ID, PaymentLinkInput{})
	require.NoError(t, err)
	assert.Equal(t, model.Money(1500), result.Amount)
	assert.Equal(t, "acme@test", env.links.last.CustomerEmail)
	assert.Equal(t, "usd", env.links.last.Currency)
	assert.Equal(t, "Reserve Payment", env.links.last.Description)

	bill, err := env.svc.Get(context.Background(), staff, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, result.PaymentLink, bill.PaymentLink)

	result, err = env.svc.GeneratePaymentLink(context.Background(), staff, saved.ID, PaymentLinkInput{Amount: "42.00", Currency: "hkd"})
	require.NoError(t, err)
	assert.Equal(t, model.Money(4200), result.Amount)
	assert.Equal(t, "hkd", env.links.last.Currency)
}

func TestBillService_GeneratePaymentLinkNeedsAmount(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, model.Bill{})

	_, err := env.svc.GeneratePaymentLink(context.Background(), staff, saved.ID, PaymentLinkInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svc.GeneratePaymentLink(context.Background(), staff, saved.ID, PaymentLinkInput{Amount: "ten"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svc.GeneratePaymentLink(context.Background(), customer, saved.ID, PaymentLinkInput{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestBillService_SendUniqueNumberEmail(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, model.Bill{})

	input := EmailInput{BillID: saved.ID, To: "acme@test", Subject: "CTN", Body: "<p>CTN-1</p>"}
	require.NoError(t, env.svc.SendUniqueNumberEmail(context.Background(), staff, input))
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, "<p>CTN-1</p>", env.mailer.sent[0].Body)

	err := env.svc.SendUniqueNumberEmail(context.Background(), staff, EmailInput{BillID: saved.ID, To: "acme@test"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	input.BillID = uuid.New()
	assert.ErrorIs(t, env.svc.SendUniqueNumberEmail(context.Background(), staff, input), ErrNotFound)

	env.mailer.err = errors.New("smtp down")
	input.BillID = saved.ID
	assert.ErrorIs(t, env.svc.SendUniqueNumberEmail(context.Background(), staff, input), ErrDelivery)
}

func TestBillService_SendInvoiceEmailAdvancesPending(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, model.Bill{BLNumber: "BL/7"})

	bill, err := env.svc.SendInvoiceEmail(context.Background(), staff, EmailInput{
		BillID: saved.ID, To: "acme@test", Subject: "Invoice", Body: "Please pay",
	})
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusInvoiceSent, bill.Status)
	assert.Equal(t, "invoice_BL_7.pdf", bill.InvoiceFilename)

	require.Len(t, env.mailer.sent, 1)
	msg := env.mailer.sent[0]
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invoice_BL_7.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Equal(t, "%PDF invoice BL/7", string(msg.Attachments[0].Data))
}

func TestBillService_SendInvoiceEmailNeverMovesBackwards(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, model.Bill{Status: model.BillStatusAwaitingBankIn})

	bill, err := env.svc.SendInvoiceEmail(context.Background(), staff, EmailInput{
		BillID: saved.ID, To: "acme@test", Subject: "Invoice", Body: "Reminder",
	})
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusAwaitingBankIn, bill.Status)
}

func TestBillService_SendInvoiceEmailFailureKeepsStatus(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, model.Bill{})
	env.mailer.err = errors.New("connection refused")

	_, err := env.svc.SendInvoiceEmail(context.Background(), staff, EmailInput{
		BillID: saved.ID, To: "acme@test", Subject: "Invoice", Body: "Please pay",
	})
	assert.ErrorIs(t, err, ErrDelivery)

	bill, err := env.svc.Get(context.Background(), staff, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusPending, bill.Status)
	assert.Empty(t, bill.InvoiceFilename)
}

func TestBillService_InvoicePDF(t *testing.T) {
	env := newTestEnv(t)
	saved := env.seed(t, model.Bill{BLNumber: "BL-1", CustomerUsername: "acme"})

	file, err := env.svc.InvoicePDF(context.Background(), customer, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoice_BL-1.pdf", file.FileName)
	assert.Equal(t, "application/pdf", file.ContentType)

	_, err = env.svc.InvoicePDF(context.Background(), stranger, saved.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestBillService_AccountBillsSummary(t *testing.T) {
	env := newTestEnv(t)
	completedAt := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	env.seed(t, model.Bill{
		BLNumber:      "BL-AIP",
		PaymentMethod: "Allinpay",
		ReserveStatus: model.ReserveStatusSettled,
		CTNFee:        1500,
		ServiceFee:    500,
		Status:        model.BillStatusCompleted,
	})
	env.seed(t, model.Bill{
		BLNumber:   "BL-BANK",
		CTNFee:     1000,
		ServiceFee: 0,
		Status:     model.BillStatus(model.LegacyStatusCompleted),
	})
	env.seed(t, model.Bill{BLNumber: "BL-OPEN", CTNFee: 9900})
	capturedAt := time.Date(2026, 3, 9, 3, 0, 0, 0, time.UTC)
	require.NoError(t, env.repo.Update(context.Background(), mustFind(t, env, "BL-AIP"), map[string]interface{}{
		"completed_at":            completedAt,
		"allinpay_85_received_at": capturedAt,
	}))

	report, err := env.svc.AccountBills(context.Background(), staff, "", "")
	require.NoError(t, err)
	assert.Len(t, report.Bills, 2)
	assert.Equal(t, 2, report.Summary.TotalEntries)
	assert.Equal(t, model.Money(2500), report.Summary.TotalCTNFee)
	assert.Equal(t, model.Money(500), report.Summary.TotalServiceFee)
	assert.Equal(t, model.Money(1000), report.Summary.BankTotal)
	assert.Equal(t, model.Money(1700), report.Summary.Allinpay85Total)
	assert.Equal(t, model.Money(300), report.Summary.ReserveTotal)

	report, err = env.svc.AccountBills(context.Background(), staff, "2026-03-10", "")
	require.NoError(t, err)
	require.Len(t, report.Bills, 1)
	assert.Equal(t, "BL-AIP", report.Bills[0].BLNumber)
	assert.Equal(t, "2026-03-10", report.Date)
	assert.Equal(t, model.Money(0), report.Summary.Allinpay85Total)
	assert.Equal(t, model.Money(300), report.Summary.ReserveTotal)

	report, err = env.svc.AccountBills(context.Background(), staff, "2026-03-09", "")
	require.NoError(t, err)
	require.Len(t, report.Bills, 1)
	assert.Equal(t, model.Money(1700), report.Summary.Allinpay85Total)
	assert.Equal(t, model.Money(0), report.Summary.ReserveTotal)

	_, err = env.svc.AccountBills(context.Background(), customer, "", "")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestBillService_ExportAccountBills(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, model.Bill{Status: model.BillStatusCompleted, CTNFee: 100})

	file, err := env.svc.ExportAccountBills(context.Background(), staff, "2026-03-10", "")
	require.NoError(t, err)
	assert.Equal(t, "account_bills_2026-03-10.xlsx", file.FileName)
	assert.Equal(t, contentTypeXLSX, file.ContentType)

	file, err = env.svc.ExportAccountBills(context.Background(), staff, "", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "account_bills_all.pdf", file.FileName)

	_, err = env.svc.ExportAccountBills(context.Background(), staff, "", "csv")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBillService_StatsAndOutstanding(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, model.Bill{Status: model.BillStatusCompleted, ServiceFee: 1000})
	env.seed(t, model.Bill{ServiceFee: 250, BLNumber: "BL-OPEN"})

	stats, err := env.svc.StatsSummary(context.Background(), staff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalBills)
	assert.EqualValues(t, 1, stats.CompletedBills)
	assert.Equal(t, model.Money(1250), stats.TotalInvoiceAmount)
	assert.Equal(t, model.Money(250), stats.TotalPaymentOutstanding)

	outstanding, err := env.svc.OutstandingBills(context.Background(), staff)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, "BL-OPEN", outstanding[0].BLNumber)

	_, err = env.svc.StatsSummary(context.Background(), customer)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestBillService_BillsByDate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, model.Bill{CTNFee: 100, ServiceFee: 50, CreatedAt: time.Date(2026, 3, 9, 16, 30, 0, 0, time.UTC)})
	env.seed(t, model.Bill{CTNFee: 999, CreatedAt: time.Date(2026, 3, 9, 15, 30, 0, 0, time.UTC)})

	daily, err := env.svc.BillsByDate(context.Background(), staff, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, daily.Summary.TotalEntries)
	assert.Equal(t, model.Money(100), daily.Summary.TotalCTNFee)
	assert.Equal(t, model.Money(50), daily.Summary.TotalServiceFee)
	assert.Len(t, daily.Entries, 1)

	_, err = env.svc.BillsByDate(context.Background(), staff, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBillService_DailyStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hkMorning := time.Date(2026, 3, 9, 17, 0, 0, 0, time.UTC)
	env.seed(t, model.Bill{BLNumber: "BL-A", ServiceFee: 700, CreatedAt: hkMorning})
	env.seed(t, model.Bill{BLNumber: "BL-B", ServiceFee: 300, Status: model.BillStatusAwaitingBankIn})
	env.seed(t, model.Bill{BLNumber: "BL-OLD", ServiceFee: 9900, CreatedAt: time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)})

	files, err := env.svc.FilesByDate(ctx, staff, "2026-03-10")
	require.NoError(t, err)
	assert.EqualValues(t, 2, files.FilesCreated)

	payments, err := env.svc.PaymentsByDate(ctx, staff, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, model.Money(1000), payments.PaymentsReceived)

	completed, err := env.svc.CompletedToday(ctx, staff)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", completed.Date)
	assert.Zero(t, completed.CompletedToday)

	_, err = env.svc.Complete(ctx, staff, mustFind(t, env, "BL-B"))
	require.NoError(t, err)
	completed, err = env.svc.CompletedToday(ctx, staff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, completed.CompletedToday)

	_, err = env.svc.FilesByDate(ctx, staff, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.PaymentsByDate(ctx, staff, "10/03/2026")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.CompletedToday(ctx, customer)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestBillService_SendContactMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.SendContactMessage(ctx, ContactInput{
		Name:    "Jo",
		Email:   "jo@example.org",
		Message: "Where is my container?",
	}))
	require.Len(t, env.mailer.sent, 1)
	msg := env.mailer.sent[0]
	assert.Equal(t, "desk@logistics.test", msg.To)
	assert.Equal(t, "jo@example.org", msg.ReplyTo)
	assert.Contains(t, msg.Body, "Where is my container?")

	err := env.svc.SendContactMessage(ctx, ContactInput{Name: "Jo", Email: "jo@example.org"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	err = env.svc.SendContactMessage(ctx, ContactInput{Name: "Jo", Email: "not an email", Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	env.mailer.err = errors.New("smtp down")
	err = env.svc.SendContactMessage(ctx, ContactInput{Name: "Jo", Email: "jo@example.org", Message: "hi"})
	assert.ErrorIs(t, err, ErrDelivery)

	env.mailer.err = nil
	env.svc.contactTo = ""
	err = env.svc.SendContactMessage(ctx, ContactInput{Name: "Jo", Email: "jo@example.org", Message: "hi"})
	assert.ErrorIs(t, err, ErrDelivery)
}

func mustFind(t *testing.T, env *testEnv, blNumber string) uuid.UUID {
	t.Helper()
	bills, err := env.repo.Search(context.Background(), model.BillSearch{BLNumber: blNumber})
	require.NoError(t, err)
	require.Len(t, bills, 1)
	return bills[0].ID
}
