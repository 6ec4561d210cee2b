package service

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/mail"
	"github.com/nurpe/logistics-bills/internal/model"
	"github.com/nurpe/logistics-bills/internal/payment"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const (
	ExportFormatXLSX = "xlsx"
	ExportFormatPDF  = "pdf"
)

// SetUniqueNumber stores the CTN number and tells the customer about it.
// The number is kept even when the email cannot be delivered.
func (s *BillService) SetUniqueNumber(ctx context.Context, principal model.Principal, id uuid.UUID, uniqueNumber string) (*model.Bill, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	uniqueNumber = strings.TrimSpace(uniqueNumber)
	if uniqueNumber == "" {
		return nil, fmt.Errorf("%w: unique_number is required", ErrInvalidInput)
	}

	var bill *model.Bill
	err := s.withLock(ctx, "unique_number", id, func() error {
		if err := s.repo.Update(ctx, id, map[string]interface{}{"unique_number": uniqueNumber}); err != nil {
			return mapRepoError(err)
		}
		var err error
		bill, err = s.loadBill(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if bill.CustomerEmail == "" {
		return bill, nil
	}
	msg := mail.Message{
		To:      bill.CustomerEmail,
		Subject: "Your CTN number",
		Body:    fmt.Sprintf("Dear %s,\n\nYour CTN number for bill of lading %s is %s.\n", bill.CustomerName, displayBL(*bill), uniqueNumber),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("bill_id", id.String()).Msg("unique number email failed")
	}
	return bill, nil
}

type PaymentLinkInput struct {
	Amount        interface{} `json:"amount"`
	Currency      string      `json:"currency"`
	CustomerEmail string      `json:"customer_email"`
	Description   string      `json:"description"`
}

type PaymentLinkResult struct {
	PaymentLink string      `json:"payment_link"`
	Amount      model.Money `json:"amount"`
}

// GeneratePaymentLink stores a checkout link on the bill. Without an explicit
// amount the link requests the reserve share of the bill total.
func (s *BillService) GeneratePaymentLink(ctx context.Context, principal model.Principal, id uuid.UUID, input PaymentLinkInput) (*PaymentLinkResult, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}

	var amount model.Money
	if input.Amount != nil {
		parsed, err := model.ParseMoney(input.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: amount: %v", ErrInvalidInput, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
		}
		amount = parsed
	}

	var result *PaymentLinkResult
	err := s.withLock(ctx, "payment_link", id, func() error {
		bill, err := s.loadBill(ctx, id)
		if err != nil {
			return err
		}

		linkAmount := amount
		if linkAmount == 0 {
			linkAmount = bill.Total().Percent(payment.ReservePercent)
		}
		if linkAmount <= 0 {
			return fmt.Errorf("%w: bill has no fees to charge", ErrInvalidInput)
		}

		email := strings.TrimSpace(input.CustomerEmail)
		if email == "" {
			email = bill.CustomerEmail
		}
		description := strings.TrimSpace(input.Description)
		if description == "" {
			description = "Reserve Payment"
		}
		currency := strings.TrimSpace(input.Currency)
		if currency == "" {
			currency = s.currency
		}

		link, err := s.links.GenerateLink(ctx, payment.LinkRequest{
			BillID:        bill.ID,
			BLNumber:      bill.BLNumber,
			UniqueNumber:  bill.UniqueNumber,
			CustomerEmail: email,
			Description:   description,
			Amount:        linkAmount,
			Currency:      currency,
		})
		if err != nil {
			return fmt.Errorf("%w: payment link: %v", ErrDelivery, err)
		}
		if err := s.repo.Update(ctx, id, map[string]interface{}{"payment_link": link}); err != nil {
			return mapRepoError(err)
		}
		result = &PaymentLinkResult{PaymentLink: link, Amount: linkAmount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("bill_id", id.String()).Str("amount", result.Amount.String()).Msg("payment link generated")
	return result, nil
}

// EmailInput is an already rendered message. Subject and body are passed
// through untouched.
type EmailInput struct {
	BillID  uuid.UUID
	To      string
	Subject string
	Body    string
}

func (in EmailInput) validate() error {
	if in.BillID == uuid.Nil {
		return fmt.Errorf("%w: bill_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.To) == "" || strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Body) == "" {
		return fmt.Errorf("%w: to_email, subject and body are required", ErrInvalidInput)
	}
	return nil
}

func (s *BillService) SendUniqueNumberEmail(ctx context.Context, principal model.Principal, input EmailInput) error {
	if !principal.IsStaff() {
		return ErrPermissionDenied
	}
	if err := input.validate(); err != nil {
		return err
	}
	if _, err := s.loadBill(ctx, input.BillID); err != nil {
		return err
	}

	msg := mail.Message{To: strings.TrimSpace(input.To), Subject: input.Subject, Body: input.Body}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

// SendInvoiceEmail mails the invoice PDF and advances a pending bill to
// invoice_sent. The status is only written after delivery succeeded.
func (s *BillService) SendInvoiceEmail(ctx context.Context, principal model.Principal, input EmailInput) (*model.Bill, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var updated *model.Bill
	err := s.withLock(ctx, "invoice", input.BillID, func() error {
		bill, err := s.loadBill(ctx, input.BillID)
		if err != nil {
			return err
		}

		issuedAt := s.now()
		content, err := s.documents.Invoice(*bill, issuedAt)
		if err != nil {
			return err
		}
		filename := invoiceFileName(*bill)

		msg := mail.Message{
			To:      strings.TrimSpace(input.To),
			Subject: input.Subject,
			Body:    input.Body,
			Attachments: []mail.Attachment{{
				Filename:    filename,
				ContentType: contentTypePDF,
				Data:        content,
			}},
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("%w: %v", ErrDelivery, err)
		}

		fields := map[string]interface{}{"invoice_filename": filename}
		if next := billing.NextStatusOnInvoiceSent(bill.Status); next != bill.Status {
			fields["status"] = string(next)
		}
		if err := s.repo.Update(ctx, bill.ID, fields); err != nil {
			return mapRepoError(err)
		}
		updated, err = s.loadBill(ctx, bill.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("bill_id", input.BillID.String()).Str("to", input.To).Msg("invoice email sent")
	return updated, nil
}

func (s *BillService) InvoicePDF(ctx context.Context, principal model.Principal, id uuid.UUID) (*FileResult, error) {
	bill, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	content, err := s.documents.Invoice(*bill, s.now())
	if err != nil {
		return nil, err
	}
	return &FileResult{FileName: invoiceFileName(*bill), ContentType: contentTypePDF, Content: content}, nil
}

// AccountBills lists completed bills with their settlement summary. The
// optional date narrows to bills completed, or captured through Allinpay,
// on that business day, and books each Allinpay share on its own day.
func (s *BillService) AccountBills(ctx context.Context, principal model.Principal, date, blNumber string) (*model.AccountReport, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	from, to, err := s.dayRange(date)
	if err != nil {
		return nil, err
	}
	bills, err := s.repo.ListCompleted(ctx, from, to, blNumber)
	if err != nil {
		return nil, err
	}
	normalizeStatuses(bills)

	summary := billing.Summarize(bills)
	if from != nil && to != nil {
		bills = billing.Select(bills, func(bill model.Bill) bool {
			return billing.BooksIn(bill, *from, *to)
		})
		summary = billing.SummarizeBetween(bills, *from, *to)
	}
	return &model.AccountReport{
		Date:    strings.TrimSpace(date),
		Bills:   bills,
		Summary: summary,
	}, nil
}

func (s *BillService) ExportAccountBills(ctx context.Context, principal model.Principal, date, format string) (*FileResult, error) {
	report, err := s.AccountBills(ctx, principal, date, "")
	if err != nil {
		return nil, err
	}

	suffix := report.Date
	if suffix == "" {
		suffix = "all"
	}
	base := "account_bills_" + suffix

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", ExportFormatXLSX:
		content, err := s.workbooks.AccountWorkbook(*report)
		if err != nil {
			return nil, err
		}
		return &FileResult{FileName: base + ".xlsx", ContentType: contentTypeXLSX, Content: content}, nil
	case ExportFormatPDF:
		content, err := s.documents.AccountReport(*report)
		if err != nil {
			return nil, err
		}
		return &FileResult{FileName: base + ".pdf", ContentType: contentTypePDF, Content: content}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", ErrInvalidInput, format)
	}
}

func (s *BillService) StatsSummary(ctx context.Context, principal model.Principal) (model.StatsSummary, error) {
	if !principal.IsStaff() {
		return model.StatsSummary{}, ErrPermissionDenied
	}
	return s.repo.Stats(ctx)
}

func (s *BillService) OutstandingBills(ctx context.Context, principal model.Principal) ([]model.OutstandingBill, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	return s.repo.ListOutstanding(ctx)
}

// BillsByDate summarises the bills created on one business day.
func (s *BillService) BillsByDate(ctx context.Context, principal model.Principal, date string) (*model.DailyBills, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	from, to, err := s.requiredDay(date)
	if err != nil {
		return nil, err
	}
	bills, err := s.repo.Search(ctx, model.BillSearch{CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		return nil, err
	}
	normalizeStatuses(bills)
	return &model.DailyBills{
		Date:    strings.TrimSpace(date),
		Summary: billing.Summarize(bills),
		Entries: bills,
	}, nil
}

type FilesCreated struct {
	Date         string `json:"date"`
	FilesCreated int64  `json:"files_created"`
}

type CompletedToday struct {
	Date           string `json:"date"`
	CompletedToday int64  `json:"completed_today"`
}

type PaymentsReceived struct {
	Date             string      `json:"date"`
	PaymentsReceived model.Money `json:"payments_received"`
}

func (s *BillService) FilesByDate(ctx context.Context, principal model.Principal, date string) (*FilesCreated, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	from, to, err := s.requiredDay(date)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountCreated(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &FilesCreated{Date: strings.TrimSpace(date), FilesCreated: count}, nil
}

// CompletedToday counts bills completed so far on the current business day.
func (s *BillService) CompletedToday(ctx context.Context, principal model.Principal) (*CompletedToday, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	today := s.now().In(s.loc).Format("2006-01-02")
	from, to, err := s.requiredDay(today)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountCompleted(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &CompletedToday{Date: today, CompletedToday: count}, nil
}

// PaymentsByDate totals the service fees of bills created on the day.
func (s *BillService) PaymentsByDate(ctx context.Context, principal model.Principal, date string) (*PaymentsReceived, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	from, to, err := s.requiredDay(date)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.SumServiceFeeCreated(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &PaymentsReceived{Date: strings.TrimSpace(date), PaymentsReceived: total}, nil
}

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SendContactMessage relays a website contact form to the office mailbox.
// Replies go to the visitor.
func (s *BillService) SendContactMessage(ctx context.Context, input ContactInput) error {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	message := strings.TrimSpace(input.Message)
	if name == "" || email == "" || message == "" {
		return fmt.Errorf("%w: name, email and message are required", ErrInvalidInput)
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidInput, email)
	}
	if s.contactTo == "" {
		return fmt.Errorf("%w: contact mailbox not configured", ErrDelivery)
	}

	msg := mail.Message{
		To:      s.contactTo,
		ReplyTo: email,
		Subject: "New Contact Form Submission",
		Body:    fmt.Sprintf("Name: %s\nEmail: %s\n\nMessage:\n%s\n", name, email, message),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	s.log.Info().Str("from", email).Msg("contact message relayed")
	return nil
}

// requiredDay is dayRange for endpoints where the date is mandatory.
func (s *BillService) requiredDay(date string) (time.Time, time.Time, error) {
	from, to, err := s.dayRange(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	return *from, *to, nil
}

func invoiceFileName(bill model.Bill) string {
	ref := bill.BLNumber
	if ref == "" {
		ref = bill.ID.String()
	}
	ref = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, ref)
	return "invoice_" + ref + ".pdf"
}
