package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/mail"
	"github.com/nurpe/logistics-bills/internal/model"
	"github.com/nurpe/logistics-bills/internal/payment"
)

type AwaitingSettlementResult struct {
	Bills []model.Bill `json:"bills"`
	Total int          `json:"total"`
}

func (s *BillService) AwaitingSettlement(ctx context.Context, principal model.Principal, blNumber string) (*AwaitingSettlementResult, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	bills, err := s.repo.ListAwaitingSettlement(ctx, blNumber)
	if err != nil {
		return nil, err
	}
	normalizeStatuses(bills)
	// The query is a superset guard; the classifier is the rule.
	bills = billing.Select(bills, billing.IsAwaitingSettlement)
	return &AwaitingSettlementResult{Bills: bills, Total: len(bills)}, nil
}

// Complete moves the bill to paid_and_ctn_valid. The transition is one-way
// and only allowed from awaiting_bank_in or a settled Allinpay reserve.
func (s *BillService) Complete(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Bill, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}

	var completed *model.Bill
	err := s.withLock(ctx, "complete", id, func() error {
		bill, err := s.loadBill(ctx, id)
		if err != nil {
			return err
		}
		if billing.IsCompleted(*bill) {
			return fmt.Errorf("%w: bill is already completed", ErrConflict)
		}
		if !billing.CanComplete(*bill) {
			return fmt.Errorf("%w: bill cannot be completed from status %s", ErrConflict, bill.Status)
		}

		fields := map[string]interface{}{
			"status":       string(model.BillStatusCompleted),
			"completed_at": s.now().UTC(),
		}
		if billing.IsAllinpay(*bill) {
			fields["payment_status"] = model.PaymentStatusPaid100
		}
		if err := s.updateUnlessCompleted(ctx, id, fields); err != nil {
			return err
		}
		completed, err = s.loadBill(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("bill_id", id.String()).Str("username", principal.Username).Msg("bill completed")
	s.notifyStaff(ctx, "Bill %s (%s) marked complete by %s", displayBL(*completed), completed.CustomerName, principal.Username)
	return completed, nil
}

func (s *BillService) SettleReserve(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Bill, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}

	var settled *model.Bill
	err := s.withLock(ctx, "settle", id, func() error {
		bill, err := s.loadBill(ctx, id)
		if err != nil {
			return err
		}
		if !billing.CanSettleReserve(*bill) {
			return fmt.Errorf("%w: reserve is not awaiting settlement", ErrConflict)
		}
		if err := s.repo.Update(ctx, id, map[string]interface{}{
			"reserve_status": model.ReserveStatusSettled,
		}); err != nil {
			return mapRepoError(err)
		}
		settled, err = s.loadBill(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("bill_id", id.String()).Str("username", principal.Username).Msg("reserve settled")
	s.notifyStaff(ctx, "Reserve settled for bill %s (%s)", displayBL(*settled), settled.CustomerName)
	return settled, nil
}

// RecordReceipt stores the uploaded receipt name and moves the bill to
// awaiting_bank_in. Customers may only record receipts on their own bills.
func (s *BillService) RecordReceipt(ctx context.Context, principal model.Principal, id uuid.UUID, filename string) (*model.Bill, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: receipt_filename is required", ErrInvalidInput)
	}

	var updated *model.Bill
	err := s.withLock(ctx, "receipt", id, func() error {
		bill, err := s.loadBill(ctx, id)
		if err != nil {
			return err
		}
		if !principal.CanView(*bill) {
			return ErrPermissionDenied
		}
		if !billing.CanRecordReceipt(*bill) {
			return fmt.Errorf("%w: bill is already completed", ErrConflict)
		}
		if err := s.updateUnlessCompleted(ctx, id, map[string]interface{}{
			"receipt_filename":    filename,
			"receipt_uploaded_at": s.now().UTC(),
			"status":              string(model.BillStatusAwaitingBankIn),
		}); err != nil {
			return err
		}
		updated, err = s.loadBill(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type NotificationResult struct {
	BillID    uuid.UUID `json:"bill_id"`
	Phase     string    `json:"phase"`
	Status    string    `json:"status"`
	Duplicate bool      `json:"duplicate,omitempty"`
}

// HandlePaymentNotification applies an Allinpay capture callback. The initial
// 85% capture parks the bill in the settlement queue with an unsettled
// reserve; the final 15% capture settles the reserve. Completion stays a
// staff action. Gateways retry notifications, so a capture the bill has
// already moved past is acknowledged without writing anything.
func (s *BillService) HandlePaymentNotification(ctx context.Context, n payment.Notification) (*NotificationResult, error) {
	ref := strings.TrimSpace(n.TransactionID)
	if ref == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", ErrInvalidInput)
	}
	if status := strings.ToLower(strings.TrimSpace(n.Status)); status != "" && status != "success" && status != "succeeded" {
		return nil, fmt.Errorf("%w: unsupported payment status %q", ErrInvalidInput, n.Status)
	}

	bill, err := s.repo.GetByUniqueNumber(ctx, ref)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no bill for transaction %s", ErrNotFound, ref)
		}
		return nil, err
	}

	phase := n.Phase(bill.Total())
	if phase == "" {
		return nil, fmt.Errorf("%w: amount %s does not match bill total %s", ErrInvalidInput, n.Amount, bill.Total())
	}

	var result *NotificationResult
	err = s.withLock(ctx, "payment", bill.ID, func() error {
		current, err := s.loadBill(ctx, bill.ID)
		if err != nil {
			return err
		}

		accepts := billing.AcceptsInitialCapture
		if phase == payment.PhaseFinal {
			accepts = billing.AcceptsFinalCapture
		}
		if !accepts(*current) {
			bill = current
			result = &NotificationResult{BillID: current.ID, Phase: phase, Status: string(current.Status), Duplicate: true}
			return nil
		}

		fields := map[string]interface{}{"payment_method": model.PaymentMethodAllinpay}
		switch phase {
		case payment.PhaseInitial:
			fields["payment_status"] = model.PaymentStatusPaid85
			fields["reserve_status"] = model.ReserveStatusUnsettled
			fields["allinpay_85_received_at"] = s.now().UTC()
			fields["status"] = string(model.BillStatusAwaitingBankIn)
			if err := s.updateUnlessCompleted(ctx, current.ID, fields); err != nil {
				return err
			}
		case payment.PhaseFinal:
			fields["payment_status"] = model.PaymentStatusPaid100
			fields["reserve_status"] = model.ReserveStatusSettled
			if err := s.repo.Update(ctx, current.ID, fields); err != nil {
				return mapRepoError(err)
			}
		}

		updated, err := s.loadBill(ctx, current.ID)
		if err != nil {
			return err
		}
		bill = updated
		result = &NotificationResult{BillID: updated.ID, Phase: phase, Status: string(updated.Status)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.log.Info().Str("bill_id", bill.ID.String()).Str("phase", phase).Msg("payment notification already applied")
		return result, nil
	}

	s.log.Info().
		Str("bill_id", bill.ID.String()).
		Str("phase", phase).
		Str("amount", n.Amount.String()).
		Msg("payment notification applied")

	if phase == payment.PhaseInitial {
		s.sendPaymentReceivedEmail(ctx, *bill, n.CustomerEmail)
	} else {
		s.notifyStaff(ctx, "Allinpay reserve captured for bill %s (%s)", displayBL(*bill), bill.CustomerName)
	}
	return result, nil
}

// sendPaymentReceivedEmail is best effort; the capture is already recorded.
func (s *BillService) sendPaymentReceivedEmail(ctx context.Context, bill model.Bill, fallback string) {
	to := bill.CustomerEmail
	if to == "" {
		to = strings.TrimSpace(fallback)
	}
	if to == "" {
		return
	}
	msg := mail.Message{
		To:      to,
		Subject: fmt.Sprintf("Payment received for %s", displayBL(bill)),
		Body: fmt.Sprintf(
			"Dear %s,\n\nWe have received %d%% of the payment for bill of lading %s.\nYour CTN number is %s.\n\nThe remaining %d%% reserve will be settled separately.\n",
			bill.CustomerName, billing.AllinpayCapturePercent, displayBL(bill), bill.UniqueNumber, payment.ReservePercent,
		),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("bill_id", bill.ID.String()).Msg("payment confirmation email failed")
	}
}

func displayBL(bill model.Bill) string {
	if bill.BLNumber == "" {
		return bill.ID.String()
	}
	return bill.BLNumber
}
