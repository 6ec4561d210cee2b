package billing

import (
	"strings"

	"github.com/nurpe/logistics-bills/internal/model"
)

func IsAllinpay(bill model.Bill) bool {
	return strings.EqualFold(strings.TrimSpace(bill.PaymentMethod), model.PaymentMethodAllinpay)
}

// IsAwaitingSettlement reports whether the bill belongs in the accounting
// review queue: awaiting a bank transfer, or holding an 85% Allinpay capture.
func IsAwaitingSettlement(bill model.Bill) bool {
	if ResolveStatus(string(bill.Status)) == model.BillStatusAwaitingBankIn {
		return true
	}
	return IsAllinpay(bill) && bill.PaymentStatus == model.PaymentStatusPaid85
}

func CanSettleReserve(bill model.Bill) bool {
	return IsAllinpay(bill) && strings.EqualFold(strings.TrimSpace(bill.ReserveStatus), model.ReserveStatusUnsettled)
}

// IsReserveSettled accepts the legacy "Reserve Settled" spelling.
func IsReserveSettled(bill model.Bill) bool {
	switch strings.ToLower(strings.TrimSpace(bill.ReserveStatus)) {
	case "settled", "reserve settled":
		return true
	default:
		return false
	}
}

// CanComplete guards the one-way transition to paid_and_ctn_valid.
func CanComplete(bill model.Bill) bool {
	if IsCompleted(bill) {
		return false
	}
	if ResolveStatus(string(bill.Status)) == model.BillStatusAwaitingBankIn {
		return true
	}
	return IsAllinpay(bill) && IsReserveSettled(bill)
}

// NextStatusOnInvoiceSent returns the status after an invoice email went out.
// Only pending bills advance; later states are never moved backwards.
func NextStatusOnInvoiceSent(current model.BillStatus) model.BillStatus {
	current = ResolveStatus(string(current))
	if current == model.BillStatusPending {
		return model.BillStatusInvoiceSent
	}
	return current
}

// CanRecordReceipt reports whether a payment receipt may move the bill to
// awaiting_bank_in.
func CanRecordReceipt(bill model.Bill) bool {
	switch ResolveStatus(string(bill.Status)) {
	case model.BillStatusPending, model.BillStatusInvoiceSent, model.BillStatusAwaitingBankIn:
		return true
	default:
		return false
	}
}

// AcceptsInitialCapture reports whether an 85% capture notice may still
// change the bill. Payment state only moves forward, so a repeated notice
// after the capture, the reserve settlement or completion changes nothing.
func AcceptsInitialCapture(bill model.Bill) bool {
	if IsCompleted(bill) || IsReserveSettled(bill) {
		return false
	}
	switch bill.PaymentStatus {
	case model.PaymentStatusPaid100:
		return false
	case model.PaymentStatusPaid85:
		return !IsAllinpay(bill) || bill.Allinpay85ReceivedAt == nil
	default:
		return true
	}
}

// AcceptsFinalCapture reports whether a 15% capture notice may still settle
// the reserve.
func AcceptsFinalCapture(bill model.Bill) bool {
	return !IsReserveSettled(bill)
}
