// Package billing holds the bill status and settlement rules shared by the
// service and its clients. Everything here is a pure function of its input.
package billing

import (
	"strings"

	"github.com/nurpe/logistics-bills/internal/model"
)

var statusByKey = map[string]model.BillStatus{
	"pending":         model.BillStatusPending,
	"invoicesent":     model.BillStatusInvoiceSent,
	"awaitingbankin":  model.BillStatusAwaitingBankIn,
	"paidandctnvalid": model.BillStatusCompleted,
	"completed":       model.BillStatusCompleted,
}

// ResolveStatus maps a stored or displayed status to its canonical value.
// Unknown and empty values resolve to pending.
func ResolveStatus(raw string) model.BillStatus {
	if status, ok := statusByKey[statusKey(raw)]; ok {
		return status
	}
	return model.BillStatusPending
}

// IsKnownStatus reports whether raw names one of the canonical states under
// any accepted spelling.
func IsKnownStatus(raw string) bool {
	_, ok := statusByKey[statusKey(raw)]
	return ok
}

// StatusAliases lists every spelling a status may be stored under.
func StatusAliases(status model.BillStatus) []string {
	status = ResolveStatus(string(status))
	aliases := []string{string(status), status.Label()}
	if status == model.BillStatusCompleted {
		aliases = append(aliases, model.LegacyStatusCompleted)
	}
	return aliases
}

func IsCompleted(bill model.Bill) bool {
	return ResolveStatus(string(bill.Status)) == model.BillStatusCompleted
}

// "Awaiting Bank In", "awaiting_bank_in" and "AWAITING-BANK-IN" share a key.
func statusKey(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
