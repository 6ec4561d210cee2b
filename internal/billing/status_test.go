package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nurpe/logistics-bills/internal/model"
)

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected model.BillStatus
	}{
		{"pending", model.BillStatusPending},
		{"invoice_sent", model.BillStatusInvoiceSent},
		{"awaiting_bank_in", model.BillStatusAwaitingBankIn},
		{"paid_and_ctn_valid", model.BillStatusCompleted},
		{"Completed", model.BillStatusCompleted},
		{"Pending", model.BillStatusPending},
		{"Invoice Sent", model.BillStatusInvoiceSent},
		{"Awaiting Bank In", model.BillStatusAwaitingBankIn},
		{"Paid and CTN Valid", model.BillStatusCompleted},
		{"  AWAITING-BANK-IN ", model.BillStatusAwaitingBankIn},
		{"", model.BillStatusPending},
		{"shipped", model.BillStatusPending},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, ResolveStatus(tc.raw))
		})
	}
}

func TestResolveStatus_Idempotent(t *testing.T) {
	inputs := []string{"", "pending", "Completed", "Invoice Sent", "awaiting_bank_in", "paid_and_ctn_valid", "garbage"}
	for _, raw := range inputs {
		once := ResolveStatus(raw)
		assert.Equal(t, once, ResolveStatus(string(once)), "input %q", raw)
	}
}

func TestResolveStatus_LegacyCompletedMatchesCanonical(t *testing.T) {
	assert.Equal(t, ResolveStatus("paid_and_ctn_valid"), ResolveStatus(model.LegacyStatusCompleted))
}

func TestStatusAliases(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"paid_and_ctn_valid", "Paid and CTN Valid", "Completed"},
		StatusAliases(model.BillStatusCompleted),
	)
	assert.ElementsMatch(t,
		[]string{"awaiting_bank_in", "Awaiting Bank In"},
		StatusAliases("Awaiting Bank In"),
	)
}

func TestIsKnownStatus(t *testing.T) {
	assert.True(t, IsKnownStatus("Completed"))
	assert.True(t, IsKnownStatus("invoice_sent"))
	assert.False(t, IsKnownStatus(""))
	assert.False(t, IsKnownStatus("refunded"))
}
