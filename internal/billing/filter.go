package billing

import (
	"strings"

	"github.com/nurpe/logistics-bills/internal/model"
)

// Filter keeps bills whose B/L number contains searchText (case-insensitive)
// and whose resolved status equals statusFilter. Empty arguments do not
// filter; a status filter naming no known state matches nothing. Input order
// is preserved.
func Filter(bills []model.Bill, searchText, statusFilter string) []model.Bill {
	needle := strings.ToLower(strings.TrimSpace(searchText))
	statusFilter = strings.TrimSpace(statusFilter)

	var wanted model.BillStatus
	if statusFilter != "" {
		if !IsKnownStatus(statusFilter) {
			return []model.Bill{}
		}
		wanted = ResolveStatus(statusFilter)
	}

	result := make([]model.Bill, 0, len(bills))
	for _, bill := range bills {
		if needle != "" && !strings.Contains(strings.ToLower(bill.BLNumber), needle) {
			continue
		}
		if statusFilter != "" && ResolveStatus(string(bill.Status)) != wanted {
			continue
		}
		result = append(result, bill)
	}
	return result
}

// Select is the predicate form of Filter.
func Select(bills []model.Bill, keep func(model.Bill) bool) []model.Bill {
	result := make([]model.Bill, 0, len(bills))
	for _, bill := range bills {
		if keep(bill) {
			result = append(result, bill)
		}
	}
	return result
}
