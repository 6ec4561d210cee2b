package billing

import (
	"time"

	"github.com/nurpe/logistics-bills/internal/model"
)

// Share of an Allinpay payment captured up front; the rest is held in reserve.
const AllinpayCapturePercent = 85

// Summarize reduces bills into report totals. Sums are kept in cents.
func Summarize(bills []model.Bill) model.Summary {
	var summary model.Summary
	for _, bill := range bills {
		summary.TotalEntries++
		summary.TotalCTNFee += bill.CTNFee
		summary.TotalServiceFee += bill.ServiceFee

		total := bill.Total()
		if !IsAllinpay(bill) {
			summary.BankTotal += total
			continue
		}
		captured := CapturedPortion(total)
		summary.Allinpay85Total += captured
		summary.ReserveTotal += total - captured
	}
	return summary
}

func CapturedPortion(total model.Money) model.Money {
	return total.Percent(AllinpayCapturePercent)
}

func ReservePortion(total model.Money) model.Money {
	return total - CapturedPortion(total)
}

// SummarizeBetween is Summarize for the reporting window [from, to). An
// Allinpay bill books its captured share on the day the capture arrived and
// its reserve on the day it was completed with the reserve settled, so a
// bill spread over two days adds up to its total once. Shares are rounded
// per fee.
func SummarizeBetween(bills []model.Bill, from, to time.Time) model.Summary {
	var summary model.Summary
	for _, bill := range bills {
		if !IsAllinpay(bill) {
			summary.TotalEntries++
			summary.TotalCTNFee += bill.CTNFee
			summary.TotalServiceFee += bill.ServiceFee
			summary.BankTotal += bill.Total()
			continue
		}

		captured, reserve := allinpayShares(bill, from, to)
		if !captured && !reserve {
			continue
		}
		summary.TotalEntries++
		ctnCaptured, serviceCaptured := CapturedPortion(bill.CTNFee), CapturedPortion(bill.ServiceFee)
		if captured {
			summary.TotalCTNFee += ctnCaptured
			summary.TotalServiceFee += serviceCaptured
			summary.Allinpay85Total += ctnCaptured + serviceCaptured
		}
		if reserve {
			summary.TotalCTNFee += bill.CTNFee - ctnCaptured
			summary.TotalServiceFee += bill.ServiceFee - serviceCaptured
			summary.ReserveTotal += bill.CTNFee - ctnCaptured + bill.ServiceFee - serviceCaptured
		}
	}
	return summary
}

// BooksIn reports whether the bill contributes any amount to the window.
func BooksIn(bill model.Bill, from, to time.Time) bool {
	if !IsAllinpay(bill) {
		return inWindow(bill.CompletedAt, from, to)
	}
	captured, reserve := allinpayShares(bill, from, to)
	return captured || reserve
}

func allinpayShares(bill model.Bill, from, to time.Time) (captured, reserve bool) {
	captured = inWindow(bill.Allinpay85ReceivedAt, from, to)
	reserve = IsReserveSettled(bill) && inWindow(bill.CompletedAt, from, to)
	return captured, reserve
}

func inWindow(at *time.Time, from, to time.Time) bool {
	return at != nil && !at.Before(from) && at.Before(to)
}
