package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/logistics-bills/internal/model"
)

func decodeBills(t *testing.T, raw string) []model.Bill {
	t.Helper()
	var bills []model.Bill
	require.NoError(t, json.Unmarshal([]byte(raw), &bills))
	return bills
}

func TestSummarize_BankAndAllinpay(t *testing.T) {
	bills := decodeBills(t, `[
		{"ctn_fee": "10.50", "service_fee": "5", "payment_method": "Bank"},
		{"ctn_fee": "20", "service_fee": "0", "payment_method": "Allinpay", "payment_status": "Paid 85%"}
	]`)

	summary := Summarize(bills)

	assert.Equal(t, 2, summary.TotalEntries)
	assert.Equal(t, model.Money(3050), summary.TotalCTNFee)
	assert.Equal(t, model.Money(500), summary.TotalServiceFee)
	assert.Equal(t, model.Money(1550), summary.BankTotal)
	assert.Equal(t, model.Money(1700), summary.Allinpay85Total)
	assert.Equal(t, model.Money(300), summary.ReserveTotal)
	assert.Equal(t, "30.50", summary.TotalCTNFee.String())
}

func TestSummarize_MalformedFeesCountAsZero(t *testing.T) {
	bills := decodeBills(t, `[
		{"ctn_fee": "abc", "service_fee": null, "payment_method": "Bank"},
		{"payment_method": "Allinpay"},
		{"ctn_fee": true, "service_fee": {"x": 1}},
		{"ctn_fee": 1.25, "service_fee": "2.75"}
	]`)

	summary := Summarize(bills)

	assert.Equal(t, 4, summary.TotalEntries)
	assert.Equal(t, model.Money(125), summary.TotalCTNFee)
	assert.Equal(t, model.Money(275), summary.TotalServiceFee)
	assert.Equal(t, model.Money(400), summary.BankTotal)
	assert.Equal(t, model.Money(0), summary.Allinpay85Total)
	assert.Equal(t, model.Money(0), summary.ReserveTotal)
}

func TestSummarize_NoFloatingPointDrift(t *testing.T) {
	bills := make([]model.Bill, 0, 10)
	for i := 0; i < 10; i++ {
		bills = append(bills, model.Bill{CTNFee: model.CoerceMoney("0.10"), ServiceFee: model.CoerceMoney(0.2)})
	}

	summary := Summarize(bills)

	assert.Equal(t, "1.00", summary.TotalCTNFee.String())
	assert.Equal(t, "2.00", summary.TotalServiceFee.String())
	assert.Equal(t, "3.00", summary.BankTotal.String())
}

func TestSummarize_AllinpayPortionsSumToTotal(t *testing.T) {
	bill := model.Bill{PaymentMethod: "allinpay", CTNFee: 333, ServiceFee: 0}

	summary := Summarize([]model.Bill{bill})

	assert.Equal(t, model.Money(283), summary.Allinpay85Total)
	assert.Equal(t, model.Money(50), summary.ReserveTotal)
	assert.Equal(t, bill.Total(), summary.Allinpay85Total+summary.ReserveTotal)
}

func TestSummarize_IsPure(t *testing.T) {
	bills := []model.Bill{
		{PaymentMethod: "Bank", CTNFee: 100, ServiceFee: 50},
		{PaymentMethod: "Allinpay", CTNFee: 1000},
	}
	assert.Equal(t, Summarize(bills), Summarize(bills))
	assert.Equal(t, model.Summary{}, Summarize(nil))
}

func TestReservePortion(t *testing.T) {
	assert.Equal(t, model.Money(1500), ReservePortion(10000))
	assert.Equal(t, model.Money(8500), CapturedPortion(10000))
}

func TestSummarizeBetween_SplitsAllinpayAcrossDays(t *testing.T) {
	day9 := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	day10 := day9.AddDate(0, 0, 1)
	day11 := day10.AddDate(0, 0, 1)
	captured := day9.Add(10 * time.Hour)
	completed := day10.Add(9 * time.Hour)

	bills := []model.Bill{
		{
			PaymentMethod:        "Allinpay",
			ReserveStatus:        "Settled",
			CTNFee:               7001,
			ServiceFee:           2999,
			Allinpay85ReceivedAt: &captured,
			CompletedAt:          &completed,
		},
		{PaymentMethod: "Bank", CTNFee: 500, CompletedAt: &completed},
	}

	first := SummarizeBetween(bills, day9, day10)
	second := SummarizeBetween(bills, day10, day11)

	assert.Equal(t, 1, first.TotalEntries)
	assert.Equal(t, model.Money(8500), first.Allinpay85Total)
	assert.Zero(t, first.ReserveTotal)
	assert.Zero(t, first.BankTotal)

	assert.Equal(t, 2, second.TotalEntries)
	assert.Zero(t, second.Allinpay85Total)
	assert.Equal(t, model.Money(1500), second.ReserveTotal)
	assert.Equal(t, model.Money(500), second.BankTotal)

	assert.Equal(t, model.Money(10000), first.Allinpay85Total+second.ReserveTotal)
	assert.Equal(t, model.Money(7001), first.TotalCTNFee+second.TotalCTNFee-500)
	assert.Equal(t, model.Money(2999), first.TotalServiceFee+second.TotalServiceFee)

	assert.True(t, BooksIn(bills[0], day9, day10))
	assert.False(t, BooksIn(bills[1], day9, day10))
}

func TestSummarizeBetween_SameDayBooksBothShares(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	at := day.Add(time.Hour)
	bill := model.Bill{PaymentMethod: "allinpay", ReserveStatus: "reserve settled", CTNFee: 2000, Allinpay85ReceivedAt: &at, CompletedAt: &at}

	summary := SummarizeBetween([]model.Bill{bill}, day, day.AddDate(0, 0, 1))
	assert.Equal(t, 1, summary.TotalEntries)
	assert.Equal(t, model.Money(1700), summary.Allinpay85Total)
	assert.Equal(t, model.Money(300), summary.ReserveTotal)
	assert.Equal(t, model.Money(2000), summary.TotalCTNFee)
}

func TestSummarizeBetween_UnsettledReserveIsNotBooked(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	at := day.Add(time.Hour)
	bill := model.Bill{PaymentMethod: "Allinpay", ReserveStatus: "Unsettled", CTNFee: 2000, CompletedAt: &at}

	summary := SummarizeBetween([]model.Bill{bill}, day, day.AddDate(0, 0, 1))
	assert.Zero(t, summary.TotalEntries)
	assert.Zero(t, summary.ReserveTotal)
	assert.False(t, BooksIn(bill, day, day.AddDate(0, 0, 1)))
}
