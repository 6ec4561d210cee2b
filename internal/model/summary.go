package model

import "github.com/google/uuid"

type Summary struct {
	TotalEntries    int   `json:"total_entries"`
	TotalCTNFee     Money `json:"total_ctn_fee"`
	TotalServiceFee Money `json:"total_service_fee"`
	BankTotal       Money `json:"bank_total"`
	Allinpay85Total Money `json:"allinpay_85_total"`
	ReserveTotal    Money `json:"reserve_total"`
}

type AccountReport struct {
	Date    string  `json:"date,omitempty"`
	Bills   []Bill  `json:"bills"`
	Summary Summary `json:"summary"`
}

type StatsSummary struct {
	TotalBills              int64 `json:"total_bills"`
	CompletedBills          int64 `json:"completed_bills"`
	PendingBills            int64 `json:"pending_bills"`
	TotalInvoiceAmount      Money `json:"total_invoice_amount"`
	TotalPaymentReceived    Money `json:"total_payment_received"`
	TotalPaymentOutstanding Money `json:"total_payment_outstanding"`
}

type OutstandingBill struct {
	ID              uuid.UUID `json:"id" gorm:"column:id"`
	CustomerName    string    `json:"customer_name" gorm:"column:customer_name"`
	BLNumber        string    `json:"bl_number" gorm:"column:bl_number"`
	ServiceFee      Money     `json:"service_fee" gorm:"column:service_fee"`
	InvoiceFilename string    `json:"invoice_filename" gorm:"column:invoice_filename"`
}

type DailyBills struct {
	Date    string  `json:"date"`
	Summary Summary `json:"summary"`
	Entries []Bill  `json:"entries"`
}
