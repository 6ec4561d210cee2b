package model

import (
	"time"

	"github.com/google/uuid"
)

type BillStatus string

const (
	BillStatusPending        BillStatus = "pending"
	BillStatusInvoiceSent    BillStatus = "invoice_sent"
	BillStatusAwaitingBankIn BillStatus = "awaiting_bank_in"
	BillStatusCompleted      BillStatus = "paid_and_ctn_valid"
)

// Stored by older releases for completed bills.
const LegacyStatusCompleted = "Completed"

const (
	PaymentMethodAllinpay = "Allinpay"
	PaymentMethodBank     = "Bank Transfer"

	PaymentStatusPaid85  = "Paid 85%"
	PaymentStatusPaid100 = "Paid 100%"

	ReserveStatusUnsettled = "Unsettled"
	ReserveStatusSettled   = "Settled"
)

func (s BillStatus) Label() string {
	switch s {
	case BillStatusPending:
		return "Pending"
	case BillStatusInvoiceSent:
		return "Invoice Sent"
	case BillStatusAwaitingBankIn:
		return "Awaiting Bank In"
	case BillStatusCompleted:
		return "Paid and CTN Valid"
	default:
		return string(s)
	}
}

type Bill struct {
	ID                   uuid.UUID  `json:"id" gorm:"column:id"`
	BLNumber             string     `json:"bl_number" gorm:"column:bl_number"`
	CustomerName         string     `json:"customer_name" gorm:"column:customer_name"`
	CustomerEmail        string     `json:"customer_email" gorm:"column:customer_email"`
	CustomerPhone        string     `json:"customer_phone" gorm:"column:customer_phone"`
	CustomerUsername     string     `json:"customer_username" gorm:"column:customer_username"`
	Shipper              string     `json:"shipper" gorm:"column:shipper"`
	Consignee            string     `json:"consignee" gorm:"column:consignee"`
	PortOfLoading        string     `json:"port_of_loading" gorm:"column:port_of_loading"`
	PortOfDischarge      string     `json:"port_of_discharge" gorm:"column:port_of_discharge"`
	ContainerNumbers     string     `json:"container_numbers" gorm:"column:container_numbers"`
	FlightOrVessel       string     `json:"flight_or_vessel" gorm:"column:flight_or_vessel"`
	ProductDescription   string     `json:"product_description" gorm:"column:product_description"`
	Status               BillStatus `json:"status" gorm:"column:status"`
	PaymentMethod        string     `json:"payment_method" gorm:"column:payment_method"`
	PaymentStatus        string     `json:"payment_status" gorm:"column:payment_status"`
	ReserveStatus        string     `json:"reserve_status" gorm:"column:reserve_status"`
	CTNFee               Money      `json:"ctn_fee" gorm:"column:ctn_fee"`
	ServiceFee           Money      `json:"service_fee" gorm:"column:service_fee"`
	PaymentLink          string     `json:"payment_link" gorm:"column:payment_link"`
	UniqueNumber         string     `json:"unique_number" gorm:"column:unique_number"`
	PDFFilename          string     `json:"pdf_filename" gorm:"column:pdf_filename"`
	InvoiceFilename      string     `json:"invoice_filename" gorm:"column:invoice_filename"`
	ReceiptFilename      string     `json:"receipt_filename" gorm:"column:receipt_filename"`
	CustomerInvoice      string     `json:"customer_invoice" gorm:"column:customer_invoice"`
	CustomerPackingList  string     `json:"customer_packing_list" gorm:"column:customer_packing_list"`
	CreatedAt            time.Time  `json:"created_at" gorm:"column:created_at"`
	ReceiptUploadedAt    *time.Time `json:"receipt_uploaded_at" gorm:"column:receipt_uploaded_at"`
	Allinpay85ReceivedAt *time.Time `json:"allinpay_85_received_at" gorm:"column:allinpay_85_received_at"`
	CompletedAt          *time.Time `json:"completed_at" gorm:"column:completed_at"`
}

// Total is never stored; it is always derived from the two fees.
func (b Bill) Total() Money {
	return b.CTNFee + b.ServiceFee
}

type BillPage struct {
	Bills    []Bill `json:"bills"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type BillQuery struct {
	BLNumber         string
	Statuses         []string
	CustomerUsername string
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	Page             int
	PageSize         int
}

type BillSearch struct {
	CustomerName     string
	BLNumber         string
	UniqueNumber     string
	CustomerUsername string
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
}
