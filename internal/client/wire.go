package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/model"
)

// wireRecord is a bill as it arrives over the network. Older deployments
// used different keys for some fields, so lookups go through aliases.
type wireRecord map[string]json.RawMessage

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	"2006-01-02",
}

func (r wireRecord) raw(keys ...string) json.RawMessage {
	for _, key := range keys {
		value, ok := r[key]
		if !ok {
			continue
		}
		if trimmed := bytes.TrimSpace(value); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			return trimmed
		}
	}
	return nil
}

func (r wireRecord) str(keys ...string) string {
	value := r.raw(keys...)
	if value == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	// Numbers and booleans are kept in their literal form.
	return string(value)
}

func (r wireRecord) money(keys ...string) model.Money {
	var m model.Money
	if value := r.raw(keys...); value != nil {
		_ = m.UnmarshalJSON(value)
	}
	return m
}

func (r wireRecord) timestamp(keys ...string) *time.Time {
	raw := strings.TrimSpace(r.str(keys...))
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}
	return nil
}

// normalizeBill maps one wire record onto the canonical bill shape.
func normalizeBill(r wireRecord) (model.Bill, error) {
	var bill model.Bill
	if id := r.str("id", "bill_id"); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return bill, fmt.Errorf("bill id %q: %w", id, err)
		}
		bill.ID = parsed
	}

	bill.BLNumber = r.str("bl_number", "blNumber")
	bill.CustomerName = r.str("customer_name", "customerName", "name")
	bill.CustomerEmail = r.str("customer_email", "customerEmail", "email")
	bill.CustomerPhone = r.str("customer_phone", "customerPhone", "phone")
	bill.CustomerUsername = r.str("customer_username", "username")
	bill.Shipper = r.str("shipper")
	bill.Consignee = r.str("consignee")
	bill.PortOfLoading = r.str("port_of_loading")
	bill.PortOfDischarge = r.str("port_of_discharge")
	bill.ContainerNumbers = r.str("container_numbers")
	bill.FlightOrVessel = r.str("flight_or_vessel")
	bill.ProductDescription = r.str("product_description")
	bill.Status = billing.ResolveStatus(r.str("status"))
	bill.PaymentMethod = r.str("payment_method", "paymentMethod")
	bill.PaymentStatus = r.str("payment_status", "paymentStatus")
	bill.ReserveStatus = r.str("reserve_status", "reserveStatus")
	bill.CTNFee = r.money("ctn_fee", "display_ctn_fee", "ctnFee")
	bill.ServiceFee = r.money("service_fee", "display_service_fee", "serviceFee")
	bill.PaymentLink = r.str("payment_link", "paymentLink")
	bill.UniqueNumber = r.str("unique_number", "uniqueNumber")
	bill.PDFFilename = r.str("pdf_filename")
	bill.InvoiceFilename = r.str("invoice_filename")
	bill.ReceiptFilename = r.str("receipt_filename")
	bill.CustomerInvoice = r.str("customer_invoice")
	bill.CustomerPackingList = r.str("customer_packing_list")

	if created := r.timestamp("created_at"); created != nil {
		bill.CreatedAt = *created
	}
	bill.ReceiptUploadedAt = r.timestamp("receipt_uploaded_at")
	bill.Allinpay85ReceivedAt = r.timestamp("allinpay_85_received_at")
	bill.CompletedAt = r.timestamp("completed_at")
	return bill, nil
}

func normalizeBills(records []wireRecord) ([]model.Bill, error) {
	bills := make([]model.Bill, 0, len(records))
	for _, record := range records {
		bill, err := normalizeBill(record)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, nil
}
