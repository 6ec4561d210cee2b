package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/model"
)

const billTable = "bill_of_lading"

const billColumns = `
	id,
	bl_number,
	customer_name,
	customer_email,
	customer_phone,
	customer_username,
	shipper,
	consignee,
	port_of_loading,
	port_of_discharge,
	container_numbers,
	flight_or_vessel,
	product_description,
	status,
	payment_method,
	payment_status,
	reserve_status,
	ctn_fee,
	service_fee,
	payment_link,
	unique_number,
	pdf_filename,
	invoice_filename,
	receipt_filename,
	customer_invoice,
	customer_packing_list,
	created_at,
	receipt_uploaded_at,
	allinpay_85_received_at,
	completed_at
`

type BillRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

func (r *BillRepository) List(ctx context.Context, q model.BillQuery) (model.BillPage, error) {
	where, args := buildFilters(filterSet{
		blNumber:    q.BLNumber,
		statuses:    q.Statuses,
		username:    q.CustomerUsername,
		createdFrom: q.CreatedFrom,
		createdTo:   q.CreatedTo,
	})

	page := model.BillPage{Page: q.Page, PageSize: q.PageSize, Bills: []model.Bill{}}
	if err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM "+billTable+where, args...).
		Scan(&page.Total).Error; err != nil {
		return page, err
	}
	if page.Total == 0 {
		return page, nil
	}

	offset := (q.Page - 1) * q.PageSize
	query := "SELECT " + billColumns + " FROM " + billTable + where +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, q.PageSize, offset)

	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&page.Bills).Error; err != nil {
		return page, err
	}
	return page, nil
}

func (r *BillRepository) Create(ctx context.Context, bill model.Bill) (*model.Bill, error) {
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO bill_of_lading (
			id,
			bl_number,
			customer_name,
			customer_email,
			customer_phone,
			customer_username,
			shipper,
			consignee,
			port_of_loading,
			port_of_discharge,
			container_numbers,
			flight_or_vessel,
			product_description,
			status,
			payment_method,
			payment_status,
			reserve_status,
			ctn_fee,
			service_fee,
			payment_link,
			unique_number,
			pdf_filename,
			invoice_filename,
			receipt_filename,
			customer_invoice,
			customer_packing_list,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		bill.ID,
		bill.BLNumber,
		bill.CustomerName,
		bill.CustomerEmail,
		bill.CustomerPhone,
		bill.CustomerUsername,
		bill.Shipper,
		bill.Consignee,
		bill.PortOfLoading,
		bill.PortOfDischarge,
		bill.ContainerNumbers,
		bill.FlightOrVessel,
		bill.ProductDescription,
		string(bill.Status),
		bill.PaymentMethod,
		bill.PaymentStatus,
		bill.ReserveStatus,
		bill.CTNFee,
		bill.ServiceFee,
		bill.PaymentLink,
		bill.UniqueNumber,
		bill.PDFFilename,
		bill.InvoiceFilename,
		bill.ReceiptFilename,
		bill.CustomerInvoice,
		bill.CustomerPackingList,
		bill.CreatedAt.UTC(),
	).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, bill.ID)
}

func (r *BillRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	var bill model.Bill
	err := r.db.WithContext(ctx).Raw(
		"SELECT "+billColumns+" FROM "+billTable+" WHERE id = ? LIMIT 1", id,
	).Scan(&bill).Error
	if err != nil {
		return nil, err
	}
	if bill.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &bill, nil
}

// GetByUniqueNumber looks a bill up by its CTN number, the reference payment
// gateways echo back.
func (r *BillRepository) GetByUniqueNumber(ctx context.Context, uniqueNumber string) (*model.Bill, error) {
	var bill model.Bill
	err := r.db.WithContext(ctx).Raw(
		"SELECT "+billColumns+" FROM "+billTable+" WHERE unique_number = ? ORDER BY created_at DESC LIMIT 1", uniqueNumber,
	).Scan(&bill).Error
	if err != nil {
		return nil, err
	}
	if bill.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &bill, nil
}

// Update writes the given columns. Callers own the column allow-list.
func (r *BillRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Table(billTable).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateUnlessStatus writes the given columns only while the bill's stored
// status is outside excluded. It reports false when no row qualified.
func (r *BillRepository) UpdateUnlessStatus(ctx context.Context, id uuid.UUID, excluded []string, fields map[string]interface{}) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}
	query := r.db.WithContext(ctx).Table(billTable).Where("id = ?", id)
	if len(excluded) > 0 {
		query = query.Where("status NOT IN ?", excluded)
	}
	result := query.Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *BillRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Exec("DELETE FROM "+billTable+" WHERE id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListAwaitingSettlement returns bills waiting on a bank transfer or holding
// an 85% Allinpay capture.
func (r *BillRepository) ListAwaitingSettlement(ctx context.Context, blNumber string) ([]model.Bill, error) {
	aliases := billing.StatusAliases(model.BillStatusAwaitingBankIn)
	query := "SELECT " + billColumns + " FROM " + billTable + " WHERE (status IN (" + placeholders(len(aliases)) + ")" +
		" OR (LOWER(payment_method) = ? AND payment_status = ?))"

	args := make([]interface{}, 0, len(aliases)+3)
	for _, alias := range aliases {
		args = append(args, alias)
	}
	args = append(args, strings.ToLower(model.PaymentMethodAllinpay), model.PaymentStatusPaid85)

	if blNumber = strings.TrimSpace(blNumber); blNumber != "" {
		query += ` AND LOWER(bl_number) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(blNumber))
	}
	query += " ORDER BY created_at DESC, id DESC"

	bills := []model.Bill{}
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *BillRepository) Search(ctx context.Context, s model.BillSearch) ([]model.Bill, error) {
	where, args := buildFilters(filterSet{
		customerName: s.CustomerName,
		blNumber:     s.BLNumber,
		uniqueNumber: s.UniqueNumber,
		username:     s.CustomerUsername,
		createdFrom:  s.CreatedFrom,
		createdTo:    s.CreatedTo,
	})

	bills := []model.Bill{}
	err := r.db.WithContext(ctx).Raw(
		"SELECT "+billColumns+" FROM "+billTable+where+" ORDER BY created_at DESC, id DESC", args...,
	).Scan(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

// ListCompleted returns completed bills for the accounting report. When a
// range is given, a bill matches if it was completed inside it or, for
// Allinpay, if its 85% capture arrived inside it.
func (r *BillRepository) ListCompleted(ctx context.Context, from, to *time.Time, blNumber string) ([]model.Bill, error) {
	aliases := billing.StatusAliases(model.BillStatusCompleted)
	query := "SELECT " + billColumns + " FROM " + billTable + " WHERE status IN (" + placeholders(len(aliases)) + ")"
	args := make([]interface{}, 0, len(aliases)+6)
	for _, alias := range aliases {
		args = append(args, alias)
	}

	if from != nil && to != nil {
		query += " AND ((completed_at >= ? AND completed_at < ?)" +
			" OR (LOWER(payment_method) = ? AND allinpay_85_received_at >= ? AND allinpay_85_received_at < ?))"
		args = append(args, from.UTC(), to.UTC(), strings.ToLower(model.PaymentMethodAllinpay), from.UTC(), to.UTC())
	}
	if blNumber = strings.TrimSpace(blNumber); blNumber != "" {
		query += ` AND LOWER(bl_number) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(blNumber))
	}
	query += " ORDER BY completed_at DESC, id DESC"

	bills := []model.Bill{}
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *BillRepository) Stats(ctx context.Context) (model.StatsSummary, error) {
	aliases := billing.StatusAliases(model.BillStatusCompleted)
	in := "status IN (" + placeholders(len(aliases)) + ")"

	args := make([]interface{}, 0, len(aliases)*2)
	for i := 0; i < 2; i++ {
		for _, alias := range aliases {
			args = append(args, alias)
		}
	}

	var row struct {
		TotalBills           int64
		CompletedBills       int64
		TotalInvoiceAmount   model.Money
		TotalPaymentReceived model.Money
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total_bills,
			COALESCE(SUM(CASE WHEN `+in+` THEN 1 ELSE 0 END), 0) AS completed_bills,
			COALESCE(SUM(service_fee), 0) AS total_invoice_amount,
			COALESCE(SUM(CASE WHEN `+in+` THEN service_fee ELSE 0 END), 0) AS total_payment_received
		FROM bill_of_lading
	`, args...).Scan(&row).Error
	if err != nil {
		return model.StatsSummary{}, err
	}

	return model.StatsSummary{
		TotalBills:              row.TotalBills,
		CompletedBills:          row.CompletedBills,
		PendingBills:            row.TotalBills - row.CompletedBills,
		TotalInvoiceAmount:      row.TotalInvoiceAmount,
		TotalPaymentReceived:    row.TotalPaymentReceived,
		TotalPaymentOutstanding: row.TotalInvoiceAmount - row.TotalPaymentReceived,
	}, nil
}

func (r *BillRepository) ListOutstanding(ctx context.Context) ([]model.OutstandingBill, error) {
	aliases := billing.StatusAliases(model.BillStatusCompleted)
	args := make([]interface{}, 0, len(aliases))
	for _, alias := range aliases {
		args = append(args, alias)
	}

	rows := []model.OutstandingBill{}
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, customer_name, bl_number, service_fee, invoice_filename
		FROM bill_of_lading
		WHERE status NOT IN (`+placeholders(len(aliases))+`)
		ORDER BY created_at DESC, id DESC
	`, args...).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountCreated counts bills created in [from, to).
func (r *BillRepository) CountCreated(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		"SELECT COUNT(*) FROM "+billTable+" WHERE created_at >= ? AND created_at < ?", from.UTC(), to.UTC(),
	).Scan(&count).Error
	return count, err
}

// CountCompleted counts completed bills whose completed_at falls in [from, to).
func (r *BillRepository) CountCompleted(ctx context.Context, from, to time.Time) (int64, error) {
	aliases := billing.StatusAliases(model.BillStatusCompleted)
	args := make([]interface{}, 0, len(aliases)+2)
	for _, alias := range aliases {
		args = append(args, alias)
	}
	args = append(args, from.UTC(), to.UTC())

	var count int64
	err := r.db.WithContext(ctx).Raw(
		"SELECT COUNT(*) FROM "+billTable+" WHERE status IN ("+placeholders(len(aliases))+")"+
			" AND completed_at >= ? AND completed_at < ?", args...,
	).Scan(&count).Error
	return count, err
}

// SumServiceFeeCreated totals the service fees of bills created in [from, to).
func (r *BillRepository) SumServiceFeeCreated(ctx context.Context, from, to time.Time) (model.Money, error) {
	var total model.Money
	err := r.db.WithContext(ctx).Raw(
		"SELECT COALESCE(SUM(service_fee), 0) FROM "+billTable+" WHERE created_at >= ? AND created_at < ?", from.UTC(), to.UTC(),
	).Scan(&total).Error
	return total, err
}

type filterSet struct {
	customerName string
	blNumber     string
	uniqueNumber string
	statuses     []string
	username     string
	createdFrom  *time.Time
	createdTo    *time.Time
}

func buildFilters(f filterSet) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	like := func(column, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		clauses = append(clauses, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column))
		args = append(args, likePattern(value))
	}
	like("customer_name", f.customerName)
	like("bl_number", f.blNumber)
	like("unique_number", f.uniqueNumber)

	if len(f.statuses) > 0 {
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", placeholders(len(f.statuses))))
		for _, status := range f.statuses {
			args = append(args, status)
		}
	}
	if f.username != "" {
		clauses = append(clauses, "customer_username = ?")
		args = append(args, f.username)
	}
	if f.createdFrom != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.createdFrom.UTC())
	}
	if f.createdTo != nil {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.createdTo.UTC())
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func likePattern(value string) string {
	return "%" + escapeLike(strings.ToLower(value)) + "%"
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
