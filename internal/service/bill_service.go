package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/config"
	"github.com/nurpe/logistics-bills/internal/lock"
	"github.com/nurpe/logistics-bills/internal/mail"
	"github.com/nurpe/logistics-bills/internal/model"
	"github.com/nurpe/logistics-bills/internal/notify"
	"github.com/nurpe/logistics-bills/internal/payment"
)

type BillStore interface {
	List(ctx context.Context, q model.BillQuery) (model.BillPage, error)
	Create(ctx context.Context, bill model.Bill) (*model.Bill, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Bill, error)
	GetByUniqueNumber(ctx context.Context, uniqueNumber string) (*model.Bill, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateUnlessStatus(ctx context.Context, id uuid.UUID, excluded []string, fields map[string]interface{}) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListAwaitingSettlement(ctx context.Context, blNumber string) ([]model.Bill, error)
	Search(ctx context.Context, s model.BillSearch) ([]model.Bill, error)
	ListCompleted(ctx context.Context, from, to *time.Time, blNumber string) ([]model.Bill, error)
	Stats(ctx context.Context) (model.StatsSummary, error)
	ListOutstanding(ctx context.Context) ([]model.OutstandingBill, error)
	CountCreated(ctx context.Context, from, to time.Time) (int64, error)
	CountCompleted(ctx context.Context, from, to time.Time) (int64, error)
	SumServiceFeeCreated(ctx context.Context, from, to time.Time) (model.Money, error)
}

type DocumentRenderer interface {
	Invoice(bill model.Bill, issuedAt time.Time) ([]byte, error)
	AccountReport(report model.AccountReport) ([]byte, error)
}

type WorkbookRenderer interface {
	AccountWorkbook(report model.AccountReport) ([]byte, error)
}

type Dependencies struct {
	Repo      BillStore
	Documents DocumentRenderer
	Workbooks WorkbookRenderer
	Mailer    mail.Sender
	Links     payment.LinkGenerator
	Notifier  notify.Notifier
	Locks     lock.Guard
	Log       zerolog.Logger
}

type BillService struct {
	repo      BillStore
	documents DocumentRenderer
	workbooks WorkbookRenderer
	mailer    mail.Sender
	links     payment.LinkGenerator
	notifier  notify.Notifier
	locks     lock.Guard
	log       zerolog.Logger

	loc             *time.Location
	defaultPageSize int
	maxPageSize     int
	lockTTL         time.Duration
	currency        string
	contactTo       string
	now             func() time.Time
}

type FileResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

func NewBillService(deps Dependencies, cfg *config.Config) (*BillService, error) {
	loc, err := cfg.Bills.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	s := &BillService{
		repo:            deps.Repo,
		documents:       deps.Documents,
		workbooks:       deps.Workbooks,
		mailer:          deps.Mailer,
		links:           deps.Links,
		notifier:        deps.Notifier,
		locks:           deps.Locks,
		log:             deps.Log,
		loc:             loc,
		defaultPageSize: cfg.Bills.DefaultPageSize,
		maxPageSize:     cfg.Bills.MaxPageSize,
		lockTTL:         cfg.Bills.ActionLockTTL,
		currency:        cfg.Payment.Currency,
		contactTo:       cfg.SMTP.ContactTo,
		now:             time.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Noop{}
	}
	if s.locks == nil {
		s.locks = lock.NewMemory()
	}
	if s.mailer == nil {
		s.mailer = mail.NewLogSender(deps.Log)
	}
	if s.links == nil {
		s.links = payment.NewStaticGenerator(cfg.Payment.LinkBaseURL, cfg.Payment.Currency)
	}
	return s, nil
}

type ListInput struct {
	Page     int
	PageSize int
	BLNumber string
	Status   string
	Date     string
}

// List returns one page of bills. Customers only ever see their own.
func (s *BillService) List(ctx context.Context, principal model.Principal, input ListInput) (model.BillPage, error) {
	q := model.BillQuery{
		BLNumber: strings.TrimSpace(input.BLNumber),
		Page:     input.Page,
		PageSize: input.PageSize,
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = s.defaultPageSize
	}
	if q.PageSize > s.maxPageSize {
		q.PageSize = s.maxPageSize
	}

	if status := strings.TrimSpace(input.Status); status != "" {
		if !billing.IsKnownStatus(status) {
			return model.BillPage{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
		q.Statuses = billing.StatusAliases(billing.ResolveStatus(status))
	}

	from, to, err := s.dayRange(input.Date)
	if err != nil {
		return model.BillPage{}, err
	}
	q.CreatedFrom, q.CreatedTo = from, to

	if !principal.IsStaff() {
		q.CustomerUsername = principal.Username
	}

	page, err := s.repo.List(ctx, q)
	if err != nil {
		return model.BillPage{}, err
	}
	normalizeStatuses(page.Bills)
	return page, nil
}

type CreateBillInput struct {
	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	CustomerUsername    string
	BLNumber            string
	Shipper             string
	Consignee           string
	PortOfLoading       string
	PortOfDischarge     string
	ContainerNumbers    string
	FlightOrVessel      string
	ProductDescription  string
	PDFFilename         string
	CustomerInvoice     string
	CustomerPackingList string
}

func (s *BillService) Create(ctx context.Context, principal model.Principal, input CreateBillInput) (*model.Bill, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customer_name is required", ErrInvalidInput)
	}

	username := principal.Username
	if principal.IsStaff() && strings.TrimSpace(input.CustomerUsername) != "" {
		username = strings.TrimSpace(input.CustomerUsername)
	}

	bill := model.Bill{
		CustomerName:        strings.TrimSpace(input.CustomerName),
		CustomerEmail:       strings.TrimSpace(input.CustomerEmail),
		CustomerPhone:       strings.TrimSpace(input.CustomerPhone),
		CustomerUsername:    username,
		BLNumber:            strings.TrimSpace(input.BLNumber),
		Shipper:             input.Shipper,
		Consignee:           input.Consignee,
		PortOfLoading:       input.PortOfLoading,
		PortOfDischarge:     input.PortOfDischarge,
		ContainerNumbers:    input.ContainerNumbers,
		FlightOrVessel:      input.FlightOrVessel,
		ProductDescription:  input.ProductDescription,
		PDFFilename:         input.PDFFilename,
		CustomerInvoice:     input.CustomerInvoice,
		CustomerPackingList: input.CustomerPackingList,
		Status:              model.BillStatusPending,
		CreatedAt:           s.now().UTC(),
	}

	saved, err := s.repo.Create(ctx, bill)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("bill_id", saved.ID.String()).Str("username", username).Msg("bill created")
	return saved, nil
}

func (s *BillService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Bill, error) {
	bill, err := s.loadBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.CanView(*bill) {
		return nil, ErrPermissionDenied
	}
	return bill, nil
}

// UpdateBillInput carries the staff-editable columns. Nil fields are left
// untouched. Fees accept numbers or numeric strings.
type UpdateBillInput struct {
	CustomerName       *string     `json:"customer_name"`
	CustomerEmail      *string     `json:"customer_email"`
	CustomerPhone      *string     `json:"customer_phone"`
	BLNumber           *string     `json:"bl_number"`
	Shipper            *string     `json:"shipper"`
	Consignee          *string     `json:"consignee"`
	PortOfLoading      *string     `json:"port_of_loading"`
	PortOfDischarge    *string     `json:"port_of_discharge"`
	ContainerNumbers   *string     `json:"container_numbers"`
	FlightOrVessel     *string     `json:"flight_or_vessel"`
	ProductDescription *string     `json:"product_description"`
	PaymentLink        *string     `json:"payment_link"`
	UniqueNumber       *string     `json:"unique_number"`
	PaymentMethod      *string     `json:"payment_method"`
	PaymentStatus      *string     `json:"payment_status"`
	ReserveStatus      *string     `json:"reserve_status"`
	CTNFee             interface{} `json:"ctn_fee"`
	ServiceFee         interface{} `json:"service_fee"`
}

func (in UpdateBillInput) fields() (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	strs := map[string]*string{
		"customer_name":       in.CustomerName,
		"customer_email":      in.CustomerEmail,
		"customer_phone":      in.CustomerPhone,
		"bl_number":           in.BLNumber,
		"shipper":             in.Shipper,
		"consignee":           in.Consignee,
		"port_of_loading":     in.PortOfLoading,
		"port_of_discharge":   in.PortOfDischarge,
		"container_numbers":   in.ContainerNumbers,
		"flight_or_vessel":    in.FlightOrVessel,
		"product_description": in.ProductDescription,
		"payment_link":        in.PaymentLink,
		"unique_number":       in.UniqueNumber,
		"payment_method":      in.PaymentMethod,
		"payment_status":      in.PaymentStatus,
		"reserve_status":      in.ReserveStatus,
	}
	for column, value := range strs {
		if value != nil {
			fields[column] = strings.TrimSpace(*value)
		}
	}

	fees := map[string]interface{}{
		"ctn_fee":     in.CTNFee,
		"service_fee": in.ServiceFee,
	}
	for column, raw := range fees {
		if raw == nil {
			continue
		}
		amount, err := model.ParseMoney(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, column, err)
		}
		if amount < 0 {
			return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, column)
		}
		fields[column] = amount
	}
	return fields, nil
}

func (s *BillService) Update(ctx context.Context, principal model.Principal, id uuid.UUID, input UpdateBillInput) (*model.Bill, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	fields, err := input.fields()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no updatable fields provided", ErrInvalidInput)
	}

	var updated *model.Bill
	err = s.withLock(ctx, "update", id, func() error {
		if err := s.repo.Update(ctx, id, fields); err != nil {
			return mapRepoError(err)
		}
		updated, err = s.loadBill(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *BillService) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if !principal.IsStaff() {
		return ErrPermissionDenied
	}
	return s.withLock(ctx, "delete", id, func() error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return mapRepoError(err)
		}
		s.log.Info().Str("bill_id", id.String()).Str("username", principal.Username).Msg("bill deleted")
		return nil
	})
}

type SearchInput struct {
	CustomerName     string `json:"customer_name"`
	BLNumber         string `json:"bl_number"`
	UniqueNumber     string `json:"unique_number"`
	CustomerUsername string `json:"username"`
	Date             string `json:"created_at"`
}

func (s *BillService) Search(ctx context.Context, principal model.Principal, input SearchInput) ([]model.Bill, error) {
	if !principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	from, to, err := s.dayRange(input.Date)
	if err != nil {
		return nil, err
	}
	bills, err := s.repo.Search(ctx, model.BillSearch{
		CustomerName:     input.CustomerName,
		BLNumber:         input.BLNumber,
		UniqueNumber:     input.UniqueNumber,
		CustomerUsername: strings.TrimSpace(input.CustomerUsername),
		CreatedFrom:      from,
		CreatedTo:        to,
	})
	if err != nil {
		return nil, err
	}
	normalizeStatuses(bills)
	return bills, nil
}

func (s *BillService) loadBill(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	bill, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	bill.Status = billing.ResolveStatus(string(bill.Status))
	return bill, nil
}

// withLock runs fn while holding the bill's lock. Every mutating action on
// a bill shares the one key, so a second action of any kind turns into
// ErrConflict while the first is running.
func (s *BillService) withLock(ctx context.Context, action string, id uuid.UUID, fn func() error) error {
	release, err := s.locks.Acquire(ctx, "bill:"+id.String(), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return fmt.Errorf("%w: another action is in progress for bill %s (%s)", ErrConflict, id, action)
		}
		return err
	}
	defer release()
	return fn()
}

// dayRange turns a YYYY-MM-DD date into the half-open UTC range covering
// that day in the business timezone. An empty date means no range.
func (s *BillService) dayRange(raw string) (*time.Time, *time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, s.loc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, raw)
	}
	from := day.UTC()
	to := day.AddDate(0, 0, 1).UTC()
	return &from, &to, nil
}

// updateUnlessCompleted writes fields only if the stored bill has not
// reached a completed status since it was read.
func (s *BillService) updateUnlessCompleted(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	applied, err := s.repo.UpdateUnlessStatus(ctx, id, billing.StatusAliases(model.BillStatusCompleted), fields)
	if err != nil {
		return mapRepoError(err)
	}
	if applied {
		return nil
	}
	if _, err := s.loadBill(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: bill is already completed", ErrConflict)
}

func (s *BillService) notifyStaff(ctx context.Context, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.log.Warn().Err(err).Msg("staff notification failed")
	}
}

func mapRepoError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func normalizeStatuses(bills []model.Bill) {
	for i := range bills {
		bills[i].Status = billing.ResolveStatus(string(bills[i].Status))
	}
}
