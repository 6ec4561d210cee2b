package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/logistics-bills/internal/http/middleware"
	"github.com/nurpe/logistics-bills/internal/payment"
	"github.com/nurpe/logistics-bills/internal/service"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	bills         *service.BillService
	webhookSecret string
	log           zerolog.Logger
}

func NewHandler(bills *service.BillService, webhookSecret string, log zerolog.Logger) *Handler {
	return &Handler{bills: bills, webhookSecret: webhookSecret, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/health", h.health)

	api := router.Group("/api")
	api.GET("/ping", h.health)
	api.POST("/payment_webhook", h.paymentWebhook)
	api.POST("/contact", h.contact)

	protected := api.Group("/")
	protected.Use(authMiddleware)
	protected.GET("/bills", h.listBills)
	protected.POST("/bills", h.createBill)
	protected.GET("/bills/:id", h.getBill)
	protected.GET("/bills/:id/invoice", h.invoicePDF)
	protected.POST("/bill/:id/receipt", h.recordReceipt)

	staff := protected.Group("/")
	staff.Use(middleware.RequireStaff())
	staff.GET("/bills/awaiting_bank_in", h.awaitingSettlement)
	staff.PUT("/bills/:id", h.updateBill)
	staff.DELETE("/bill/:id", h.deleteBill)
	staff.POST("/bill/:id/complete", h.completeBill)
	staff.POST("/bill/:id/settle_reserve", h.settleReserve)
	staff.POST("/bill/:id/unique_number", h.setUniqueNumber)
	staff.POST("/generate_payment_link/:id", h.generatePaymentLink)
	staff.POST("/send_unique_number_email", h.sendUniqueNumberEmail)
	staff.POST("/send_invoice_email", h.sendInvoiceEmail)
	staff.POST("/search_bills", h.searchBills)
	staff.GET("/account_bills", h.accountBills)
	staff.GET("/account_bills/export", h.exportAccountBills)
	staff.GET("/account_bills/export/pdf", h.exportAccountBillsPDF)
	staff.GET("/stats/summary", h.statsSummary)
	staff.GET("/stats/outstanding_bills", h.outstandingBills)
	staff.GET("/stats/bills_by_date", h.billsByDate)
	staff.GET("/stats/files_by_date", h.filesByDate)
	staff.GET("/stats/completed_today", h.completedToday)
	staff.GET("/stats/payments_by_date", h.paymentsByDate)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listBills(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	page, err := queryInt(c, "page")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	pageSize, err := queryInt(c, "page_size")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
		return
	}

	result, err := h.bills.List(c.Request.Context(), principal, service.ListInput{
		Page:     page,
		PageSize: pageSize,
		BLNumber: c.Query("bl_number"),
		Status:   c.Query("status"),
		Date:     c.Query("date"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type createBillRequest struct {
	CustomerName        string `json:"customer_name" binding:"required"`
	CustomerEmail       string `json:"customer_email"`
	CustomerPhone       string `json:"customer_phone"`
	CustomerUsername    string `json:"customer_username"`
	BLNumber            string `json:"bl_number"`
	Shipper             string `json:"shipper"`
	Consignee           string `json:"consignee"`
	PortOfLoading       string `json:"port_of_loading"`
	PortOfDischarge     string `json:"port_of_discharge"`
	ContainerNumbers    string `json:"container_numbers"`
	FlightOrVessel      string `json:"flight_or_vessel"`
	ProductDescription  string `json:"product_description"`
	PDFFilename         string `json:"pdf_filename"`
	CustomerInvoice     string `json:"customer_invoice"`
	CustomerPackingList string `json:"customer_packing_list"`
}

func (h *Handler) createBill(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bill, err := h.bills.Create(c.Request.Context(), principal, service.CreateBillInput(req))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bill)
}

func (h *Handler) getBill(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	bill, err := h.bills.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (h *Handler) updateBill(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	var req service.UpdateBillInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bill, err := h.bills.Update(c.Request.Context(), principal, id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (h *Handler) deleteBill(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	if err := h.bills.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bill deleted"})
}

func (h *Handler) completeBill(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	bill, err := h.bills.Complete(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (h *Handler) settleReserve(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	bill, err := h.bills.SettleReserve(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (h *Handler) awaitingSettlement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.bills.AwaitingSettlement(c.Request.Context(), principal, c.Query("bl_number"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type receiptRequest struct {
	ReceiptFilename string `json:"receipt_filename" binding:"required"`
}

func (h *Handler) recordReceipt(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bill, err := h.bills.RecordReceipt(c.Request.Context(), principal, id, req.ReceiptFilename)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

type uniqueNumberRequest struct {
	UniqueNumber string `json:"unique_number" binding:"required"`
}

func (h *Handler) setUniqueNumber(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	var req uniqueNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bill, err := h.bills.SetUniqueNumber(c.Request.Context(), principal, id, req.UniqueNumber)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (h *Handler) generatePaymentLink(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	// The body is optional; an empty one requests the default reserve link.
	var req service.PaymentLinkInput
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.bills.GeneratePaymentLink(c.Request.Context(), principal, id, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type emailRequest struct {
	BillID  string `json:"bill_id" binding:"required"`
	ToEmail string `json:"to_email" binding:"required"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

func (r emailRequest) input() (service.EmailInput, error) {
	id, err := uuid.Parse(strings.TrimSpace(r.BillID))
	if err != nil {
		return service.EmailInput{}, err
	}
	return service.EmailInput{BillID: id, To: r.ToEmail, Subject: r.Subject, Body: r.Body}, nil
}

func (h *Handler) sendUniqueNumberEmail(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input, err := req.input()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bill_id"})
		return
	}

	if err := h.bills.SendUniqueNumberEmail(c.Request.Context(), principal, input); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unique number email sent successfully"})
}

func (h *Handler) sendInvoiceEmail(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input, err := req.input()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bill_id"})
		return
	}

	bill, err := h.bills.SendInvoiceEmail(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email sent successfully", "bill": bill})
}

func (h *Handler) searchBills(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req service.SearchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bills, err := h.bills.Search(c.Request.Context(), principal, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bills": bills, "total": len(bills)})
}

func (h *Handler) invoicePDF(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := billID(c)
	if !ok {
		return
	}

	result, err := h.bills.InvoicePDF(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) accountBills(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	report, err := h.bills.AccountBills(c.Request.Context(), principal, c.Query("completed_at"), c.Query("bl_number"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) exportAccountBills(c *gin.Context) {
	h.export(c, service.ExportFormatXLSX)
}

func (h *Handler) exportAccountBillsPDF(c *gin.Context) {
	h.export(c, service.ExportFormatPDF)
}

func (h *Handler) export(c *gin.Context, format string) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.bills.ExportAccountBills(c.Request.Context(), principal, c.Query("completed_at"), format)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) statsSummary(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	stats, err := h.bills.StatsSummary(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) outstandingBills(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	bills, err := h.bills.OutstandingBills(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bills": bills, "total": len(bills)})
}

func (h *Handler) billsByDate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	daily, err := h.bills.BillsByDate(c.Request.Context(), principal, c.Query("date"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, daily)
}

func (h *Handler) filesByDate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.bills.FilesByDate(c.Request.Context(), principal, c.Query("date"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) completedToday(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.bills.CompletedToday(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) paymentsByDate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.bills.PaymentsByDate(c.Request.Context(), principal, c.Query("date"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required"`
}

// contact is the public website form; it needs no token.
func (h *Handler) contact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields"})
		return
	}

	if err := h.bills.SendContactMessage(c.Request.Context(), service.ContactInput(req)); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message sent successfully!"})
}

// paymentWebhook is called by the gateway, not by users. The raw body must
// carry a valid HMAC signature.
func (h *Handler) paymentWebhook(c *gin.Context) {
	if h.webhookSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment webhook not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if !payment.VerifySignature(h.webhookSecret, body, c.GetHeader(payment.SignatureHeader)) {
		h.log.Warn().Str("client_ip", c.ClientIP()).Msg("payment webhook signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var notification payment.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := h.bills.HandlePaymentNotification(c.Request.Context(), notification)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDelivery):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("outbound delivery failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func billID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bill id"})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func sendFile(c *gin.Context, file *service.FileResult) {
	c.Header("Content-Disposition", "attachment; filename=\""+file.FileName+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
