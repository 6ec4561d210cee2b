package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/logistics-bills/internal/model"
)

// Share of the bill total requested by a default payment link.
const ReservePercent = 15

type LinkRequest struct {
	BillID        uuid.UUID
	BLNumber      string
	UniqueNumber  string
	CustomerEmail string
	Description   string
	Amount        model.Money
	Currency      string
}

type LinkGenerator interface {
	GenerateLink(ctx context.Context, req LinkRequest) (string, error)
}

// StaticGenerator builds links against a fixed checkout page without calling
// a provider.
type StaticGenerator struct {
	baseURL  string
	currency string
	now      func() time.Time
}

func NewStaticGenerator(baseURL, currency string) *StaticGenerator {
	return &StaticGenerator{
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: currency,
		now:      time.Now,
	}
}

func (g *StaticGenerator) GenerateLink(_ context.Context, req LinkRequest) (string, error) {
	if req.BillID == uuid.Nil {
		return "", fmt.Errorf("bill id is required")
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	currency := req.Currency
	if currency == "" {
		currency = g.currency
	}
	ctn := req.UniqueNumber
	if ctn == "" {
		ctn = "None"
	}

	query := url.Values{}
	query.Set("amount", req.Amount.String())
	query.Set("currency", strings.ToUpper(currency))
	query.Set("ctn", ctn)
	if req.CustomerEmail != "" {
		query.Set("email", req.CustomerEmail)
	}
	if req.Description != "" {
		query.Set("description", req.Description)
	}
	query.Set("timestamp", g.now().UTC().Format("20060102150405"))

	return g.baseURL + "/" + req.BillID.String() + "?" + query.Encode(), nil
}

var _ LinkGenerator = (*StaticGenerator)(nil)
