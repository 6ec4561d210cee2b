package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentlink"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
)

type StripeGenerator struct {
	apiKey   string
	currency string
}

func NewStripeGenerator(apiKey, currency string) *StripeGenerator {
	return &StripeGenerator{apiKey: apiKey, currency: currency}
}

// GenerateLink creates a one-off product, its price and a payment link.
func (s *StripeGenerator) GenerateLink(_ context.Context, req LinkRequest) (string, error) {
	if req.Amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	stripe.Key = s.apiKey

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	name := "Bill of lading " + req.BLNumber
	if req.Description != "" {
		name = req.Description
	}
	productParams := &stripe.ProductParams{
		Name:        stripe.String(name),
		Description: stripe.String(req.BillID.String()),
	}
	prod, err := product.New(productParams)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe product: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(int64(req.Amount)),
		Product:    stripe.String(prod.ID),
	}
	pr, err := price.New(priceParams)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe price: %w", err)
	}

	linkParams := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{
				Price:    stripe.String(pr.ID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	linkParams.AddMetadata("bill_id", req.BillID.String())
	linkParams.AddMetadata("bl_number", req.BLNumber)
	if req.UniqueNumber != "" {
		linkParams.AddMetadata("unique_number", req.UniqueNumber)
	}

	link, err := paymentlink.New(linkParams)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe payment link: %w", err)
	}
	return link.URL, nil
}

var _ LinkGenerator = (*StripeGenerator)(nil)
