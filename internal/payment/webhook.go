package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/nurpe/logistics-bills/internal/model"
)

const SignatureHeader = "X-Signature"

const (
	PhaseInitial = "initial"
	PhaseFinal   = "final"
)

// Notification is the capture callback sent by the Allinpay gateway.
// TransactionID carries the bill's CTN number.
type Notification struct {
	TransactionID string      `json:"transaction_id"`
	Amount        model.Money `json:"amount"`
	Currency      string      `json:"currency"`
	Status        string      `json:"status"`
	CustomerEmail string      `json:"customer_email"`
	PaymentPhase  string      `json:"payment_phase"`
}

// Phase classifies the capture against the bill total. An explicit
// payment_phase wins; otherwise the amount must be within one cent of the
// 85% or 15% share. It returns "" when neither matches.
func (n Notification) Phase(total model.Money) string {
	switch strings.ToLower(strings.TrimSpace(n.PaymentPhase)) {
	case PhaseInitial:
		return PhaseInitial
	case PhaseFinal:
		return PhaseFinal
	}

	captured := total.Percent(100 - ReservePercent)
	if within(n.Amount, captured, 1) {
		return PhaseInitial
	}
	if within(n.Amount, total-captured, 1) {
		return PhaseFinal
	}
	return ""
}

func within(a, b, tolerance model.Money) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(Sign(secret, body))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(signature, "sha256=")))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
