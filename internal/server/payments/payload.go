// Package payments builds, signs and submits payment requests to the
// external payment gateway.
package payments

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/google/uuid"
)

const (
	redirectModePOST  = "POST"
	checksumSeparator = "###"
)

// Merchant is the static part of every payload.
type Merchant struct {
	ID               string
	RedirectURL      string
	CallbackURL      string
	AmountMultiplier int64
}

type paymentInstrument struct {
	Type string `json:"type"`
}

// payload is the gateway's request schema. The redirect and callback URLs
// are omitted when not configured.
type payload struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Name                  string            `json:"name"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl,omitempty"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl,omitempty"`
	MobileNumber          string            `json:"mobileNumber"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

// maxAmount is the largest whole-unit amount whose scaled value fits int64.
// A multiplier of one or less never grows the amount.
func maxAmount(multiplier int64) int64 {
	if multiplier <= 1 {
		return math.MaxInt64
	}
	return math.MaxInt64 / multiplier
}

// BuildPayload serializes env to JSON and base64-encodes it. The amount is
// scaled by the merchant's multiplier (minor currency units); an amount
// that is not positive or whose scaled value overflows int64 is
// ErrInvalidAmount.
func BuildPayload(m Merchant, env models.PaymentEnvelope) (string, error) {
	if env.Amount <= 0 || env.Amount > maxAmount(m.AmountMultiplier) {
		return "", fmt.Errorf("%w: %d", ErrInvalidAmount, env.Amount)
	}

	instrument := env.InstrumentType
	if instrument == "" {
		instrument = models.InstrumentPayPage
	}

	b, err := json.Marshal(payload{
		MerchantID:            m.ID,
		MerchantTransactionID: env.MerchantTransactionID,
		MerchantUserID:        env.MerchantUserID,
		Name:                  env.Name,
		Amount:                env.Amount * m.AmountMultiplier,
		RedirectURL:           m.RedirectURL,
		RedirectMode:          redirectModePOST,
		CallbackURL:           m.CallbackURL,
		MobileNumber:          env.MobileNumber,
		PaymentInstrument:     paymentInstrument{Type: instrument},
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Sign returns hex(sha256(payload + endpointPath + secret + "###" + keyIndex))
// followed by "###" and the key index. The gateway defines this scheme; it
// is a plain hash over a concatenation, not an HMAC.
func Sign(payload, endpointPath, secret string, keyIndex int) string {
	idx := strconv.Itoa(keyIndex)
	sum := sha256.Sum256([]byte(payload + endpointPath + secret + checksumSeparator + idx))
	return hex.EncodeToString(sum[:]) + checksumSeparator + idx
}

// NewMerchantTransactionID returns a gateway-safe unique id (alphanumeric,
// at most 35 characters).
func NewMerchantTransactionID() string {
	id := uuid.New()
	return "MT" + hex.EncodeToString(id[:])
}
