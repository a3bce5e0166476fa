package models

// InstrumentPayPage is the hosted payment page instrument.
const InstrumentPayPage = "PAY_PAGE"

// PaymentEnvelope describes one outbound payment request before signing.
// Amount is in whole currency units; the signer scales it for the gateway.
type PaymentEnvelope struct {
	MerchantTransactionID string
	MerchantUserID        string
	Name                  string
	Amount                int64
	MobileNumber          string
	InstrumentType        string
}
