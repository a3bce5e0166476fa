package models

import "time"

// PaymentModeOnline is recorded when the caller does not name a mode.
const PaymentModeOnline = "ONLINE"

// PaymentTransaction is the ledger row written once the gateway accepts a
// payment. Email scopes reads to the paying identity; UserID is that
// identity's unique id at the time of payment.
type PaymentTransaction struct {
	TransactionID   string    `bson:"transactionId" json:"transactionId"`
	Email           string    `bson:"email" json:"email"`
	UserID          string    `bson:"userId" json:"userId"`
	CourseID        string    `bson:"courseId" json:"courseId"`
	Amount          int64     `bson:"amount" json:"amount"`
	PaymentMode     string    `bson:"paymentMode" json:"paymentMode"`
	Membership      bool      `bson:"membershipTransaction" json:"membershipTransaction"`
	TransactionDate time.Time `bson:"transactionDate" json:"transactionDate"`
}
