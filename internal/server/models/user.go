// Package models defines server-side data models persisted by the repositories.
package models

import "time"

// User is an identity keyed by email. Password holds the ciphertext produced
// under the identity's KeyRecord; Token and TokenExpiry are always written
// together.
type User struct {
	Email       string     `bson:"email" json:"email"`
	UniqueID    string     `bson:"uniqueId" json:"uniqueId"`
	FirstName   string     `bson:"firstName" json:"firstName"`
	LastName    string     `bson:"lastName" json:"lastName"`
	Phone       string     `bson:"phone" json:"phone"`
	Address     string     `bson:"address" json:"address"`
	Role        string     `bson:"role" json:"role"`
	Status      string     `bson:"status" json:"status"`
	Password    string     `bson:"password" json:"-"`
	Token       string     `bson:"token,omitempty" json:"token,omitempty"`
	TokenExpiry *time.Time `bson:"tokenExpiry,omitempty" json:"tokenExpiry,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
