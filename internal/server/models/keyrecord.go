package models

// KeyRecord stores the base64-encoded AES key for one identity. It lives in
// its own collection/table, related to User by email.
type KeyRecord struct {
	Email     string `bson:"email"`
	SecretKey string `bson:"secretKey"`
}
