package common

// AuthorizationHeaderName carries the bearer token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// Identity roles and statuses.
const (
	RoleUser = "USER"

	StatusActive  = "ACTIVE"
	StatusDeleted = "DELETED"
)
