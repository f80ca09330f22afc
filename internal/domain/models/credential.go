package models

import "time"

// CredentialsCollection holds password credentials for the local identity
// provider, keyed by folded email.
const CredentialsCollection = "credentials"

// Credential maps a login email to a principal.
type Credential struct {
	Email        string    `bson:"_id"`
	PrincipalID  string    `bson:"principal_id"`
	PasswordHash []byte    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}
