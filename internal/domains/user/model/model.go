package model

import "eventasap/shared/model"

const (
	TableName  = "users"
	EntityName = "user"

	FieldID       = "id"
	FieldEmail    = "email"
	FieldFullName = "full_name"
	FieldRole     = "role"
	FieldActive   = "active"
)

// User rows are provisioned by the identity service; this service only reads
// them to resolve booking parties and their roles.
type User struct {
	ID       string  `db:"id"`
	Email    string  `db:"email"`
	FullName *string `db:"full_name"`
	Role     string  `db:"role"`
	Active   bool    `db:"active"`
	model.Metadata
}
