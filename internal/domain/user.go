package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTrainer || r == RoleClient
}

// User is an account (either a Trainer or a Client). The role is fixed at
// creation and exactly one matching profile exists per user.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"` // Unique
	FirstName    string             `bson:"firstName" json:"firstName"`
	LastName     string             `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Email        string             `bson:"email,omitempty" json:"email,omitempty"` // Unique, sparse
	PasswordHash string             `bson:"passwordHash,omitempty" json:"-"`        // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	TelegramID   *int64             `bson:"telegramId,omitempty" json:"telegramId,omitempty"` // Unique, sparse
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsTrainer() bool {
	return u.Role == RoleTrainer
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

// FullName joins first and last name the way the UI shows them.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID primitive.ObjectID
	Role   Role
}
