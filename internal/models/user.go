package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles assignable to a user account.
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// Address represents a single shipping address entry for a user.
type Address struct {
	ID         primitive.ObjectID `bson:"id,omitempty" json:"id"`
	Alias      string             `bson:"alias,omitempty" json:"alias,omitempty"`
	Details    string             `bson:"details,omitempty" json:"details,omitempty"`
	Phone      string             `bson:"phone,omitempty" json:"phone,omitempty"`
	City       string             `bson:"city,omitempty" json:"city,omitempty"`
	PostalCode string             `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
	Country    string             `bson:"country,omitempty" json:"country,omitempty"`
}

// User represents the application user account. Password and reset-code
// fields never serialize to clients.
type User struct {
	ID                    primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name                  string               `bson:"name" json:"name"`
	Slug                  string               `bson:"slug,omitempty" json:"slug,omitempty"`
	Email                 string               `bson:"email" json:"email"`
	Phone                 string               `bson:"phone,omitempty" json:"phone,omitempty"`
	ProfileImg            string               `bson:"profileImg,omitempty" json:"profileImg,omitempty"`
	Password              string               `bson:"password" json:"-"`
	PasswordChangedAt     *time.Time           `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetCode     string               `bson:"passwordResetCode,omitempty" json:"-"`
	PasswordResetExpires  *time.Time           `bson:"passwordResetExpires,omitempty" json:"-"`
	PasswordResetVerified *bool                `bson:"passwordResetVerified,omitempty" json:"-"`
	Role                  string               `bson:"role" json:"role"`
	IsActive              bool                 `bson:"isActive" json:"isActive"`
	Wishlist              []primitive.ObjectID `bson:"wishlist,omitempty" json:"wishlist,omitempty"`
	Addresses             []Address            `bson:"addresses" json:"addresses"`
	CreatedAt             time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time            `bson:"updatedAt" json:"updatedAt"`
}
