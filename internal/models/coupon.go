package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coupon names are stored uppercased and unique. A zero
// MaximumDiscountAmount means the percentage discount is uncapped.
type Coupon struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                  string             `bson:"name" json:"name"`
	Discount              float64            `bson:"discount" json:"discount"`
	ExpireAt              time.Time          `bson:"expireAt" json:"expireAt"`
	MaximumDiscountAmount float64            `bson:"maximumDiscountAmount,omitempty" json:"maximumDiscountAmount,omitempty"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt" json:"updatedAt"`
}
