package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem captures the product price at add-time; later product price
// changes never affect lines already in the cart.
type CartItem struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Color    string             `bson:"color,omitempty" json:"color,omitempty"`
	Price    float64            `bson:"price" json:"price"`
}

// Cart is owned by exactly one user. TotalPriceAfterDiscount and Coupon are
// either both set or both absent; any item mutation clears them.
type Cart struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User                    primitive.ObjectID `bson:"user" json:"user"`
	CartItems               []CartItem         `bson:"cartItems" json:"cartItems"`
	TotalCartPrice          float64            `bson:"totalCartPrice" json:"totalCartPrice"`
	TotalPriceAfterDiscount *float64           `bson:"totalPriceAfterDiscount,omitempty" json:"totalPriceAfterDiscount,omitempty"`
	Coupon                  string             `bson:"coupon,omitempty" json:"coupon,omitempty"`
	CreatedAt               time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt               time.Time          `bson:"updatedAt" json:"updatedAt"`
}
