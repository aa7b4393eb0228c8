package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title              string               `bson:"title" json:"title"`
	Slug               string               `bson:"slug" json:"slug"`
	Description        string               `bson:"description" json:"description"`
	Quantity           int                  `bson:"quantity" json:"quantity"`
	Sold               int                  `bson:"sold" json:"sold"`
	Price              float64              `bson:"price" json:"price"`
	PriceAfterDiscount float64              `bson:"priceAfterDiscount,omitempty" json:"priceAfterDiscount,omitempty"`
	Colors             []string             `bson:"colors,omitempty" json:"colors,omitempty"`
	ImageCover         string               `bson:"imageCover" json:"imageCover"`
	Images             []string             `bson:"images,omitempty" json:"images,omitempty"`
	Category           primitive.ObjectID   `bson:"category" json:"category"`
	SubCategories      []primitive.ObjectID `bson:"subcategories,omitempty" json:"subcategories,omitempty"`
	Brand              *primitive.ObjectID  `bson:"brand,omitempty" json:"brand,omitempty"`
	RatingsAverage     float64              `bson:"ratingsAverage,omitempty" json:"ratingsAverage,omitempty"`
	RatingsQuantity    int                  `bson:"ratingsQuantity" json:"ratingsQuantity"`
	CreatedAt          time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time            `bson:"updatedAt" json:"updatedAt"`
}
