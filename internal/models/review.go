package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review belongs to one user and one product. A user may review a given
// product once; product rating aggregates are recomputed after every write.
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title,omitempty" json:"title,omitempty"`
	Rating    float64            `bson:"rating" json:"rating"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Product   primitive.ObjectID `bson:"product" json:"product"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
