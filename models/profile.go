package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile holds the role and department for an authenticated principal.
// The record is keyed by the identity provider's user id, not by _id.
type Profile struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"userId" json:"user_id"`
	Email      string             `bson:"email" json:"email"`
	Role       string             `bson:"role" json:"role"`
	Department string             `bson:"department" json:"department"`
	CreatedAt  time.Time          `bson:"createdAt" json:"created_at"`
}
