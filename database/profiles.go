package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"fixmycity-be/models"
)

// ProfileService reads profile records for authenticated principals.
type ProfileService struct {
	profiles *mongo.Collection
}

// NewProfileService builds the service on an injected database handle.
func NewProfileService(db *mongo.Database) *ProfileService {
	return &ProfileService{profiles: db.Collection("profiles")}
}

// GetByUserID looks up a profile by the identity provider's user id.
// A missing profile is not an error: it returns (nil, nil).
func (s *ProfileService) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.profiles.FindOne(ctx, bson.M{"userId": userID}).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}
