package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fixmycity-be/models"
)

// IssueService owns all reads and writes on the issues and issue_logs
// collections.
type IssueService struct {
	issues *mongo.Collection
	logs   *mongo.Collection
}

// NewIssueService builds the service on an injected database handle.
func NewIssueService(db *mongo.Database) *IssueService {
	return &IssueService{
		issues: db.Collection("issues"),
		logs:   db.Collection("issue_logs"),
	}
}

// Create persists a new issue, filling in its id and creation timestamp.
func (s *IssueService) Create(ctx context.Context, issue *models.Issue) error {
	issue.ID = primitive.NewObjectID()
	issue.CreatedAt = time.Now()
	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("failed to insert issue: %w", err)
	}
	return nil
}

// ListByCitizen returns all issues owned by the citizen, newest first.
func (s *IssueService) ListByCitizen(ctx context.Context, citizenID string) ([]models.Issue, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.issues.Find(ctx, bson.M{"citizenId": citizenID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("failed to decode issues: %w", err)
	}
	return issues, nil
}

// ListAll returns every issue, newest first. limit <= 0 means no limit.
func (s *IssueService) ListAll(ctx context.Context, limit int64) ([]models.Issue, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}
	cursor, err := s.issues.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("failed to decode issues: %w", err)
	}
	return issues, nil
}

// GetByID returns the issue or (nil, nil) when no such record exists.
func (s *IssueService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load issue: %w", err)
	}
	return &issue, nil
}

// Update applies the given field set to one issue.
func (s *IssueService) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	if _, err := s.issues.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields}); err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}
	return nil
}

// Delete removes one issue and returns how many records matched.
func (s *IssueService) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.issues.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("failed to delete issue: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteMany removes all matching issues in one operation.
func (s *IssueService) DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	res, err := s.issues.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete issues: %w", err)
	}
	return res.DeletedCount, nil
}

// AppendLog writes one audit row to the status-change log.
func (s *IssueService) AppendLog(ctx context.Context, entry *models.IssueLog) error {
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()
	if _, err := s.logs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert issue log: %w", err)
	}
	return nil
}

// Analytics aggregates the authority dashboard summary.
func (s *IssueService) Analytics(ctx context.Context) (*models.IssueAnalytics, error) {
	byCategory, err := s.groupCount(ctx, "$issueType")
	if err != nil {
		return nil, err
	}
	byStatus, err := s.groupCount(ctx, "$status")
	if err != nil {
		return nil, err
	}

	totalIssues, err := s.issues.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}
	openIssues, err := s.issues.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []string{
			string(models.StatusReported),
			string(models.StatusInProgress),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count open issues: %w", err)
	}

	var last7Days []models.DayCount
	for i := 6; i >= 0; i-- {
		day := time.Now().AddDate(0, 0, -i)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		nextDay := day.AddDate(0, 0, 1)

		count, err := s.issues.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{"$gte": day, "$lt": nextDay},
		})
		if err != nil {
			count = 0
		}
		last7Days = append(last7Days, models.DayCount{
			Date:  day.Format("2006-01-02"),
			Count: count,
		})
	}

	return &models.IssueAnalytics{
		TotalIssues: totalIssues,
		OpenIssues:  openIssues,
		ByCategory:  byCategory,
		ByStatus:    byStatus,
		Last7Days:   last7Days,
	}, nil
}

func (s *IssueService) groupCount(ctx context.Context, field string) ([]models.CategoryCount, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": field, "count": bson.M{"$sum": 1}}},
		{"$project": bson.M{"name": "$_id", "count": 1, "_id": 0}},
	}
	cursor, err := s.issues.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate issues: %w", err)
	}
	defer cursor.Close(ctx)

	var counts []models.CategoryCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation: %w", err)
	}
	return counts, nil
}
