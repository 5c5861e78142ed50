package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueStatus enum
type IssueStatus string

const (
	StatusReported   IssueStatus = "reported"
	StatusInProgress IssueStatus = "in_progress"
	StatusResolved   IssueStatus = "resolved"
)

// ValidStatus reports whether s is one of the three lifecycle statuses.
// Ordering between statuses is intentionally not enforced.
func ValidStatus(s string) bool {
	switch IssueStatus(s) {
	case StatusReported, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Classification captures the AI output stored with an issue, plus whether
// the category/department was manually overridden by the submitter.
type Classification struct {
	IssueType         string `bson:"issueType" json:"issue_type"`
	AssignedAuthority string `bson:"assignedAuthority" json:"assigned_authority"`
	IsManual          bool   `bson:"isManual" json:"is_manual"`
	Error             string `bson:"error,omitempty" json:"error,omitempty"`
}

// Issue represents a civic issue reported by a citizen.
// AssignedDepartment and Department always hold the same value; the second
// attribute is kept for backward compatibility with older clients.
type Issue struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CitizenID          string             `bson:"citizenId" json:"citizen_id"`
	ImageURL           string             `bson:"imageUrl" json:"image_url"`
	Description        string             `bson:"description" json:"description"`
	LocationLat        float64            `bson:"locationLat" json:"location_lat"`
	LocationLng        float64            `bson:"locationLng" json:"location_lng"`
	IssueType          string             `bson:"issueType" json:"issue_type"`
	AssignedDepartment string             `bson:"assignedDepartment" json:"assigned_department"`
	Department         string             `bson:"department" json:"department"`
	Status             IssueStatus        `bson:"status" json:"status"`
	ResolvedImageURL   *string            `bson:"resolvedImageUrl,omitempty" json:"resolved_image_url,omitempty"`
	ResolvedAt         *time.Time         `bson:"resolvedAt,omitempty" json:"resolved_at,omitempty"`
	Classification     Classification     `bson:"classification" json:"classification"`
	CreatedAt          time.Time          `bson:"createdAt" json:"created_at"`
}

// CategoryCount is one bucket of the analytics aggregation.
type CategoryCount struct {
	Name  string `bson:"name" json:"name"`
	Count int64  `bson:"count" json:"count"`
}

// IssueAnalytics is the authority dashboard summary.
type IssueAnalytics struct {
	TotalIssues int64           `json:"totalIssues"`
	OpenIssues  int64           `json:"openIssues"`
	ByCategory  []CategoryCount `json:"issuesByCategory"`
	ByStatus    []CategoryCount `json:"issuesByStatus"`
	Last7Days   []DayCount      `json:"last7Days"`
}

// DayCount is the number of issues created on a given day.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
