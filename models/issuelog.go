package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueLog is an append-only audit row recording a status change.
// Writing it is best-effort; a failed write never fails the status update.
type IssueLog struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IssueID          primitive.ObjectID `bson:"issueId" json:"issue_id"`
	PreviousStatus   IssueStatus        `bson:"previousStatus" json:"previous_status"`
	NewStatus        IssueStatus        `bson:"newStatus" json:"new_status"`
	UpdatedBy        string             `bson:"updatedBy" json:"updated_by"`
	ResolvedImageURL *string            `bson:"resolvedImageUrl,omitempty" json:"resolved_image_url,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"created_at"`
}
