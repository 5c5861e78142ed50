package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fixmycity-be/classifier"
	"fixmycity-be/metrics"
	"fixmycity-be/middlewares"
	"fixmycity-be/models"
)

// IssueStore is the persistence surface the controller needs. GetByID
// returns (nil, nil) when no record exists.
type IssueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	ListByCitizen(ctx context.Context, citizenID string) ([]models.Issue, error)
	ListAll(ctx context.Context, limit int64) ([]models.Issue, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Update(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error)
	AppendLog(ctx context.Context, entry *models.IssueLog) error
	Analytics(ctx context.Context) (*models.IssueAnalytics, error)
}

// IssueClassifier decides category and department for a new report.
type IssueClassifier interface {
	Classify(ctx context.Context, imageURL, description string) *classifier.Result
}

// IssueController handles all issue endpoints.
type IssueController struct {
	store      IssueStore
	classifier IssueClassifier
}

// NewIssueController wires the controller to its store and classifier.
func NewIssueController(store IssueStore, cls IssueClassifier) *IssueController {
	return &IssueController{store: store, classifier: cls}
}

type createIssueInput struct {
	ImageURL        string   `json:"image_url"`
	Description     string   `json:"description"`
	LocationLat     *float64 `json:"location_lat"`
	LocationLng     *float64 `json:"location_lng"`
	ManualIssueType string   `json:"manual_issue_type"`
	ManualDept      string   `json:"manual_department"`
	IsManual        bool     `json:"is_manual"`
}

// firstMissingField names the first required field that is absent, or "".
func (in *createIssueInput) firstMissingField() string {
	switch {
	case in.ImageURL == "":
		return "image_url"
	case in.Description == "":
		return "description"
	case in.LocationLat == nil:
		return "location_lat"
	case in.LocationLng == nil:
		return "location_lng"
	}
	return ""
}

// Create classifies the report and persists it with status reported.
// A "not a civic issue" verdict rejects the request without writing anything.
func (ic *IssueController) Create(c *gin.Context) {
	principal, ok := middlewares.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input createIssueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if field := input.firstMissingField(); field != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " is required"})
		return
	}

	result := ic.classifier.Classify(c.Request.Context(), input.ImageURL, input.Description)
	if result.NotCivic() {
		c.JSON(http.StatusBadRequest, gin.H{"error": classifier.NotACivicIssue, "details": result.Error})
		return
	}

	isManual := input.IsManual || input.ManualIssueType != "" || input.ManualDept != ""
	issueType := result.IssueType
	department := result.AssignedAuthority
	if input.ManualIssueType != "" {
		issueType = input.ManualIssueType
		department = classifier.DepartmentFor(issueType)
	}
	if input.ManualDept != "" {
		department = input.ManualDept
	}

	issue := &models.Issue{
		CitizenID:          principal.ID,
		ImageURL:           input.ImageURL,
		Description:        input.Description,
		LocationLat:        *input.LocationLat,
		LocationLng:        *input.LocationLng,
		IssueType:          issueType,
		AssignedDepartment: department,
		Department:         department,
		Status:             models.StatusReported,
		Classification: models.Classification{
			IssueType:         result.IssueType,
			AssignedAuthority: result.AssignedAuthority,
			IsManual:          isManual,
			Error:             result.Error,
		},
	}

	if err := ic.store.Create(c.Request.Context(), issue); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create issue", "details": err.Error()})
		return
	}
	metrics.IssuesCreatedTotal.WithLabelValues(department).Inc()

	c.JSON(http.StatusCreated, issue)
}

// ListMine returns the authenticated citizen's own reports, newest first.
func (ic *IssueController) ListMine(c *gin.Context) {
	principal, ok := middlewares.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	issues, err := ic.store.ListByCitizen(c.Request.Context(), principal.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, issues)
}

// ListForAuthority returns all reports, newest first. A non-numeric limit
// query parameter is ignored.
func (ic *IssueController) ListForAuthority(c *gin.Context) {
	var limit int64
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.ParseInt(limitStr, 10, 64); err == nil {
			limit = parsed
		}
	}

	issues, err := ic.store.ListAll(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, issues)
}

// ListPublic is the transparency wall: the same unrestricted listing with no
// authentication at all.
func (ic *IssueController) ListPublic(c *gin.Context) {
	issues, err := ic.store.ListAll(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, issues)
}

// GetByID is an unrestricted single-issue read.
func (ic *IssueController) GetByID(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	issue, err := ic.store.GetByID(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue", "details": err.Error()})
		return
	}
	if issue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}
	c.JSON(http.StatusOK, issue)
}

type updateStatusInput struct {
	Status           string `json:"status"`
	ResolvedImageURL string `json:"resolved_image_url"`
}

// UpdateStatus moves an issue between lifecycle statuses and appends a
// best-effort audit row. A resolved-image is only stored together with a
// resolution timestamp, and only on resolve.
func (ic *IssueController) UpdateStatus(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	var input updateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if !models.ValidStatus(input.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid status",
			"details": "status must be one of reported, in_progress, resolved",
		})
		return
	}
	newStatus := models.IssueStatus(input.Status)

	issue, err := ic.store.GetByID(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue", "details": err.Error()})
		return
	}
	if issue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	fields := bson.M{"status": newStatus}
	var resolvedImage *string
	if newStatus == models.StatusResolved && input.ResolvedImageURL != "" {
		now := time.Now()
		resolvedImage = &input.ResolvedImageURL
		fields["resolvedImageUrl"] = input.ResolvedImageURL
		fields["resolvedAt"] = now
		issue.ResolvedImageURL = resolvedImage
		issue.ResolvedAt = &now
	}

	if err := ic.store.Update(c.Request.Context(), issueID, fields); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update issue", "details": err.Error()})
		return
	}

	principal, _ := middlewares.GetPrincipal(c)
	logEntry := &models.IssueLog{
		IssueID:          issueID,
		PreviousStatus:   issue.Status,
		NewStatus:        newStatus,
		UpdatedBy:        principal.ID,
		ResolvedImageURL: resolvedImage,
	}
	if err := ic.store.AppendLog(c.Request.Context(), logEntry); err != nil {
		// Best-effort: the status update already succeeded.
		log.WithError(err).WithField("issue_id", issueID.Hex()).Warn("failed to append issue log")
	}

	issue.Status = newStatus
	c.JSON(http.StatusOK, issue)
}

type reassignInput struct {
	Department string `json:"department"`
}

// Reassign overwrites the assigned department and its mirror attribute. The
// value is not checked against the classifier's department set; authorities
// route to teams the classifier has never heard of.
func (ic *IssueController) Reassign(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	var input reassignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if input.Department == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "department is required"})
		return
	}

	issue, err := ic.store.GetByID(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue", "details": err.Error()})
		return
	}
	if issue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	fields := bson.M{
		"assignedDepartment": input.Department,
		"department":         input.Department,
	}
	if err := ic.store.Update(c.Request.Context(), issueID, fields); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reassign issue", "details": err.Error()})
		return
	}

	issue.AssignedDepartment = input.Department
	issue.Department = input.Department
	c.JSON(http.StatusOK, issue)
}

// Delete removes one issue.
func (ic *IssueController) Delete(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	deleted, err := ic.store.Delete(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete issue", "details": err.Error()})
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkDeleteInput struct {
	IssueIDs []string `json:"issueIds"`
}

// BulkDelete removes all issues named in a non-empty id array.
func (ic *IssueController) BulkDelete(c *gin.Context) {
	var input bulkDeleteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(input.IssueIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "issueIds must be a non-empty array"})
		return
	}

	ids := make([]primitive.ObjectID, 0, len(input.IssueIDs))
	for _, raw := range input.IssueIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID", "details": raw})
			return
		}
		ids = append(ids, id)
	}

	if _, err := ic.store.DeleteMany(c.Request.Context(), ids); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete issues", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Analytics returns the authority dashboard summary.
func (ic *IssueController) Analytics(c *gin.Context) {
	analytics, err := ic.store.Analytics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analytics)
}
