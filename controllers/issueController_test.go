package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fixmycity-be/auth"
	"fixmycity-be/classifier"
	"fixmycity-be/models"
)

type fakeStore struct {
	issues map[primitive.ObjectID]*models.Issue

	created []*models.Issue
	updates []bson.M
	logs    []*models.IssueLog
	deleted []primitive.ObjectID

	createErr error
	logErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{issues: map[primitive.ObjectID]*models.Issue{}}
}

func (f *fakeStore) Create(_ context.Context, issue *models.Issue) error {
	if f.createErr != nil {
		return f.createErr
	}
	issue.ID = primitive.NewObjectID()
	f.created = append(f.created, issue)
	f.issues[issue.ID] = issue
	return nil
}

func (f *fakeStore) ListByCitizen(_ context.Context, citizenID string) ([]models.Issue, error) {
	out := []models.Issue{}
	for _, issue := range f.issues {
		if issue.CitizenID == citizenID {
			out = append(out, *issue)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context, limit int64) ([]models.Issue, error) {
	out := []models.Issue{}
	for _, issue := range f.issues {
		out = append(out, *issue)
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, nil
	}
	copied := *issue
	return &copied, nil
}

func (f *fakeStore) Update(_ context.Context, id primitive.ObjectID, fields bson.M) error {
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	if _, ok := f.issues[id]; !ok {
		return 0, nil
	}
	delete(f.issues, id)
	f.deleted = append(f.deleted, id)
	return 1, nil
}

func (f *fakeStore) DeleteMany(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := f.issues[id]; ok {
			delete(f.issues, id)
			f.deleted = append(f.deleted, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) AppendLog(_ context.Context, entry *models.IssueLog) error {
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStore) Analytics(context.Context) (*models.IssueAnalytics, error) {
	return &models.IssueAnalytics{TotalIssues: int64(len(f.issues))}, nil
}

type fakeClassifier struct {
	result *classifier.Result
	calls  int
}

func (f *fakeClassifier) Classify(context.Context, string, string) *classifier.Result {
	f.calls++
	return f.result
}

var (
	citizenPrincipal   = auth.Principal{ID: "citizen-1", Role: auth.RoleCitizen}
	authorityPrincipal = auth.Principal{ID: "authority-1", Role: auth.RoleHeadAuthority}
)

func newTestRouter(ctrl *IssueController, principal *auth.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if principal != nil {
		r.Use(func(c *gin.Context) {
			c.Set("principal", *principal)
		})
	}
	r.POST("/issues", ctrl.Create)
	r.GET("/issues/public", ctrl.ListPublic)
	r.GET("/issues/my", ctrl.ListMine)
	r.GET("/issues/authority", ctrl.ListForAuthority)
	r.POST("/issues/bulk-delete", ctrl.BulkDelete)
	r.GET("/issues/:id", ctrl.GetByID)
	r.PATCH("/issues/:id/status", ctrl.UpdateStatus)
	r.PATCH("/issues/:id/reassign", ctrl.Reassign)
	r.DELETE("/issues/:id", ctrl.Delete)
	return r
}

func perform(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validCreateBody = `{
	"image_url": "https://img.example.com/pothole.jpg",
	"description": "big pothole near the market",
	"location_lat": 19.076,
	"location_lng": 72.8777
}`

func TestCreateMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "missing image_url",
			body:  `{"description":"d","location_lat":1,"location_lng":2}`,
			field: "image_url",
		},
		{
			name:  "missing description",
			body:  `{"image_url":"u","location_lat":1,"location_lng":2}`,
			field: "description",
		},
		{
			name:  "missing location_lat",
			body:  `{"image_url":"u","description":"d","location_lng":2}`,
			field: "location_lat",
		},
		{
			name:  "missing location_lng",
			body:  `{"image_url":"u","description":"d","location_lat":1}`,
			field: "location_lng",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			cls := &fakeClassifier{result: &classifier.Result{IssueType: "pothole", AssignedAuthority: "road"}}
			r := newTestRouter(NewIssueController(store, cls), &citizenPrincipal)

			w := perform(r, http.MethodPost, "/issues", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.field)
			assert.Zero(t, cls.calls, "classifier must not run on validation failure")
			assert.Empty(t, store.created)
		})
	}
}

func TestCreateSuccess(t *testing.T) {
	store := newFakeStore()
	cls := &fakeClassifier{result: &classifier.Result{IssueType: "pothole", AssignedAuthority: "road"}}
	r := newTestRouter(NewIssueController(store, cls), &citizenPrincipal)

	w := perform(r, http.MethodPost, "/issues", validCreateBody)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.created, 1)

	issue := store.created[0]
	assert.Equal(t, "citizen-1", issue.CitizenID)
	assert.Equal(t, models.StatusReported, issue.Status)
	assert.Equal(t, "pothole", issue.IssueType)
	assert.Equal(t, "road", issue.AssignedDepartment)
	assert.Equal(t, issue.AssignedDepartment, issue.Department)
	assert.False(t, issue.Classification.IsManual)
	assert.Nil(t, issue.ResolvedAt)
}

func TestCreateNotACivicIssue(t *testing.T) {
	store := newFakeStore()
	cls := &fakeClassifier{result: &classifier.Result{
		IssueType:         classifier.NotACivicIssue,
		AssignedAuthority: classifier.NoAuthority,
		Error:             "the image shows a cat",
	}}
	r := newTestRouter(NewIssueController(store, cls), &citizenPrincipal)

	w := perform(r, http.MethodPost, "/issues", validCreateBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "the image shows a cat")
	assert.Empty(t, store.created, "no record may be written")
}

func TestCreateManualOverridePrecedence(t *testing.T) {
	store := newFakeStore()
	cls := &fakeClassifier{result: &classifier.Result{IssueType: "pothole", AssignedAuthority: "road"}}
	r := newTestRouter(NewIssueController(store, cls), &citizenPrincipal)

	body := `{
		"image_url": "https://img.example.com/p.jpg",
		"description": "flooded street",
		"location_lat": 19.0,
		"location_lng": 72.8,
		"manual_department": "drainage"
	}`
	w := perform(r, http.MethodPost, "/issues", body)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.created, 1)

	issue := store.created[0]
	assert.Equal(t, "drainage", issue.AssignedDepartment)
	assert.Equal(t, "drainage", issue.Department)
	assert.True(t, issue.Classification.IsManual)
	// The blob keeps the AI's own answer.
	assert.Equal(t, "road", issue.Classification.AssignedAuthority)
}

func TestCreateManualIssueTypeMapsDepartment(t *testing.T) {
	store := newFakeStore()
	cls := &fakeClassifier{result: &classifier.Result{IssueType: "other", AssignedAuthority: "head"}}
	r := newTestRouter(NewIssueController(store, cls), &citizenPrincipal)

	body := `{
		"image_url": "https://img.example.com/p.jpg",
		"description": "dark street at night",
		"location_lat": 19.0,
		"location_lng": 72.8,
		"manual_issue_type": "damagestreetlight"
	}`
	w := perform(r, http.MethodPost, "/issues", body)
	require.Equal(t, http.StatusCreated, w.Code)

	issue := store.created[0]
	assert.Equal(t, "damagestreetlight", issue.IssueType)
	assert.Equal(t, "streetlight", issue.AssignedDepartment)
	assert.True(t, issue.Classification.IsManual)
}

func TestCreateFallbackClassificationStillPersists(t *testing.T) {
	store := newFakeStore()
	cls := &fakeClassifier{result: &classifier.Result{
		IssueType:         "other",
		AssignedAuthority: "head",
		Error:             "model timeout",
	}}
	r := newTestRouter(NewIssueController(store, cls), &citizenPrincipal)

	w := perform(r, http.MethodPost, "/issues", validCreateBody)
	require.Equal(t, http.StatusCreated, w.Code)
	issue := store.created[0]
	assert.Equal(t, "other", issue.IssueType)
	assert.Equal(t, "head", issue.AssignedDepartment)
}

func TestGetByID(t *testing.T) {
	store := newFakeStore()
	id := primitive.NewObjectID()
	store.issues[id] = &models.Issue{ID: id, Description: "streetlight out"}
	r := newTestRouter(NewIssueController(store, &fakeClassifier{}), nil)

	t.Run("found without auth", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/issues/"+id.Hex(), "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "streetlight out")
	})

	t.Run("absent", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/issues/"+primitive.NewObjectID().Hex(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/issues/not-an-id", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListPublicNeedsNoAuth(t *testing.T) {
	store := newFakeStore()
	id := primitive.NewObjectID()
	store.issues[id] = &models.Issue{ID: id, Description: "garbage pile"}
	r := newTestRouter(NewIssueController(store, &fakeClassifier{}), nil)

	w := perform(r, http.MethodGet, "/issues/public", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "garbage pile")
}

func TestUpdateStatus(t *testing.T) {
	newIssue := func(store *fakeStore) primitive.ObjectID {
		id := primitive.NewObjectID()
		store.issues[id] = &models.Issue{ID: id, Status: models.StatusReported}
		return id
	}

	t.Run("invalid status", func(t *testing.T) {
		store := newFakeStore()
		id := newIssue(store)
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		w := perform(r, http.MethodPatch, "/issues/"+id.Hex()+"/status", `{"status":"done"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, store.updates)
	})

	t.Run("absent issue", func(t *testing.T) {
		store := newFakeStore()
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		w := perform(r, http.MethodPatch, "/issues/"+primitive.NewObjectID().Hex()+"/status", `{"status":"in_progress"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("resolved without image leaves resolved_at unset", func(t *testing.T) {
		store := newFakeStore()
		id := newIssue(store)
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		w := perform(r, http.MethodPatch, "/issues/"+id.Hex()+"/status", `{"status":"resolved"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, store.updates, 1)
		fields := store.updates[0]
		assert.NotContains(t, fields, "resolvedAt")
		assert.NotContains(t, fields, "resolvedImageUrl")
	})

	t.Run("resolved with image sets both together", func(t *testing.T) {
		store := newFakeStore()
		id := newIssue(store)
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		body := `{"status":"resolved","resolved_image_url":"https://img.example.com/fixed.jpg"}`
		w := perform(r, http.MethodPatch, "/issues/"+id.Hex()+"/status", body)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, store.updates, 1)
		fields := store.updates[0]
		assert.Contains(t, fields, "resolvedAt")
		assert.Equal(t, "https://img.example.com/fixed.jpg", fields["resolvedImageUrl"])
	})

	t.Run("appends exactly one log entry", func(t *testing.T) {
		store := newFakeStore()
		id := newIssue(store)
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		w := perform(r, http.MethodPatch, "/issues/"+id.Hex()+"/status", `{"status":"in_progress"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, store.logs, 1)
		entry := store.logs[0]
		assert.Equal(t, models.StatusReported, entry.PreviousStatus)
		assert.Equal(t, models.StatusInProgress, entry.NewStatus)
		assert.Equal(t, "authority-1", entry.UpdatedBy)
	})

	t.Run("log failure does not fail the update", func(t *testing.T) {
		store := newFakeStore()
		store.logErr = fmt.Errorf("log collection unavailable")
		id := newIssue(store)
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		w := perform(r, http.MethodPatch, "/issues/"+id.Hex()+"/status", `{"status":"resolved"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, store.updates, 1)
	})

	t.Run("regression to reported is allowed", func(t *testing.T) {
		store := newFakeStore()
		id := primitive.NewObjectID()
		store.issues[id] = &models.Issue{ID: id, Status: models.StatusResolved}
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		w := perform(r, http.MethodPatch, "/issues/"+id.Hex()+"/status", `{"status":"reported"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestReassign(t *testing.T) {
	store := newFakeStore()
	id := primitive.NewObjectID()
	store.issues[id] = &models.Issue{ID: id, AssignedDepartment: "road", Department: "road"}
	r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

	t.Run("overwrites both department attributes", func(t *testing.T) {
		w := perform(r, http.MethodPatch, "/issues/"+id.Hex()+"/reassign", `{"department":"external-contractor"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, store.updates, 1)
		fields := store.updates[0]
		assert.Equal(t, "external-contractor", fields["assignedDepartment"])
		assert.Equal(t, "external-contractor", fields["department"])
	})

	t.Run("empty department rejected", func(t *testing.T) {
		w := perform(r, http.MethodPatch, "/issues/"+id.Hex()+"/reassign", `{"department":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("absent issue", func(t *testing.T) {
		w := perform(r, http.MethodPatch, "/issues/"+primitive.NewObjectID().Hex()+"/reassign", `{"department":"road"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDelete(t *testing.T) {
	store := newFakeStore()
	id := primitive.NewObjectID()
	store.issues[id] = &models.Issue{ID: id}
	r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

	w := perform(r, http.MethodDelete, "/issues/"+id.Hex(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = perform(r, http.MethodDelete, "/issues/"+id.Hex(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkDelete(t *testing.T) {
	t.Run("deletes all named issues", func(t *testing.T) {
		store := newFakeStore()
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		store.issues[a] = &models.Issue{ID: a}
		store.issues[b] = &models.Issue{ID: b}
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		body := fmt.Sprintf(`{"issueIds":["%s","%s"]}`, a.Hex(), b.Hex())
		w := perform(r, http.MethodPost, "/issues/bulk-delete", body)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, store.issues)
	})

	t.Run("empty array rejected", func(t *testing.T) {
		store := newFakeStore()
		id := primitive.NewObjectID()
		store.issues[id] = &models.Issue{ID: id}
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		w := perform(r, http.MethodPost, "/issues/bulk-delete", `{"issueIds":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Len(t, store.issues, 1, "nothing may be deleted")
	})

	t.Run("non-array rejected", func(t *testing.T) {
		store := newFakeStore()
		id := primitive.NewObjectID()
		store.issues[id] = &models.Issue{ID: id}
		r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

		w := perform(r, http.MethodPost, "/issues/bulk-delete", `{"issueIds":"all"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Len(t, store.issues, 1)
	})
}

func TestListForAuthorityLimit(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		id := primitive.NewObjectID()
		store.issues[id] = &models.Issue{ID: id}
	}
	r := newTestRouter(NewIssueController(store, &fakeClassifier{}), &authorityPrincipal)

	t.Run("numeric limit applies", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/issues/authority?limit=2", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non-numeric limit ignored", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/issues/authority?limit=lots", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3, strings.Count(w.Body.String(), `"id"`))
	})
}
