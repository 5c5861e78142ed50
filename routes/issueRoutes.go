package routes

import (
	"fixmycity-be/auth"
	"fixmycity-be/controllers"
	"fixmycity-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes. The public listing and the single
// issue lookup intentionally skip authentication entirely.
func IssueRoutes(r *gin.Engine, ctrl *controllers.IssueController, authenticate, rateLimit gin.HandlerFunc) {
	citizen := middlewares.RequireRoles(auth.RoleCitizen)
	authority := middlewares.RequireRoles(auth.RoleHeadAuthority)

	issues := r.Group("/issues")
	{
		issues.GET("/public", ctrl.ListPublic)
		issues.POST("", authenticate, citizen, rateLimit, ctrl.Create)
		issues.GET("/my", authenticate, citizen, ctrl.ListMine)
		issues.GET("/authority", authenticate, authority, ctrl.ListForAuthority)
		issues.GET("/analytics", authenticate, authority, ctrl.Analytics)
		issues.POST("/bulk-delete", authenticate, authority, ctrl.BulkDelete)
		issues.GET("/:id", ctrl.GetByID)
		issues.PATCH("/:id/status", authenticate, authority, ctrl.UpdateStatus)
		issues.PATCH("/:id/reassign", authenticate, authority, ctrl.Reassign)
		issues.DELETE("/:id", authenticate, authority, ctrl.Delete)
	}
}
