package api

import (
	"context"
	"errors"
	"log"

	"homehub/internal/db"
	"homehub/internal/rules"
	"homehub/internal/web/middleware"
	webModels "homehub/internal/web/models"

	"github.com/gin-gonic/gin"
)

// RuleNotifier is what the routes need from the rule registry: making a
// freshly registered rule visible to the pipeline.
type RuleNotifier interface {
	RefreshRule(ctx context.Context, ruleID string) error
}

func RegisterEventRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, dbConn *db.DB, notifier RuleNotifier) {
	events := r.Group("/events")
	events.Use(middleware.RequireAuth())
	{
		events.POST("", func(c *gin.Context) {
			var req webModels.AddEventRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			// Reject malformed conditions at registration so the pipeline
			// never sees them.
			if _, err := rules.ParseCondition(req.Condition); err != nil {
				c.JSON(400, gin.H{"error": "Invalid condition: " + err.Error()})
				return
			}

			enabled := true
			if req.Enabled != nil {
				enabled = *req.Enabled
			}

			rule, err := dbConn.InsertRule(c, req.DeviceID, req.Name, req.Condition, req.Commands, enabled)
			if err != nil {
				log.Printf("WEB: Failed to register event: %v", err)
				c.JSON(500, gin.H{"error": "Failed to register event"})
				return
			}

			if err := notifier.RefreshRule(c, rule.ID); err != nil {
				// The periodic resync will pick the rule up anyway.
				log.Printf("WEB: Failed to refresh associations for rule %s: %v", rule.ID, err)
			}

			c.JSON(201, rule)
		})

		events.GET("", func(c *gin.Context) {
			deviceID := c.Query("device_id")
			if deviceID == "" {
				c.JSON(400, gin.H{"error": "device_id is required"})
				return
			}
			list, err := dbConn.GetRulesForDevice(c, deviceID)
			if err != nil {
				log.Printf("WEB: Failed to fetch events: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch events"})
				return
			}
			c.JSON(200, list)
		})

		events.GET("/:id", func(c *gin.Context) {
			rule, err := dbConn.GetRuleByID(c, c.Param("id"))
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					c.JSON(404, gin.H{"error": "Event not found"})
					return
				}
				log.Printf("WEB: Failed to fetch event: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch event"})
				return
			}
			c.JSON(200, rule)
		})
	}
}
