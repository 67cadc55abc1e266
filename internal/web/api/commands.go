package api

import (
	"context"
	"errors"
	"log"

	"homehub/internal/db"
	"homehub/internal/dispatch"
	"homehub/internal/web/middleware"
	webModels "homehub/internal/web/models"

	"github.com/gin-gonic/gin"
)

// CommandTrigger is the dispatcher surface the manual trigger uses.
type CommandTrigger interface {
	Dispatch(ctx context.Context, commandID string) error
}

func RegisterCommandRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, dbConn *db.DB, trigger CommandTrigger) {
	commands := r.Group("/commands")
	commands.Use(middleware.RequireAuth())
	{
		commands.POST("", func(c *gin.Context) {
			var req webModels.AddCommandRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			command, err := dbConn.InsertCommand(c, req.DeviceID, req.Name, req.Code, req.CodeMessage)
			if err != nil {
				log.Printf("WEB: Failed to create command: %v", err)
				c.JSON(500, gin.H{"error": "Failed to create command"})
				return
			}
			c.JSON(201, command)
		})

		commands.GET("/:id", func(c *gin.Context) {
			command, err := dbConn.GetCommandByID(c, c.Param("id"))
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					c.JSON(404, gin.H{"error": "Command not found"})
					return
				}
				log.Printf("WEB: Failed to fetch command: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch command"})
				return
			}
			c.JSON(200, command)
		})

		// Operator override: publish a command directly, no rule evaluation.
		commands.POST("/:id/trigger", func(c *gin.Context) {
			if err := trigger.Dispatch(c, c.Param("id")); err != nil {
				if errors.Is(err, dispatch.ErrCommandNotFound) {
					c.JSON(404, gin.H{"error": "Command not found"})
					return
				}
				log.Printf("WEB: Manual trigger failed: %v", err)
				c.JSON(500, gin.H{"error": "Failed to trigger command"})
				return
			}
			c.JSON(200, gin.H{"status": "OK"})
		})
	}
}
