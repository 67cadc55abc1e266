package api

import (
	"errors"
	"log"

	"homehub/internal/db"
	"homehub/internal/models"
	"homehub/internal/web/middleware"
	webModels "homehub/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterDeviceTypeRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, dbConn *db.DB) {
	types := r.Group("/device-types")
	types.Use(middleware.RequireAuth())
	{
		types.POST("", func(c *gin.Context) {
			var req webModels.AddDeviceTypeRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if req.DefaultAttributes == nil {
				req.DefaultAttributes = models.Attributes{}
			}

			deviceType, err := dbConn.InsertDeviceType(c, req.Name, req.DefaultAttributes)
			if err != nil {
				log.Printf("WEB: Failed to create device type: %v", err)
				c.JSON(500, gin.H{"error": "Failed to create device type"})
				return
			}
			c.JSON(201, deviceType)
		})

		types.GET("/:id", func(c *gin.Context) {
			deviceType, err := dbConn.GetDeviceTypeByID(c, c.Param("id"))
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					c.JSON(404, gin.H{"error": "Device type not found"})
					return
				}
				log.Printf("WEB: Failed to fetch device type: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch device type"})
				return
			}
			c.JSON(200, deviceType)
		})
	}
}
