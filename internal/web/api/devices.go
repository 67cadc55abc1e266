package api

import (
	"errors"
	"log"

	"homehub/internal/db"
	"homehub/internal/web/middleware"
	webModels "homehub/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterDeviceRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, dbConn *db.DB) {
	devices := r.Group("/devices")
	devices.Use(middleware.RequireAuth())
	{
		devices.POST("", func(c *gin.Context) {
			var req webModels.AddDeviceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			deviceType, err := dbConn.GetDeviceTypeByID(c, req.TypeID)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					c.JSON(404, gin.H{"error": "Device type not found"})
					return
				}
				log.Printf("WEB: Failed to fetch device type: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch device type"})
				return
			}

			home, err := dbConn.GetHomeByID(c, req.HomeID)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					c.JSON(404, gin.H{"error": "Home not found"})
					return
				}
				log.Printf("WEB: Failed to fetch home: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch home"})
				return
			}

			// New devices start from their type's attribute defaults.
			device, err := dbConn.InsertDevice(c, home.ID, deviceType.ID, req.Name, deviceType.DefaultAttributes)
			if err != nil {
				log.Printf("WEB: Failed to create device: %v", err)
				c.JSON(500, gin.H{"error": "Failed to create device"})
				return
			}

			if err := dbConn.AppendHomeDevice(c, home.ID, device.ID); err != nil {
				log.Printf("WEB: Failed to append device %s to home %s: %v", device.ID, home.ID, err)
			}

			c.JSON(201, device)
		})

		devices.GET("", func(c *gin.Context) {
			homeID := c.Query("home_id")
			if homeID == "" {
				c.JSON(400, gin.H{"error": "home_id is required"})
				return
			}
			list, err := dbConn.GetDevicesByHome(c, homeID)
			if err != nil {
				log.Printf("WEB: Failed to fetch devices: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch devices"})
				return
			}
			c.JSON(200, list)
		})

		devices.GET("/:id", func(c *gin.Context) {
			device, err := dbConn.GetDeviceByID(c, c.Param("id"))
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					c.JSON(404, gin.H{"error": "Device not found"})
					return
				}
				log.Printf("WEB: Failed to fetch device: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch device"})
				return
			}
			c.JSON(200, device)
		})
	}
}
