package api

import (
	"errors"
	"log"

	"homehub/internal/db"
	"homehub/internal/web/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterHomeRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, dbConn *db.DB) {
	homes := r.Group("/homes")
	homes.Use(middleware.RequireAuth())
	{
		homes.POST("", func(c *gin.Context) {
			userID := c.GetString("user_id")

			home, err := dbConn.InsertHome(c, userID)
			if err != nil {
				log.Printf("WEB: Failed to create home: %v", err)
				c.JSON(500, gin.H{"error": "Failed to create home"})
				return
			}

			if err := dbConn.SetUserHome(c, userID, home.ID, "owner"); err != nil {
				log.Printf("WEB: Failed to assign home %s to user %s: %v", home.ID, userID, err)
			}

			c.JSON(201, home)
		})

		homes.GET("/:id", func(c *gin.Context) {
			home, err := dbConn.GetHomeByID(c, c.Param("id"))
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					c.JSON(404, gin.H{"error": "Home not found"})
					return
				}
				log.Printf("WEB: Failed to fetch home: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch home"})
				return
			}
			c.JSON(200, home)
		})
	}
}
