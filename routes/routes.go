package routes

import (
	"net/http"

	"github.com/Faraz011/Hindustan-Bills-sub001/controllers"
	"github.com/Faraz011/Hindustan-Bills-sub001/metrics"
	"github.com/Faraz011/Hindustan-Bills-sub001/middleware"
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.Engine, controller *controllers.NotificationController, internalToken string) {
	// Public
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "notification-service"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Service to service
	internal := router.Group("/notifications", middleware.InternalToken(internalToken))
	{
		internal.POST("/order-completed", controller.OrderCompleted)
	}

	// Shop owners and admins
	shops := router.Group("/shops/:shop_id", middleware.AuthMiddleware(), middleware.ShopOwnerOrAdmin())
	{
		shops.GET("/channels", controller.GetShopChannels)
		shops.PUT("/channels", controller.PutShopChannels)
	}
}
