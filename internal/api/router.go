package api

import (
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler) *gin.Engine {

	router := gin.Default()

	apiRoutes := router.Group("/api/sms")
	{
		apiRoutes.POST("/create", h.createReminderHandler)
		apiRoutes.GET("/list/:uuid", h.getReminderHandler)
		apiRoutes.DELETE("/delete/:uuid", h.deleteReminderHandler)
		apiRoutes.GET("/sent", h.getSentRemindersHandler)
		apiRoutes.PUT("/toggle-job", h.toggleJobHandler)
	}

	router.GET("/health", h.healthHandler)
	router.GET("/", h.agentCreateReminderHandler)
	router.POST("/", h.agentCreateReminderHandler)

	return router
}
