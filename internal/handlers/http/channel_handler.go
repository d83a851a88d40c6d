package http

import (
	"net/http"

	"vidtube/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// ChannelHandler serves the public channel page, the caller's watch history
// and the creator dashboard.
type ChannelHandler struct {
	reads ports.AggregationService
}

func NewChannelHandler(reads ports.AggregationService) *ChannelHandler {
	return &ChannelHandler{reads: reads}
}

func (h *ChannelHandler) SetupRoutes(api *gin.RouterGroup, requireAuth, optionalAuth gin.HandlerFunc) {
	users := api.Group("/users")
	{
		users.GET("/c/:username", optionalAuth, h.ChannelProfile)
		users.GET("/history", requireAuth, h.WatchHistory)
	}

	dashboard := api.Group("/dashboard", requireAuth)
	{
		dashboard.GET("/stats", h.ChannelStats)
		dashboard.GET("/videos", h.ChannelVideos)
	}
}

func (h *ChannelHandler) ChannelProfile(c *gin.Context) {
	profile, err := h.reads.ChannelProfile(c.Request.Context(), c.Param("username"), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": profile})
}

func (h *ChannelHandler) WatchHistory(c *gin.Context) {
	history, err := h.reads.WatchHistory(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *ChannelHandler) ChannelStats(c *gin.Context) {
	stats, err := h.reads.ChannelStats(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *ChannelHandler) ChannelVideos(c *gin.Context) {
	page, err := pageFromQuery(c, "list_channel_videos")
	if err != nil {
		fail(c, err)
		return
	}
	videos, err := h.reads.ListChannelVideos(c.Request.Context(), actor(c), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos, "page": pageMeta(page, len(videos))})
}
