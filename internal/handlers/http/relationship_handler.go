package http

import (
	"net/http"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// RelationshipHandler exposes likes and subscriptions. Every write goes
// through the toggle service.
type RelationshipHandler struct {
	toggles ports.ToggleService
	reads   ports.AggregationService
}

func NewRelationshipHandler(toggles ports.ToggleService, reads ports.AggregationService) *RelationshipHandler {
	return &RelationshipHandler{
		toggles: toggles,
		reads:   reads,
	}
}

// likeKinds maps the short path segment to the content kind.
var likeKinds = map[string]domain.TargetKind{
	"v": domain.TargetVideo,
	"c": domain.TargetComment,
	"t": domain.TargetTweet,
}

func (h *RelationshipHandler) SetupRoutes(api *gin.RouterGroup, requireAuth, optionalAuth gin.HandlerFunc) {
	likes := api.Group("/likes")
	{
		likes.POST("/toggle/:kind/:targetId", requireAuth, h.ToggleLike)
		likes.GET("/count/:kind/:targetId", optionalAuth, h.CountLikes)
		likes.GET("/videos", requireAuth, h.ListLikedVideos)
	}

	subscriptions := api.Group("/subscriptions")
	{
		subscriptions.POST("/c/:channelId", requireAuth, h.ToggleSubscription)
		subscriptions.GET("/c/:channelId", h.ListChannelSubscribers)
		subscriptions.GET("/c/:channelId/count", h.CountSubscribers)
		subscriptions.GET("/u/:subscriberId", h.ListSubscribedChannels)
	}
}

func likeKind(c *gin.Context, op string) (domain.TargetKind, bool) {
	kind, ok := likeKinds[c.Param("kind")]
	if !ok {
		fail(c, invalid(op, "unknown like target %q, expected v, c or t", c.Param("kind")))
	}
	return kind, ok
}

func toggleView(result *domain.ToggleResult) gin.H {
	return gin.H{
		"applied":     result.Applied,
		"active":      result.Applied == domain.ToggleCreated,
		"target_id":   result.Edge.TargetID,
		"target_kind": result.Edge.TargetKind,
	}
}

func (h *RelationshipHandler) ToggleLike(c *gin.Context) {
	kind, ok := likeKind(c, "toggle_like")
	if !ok {
		return
	}
	result, err := h.toggles.ToggleLike(c.Request.Context(), actor(c), c.Param("targetId"), kind)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toggleView(result))
}

func (h *RelationshipHandler) CountLikes(c *gin.Context) {
	kind, ok := likeKind(c, "count_likes")
	if !ok {
		return
	}
	n, err := h.reads.CountLikes(c.Request.Context(), actor(c), c.Param("targetId"), kind)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target_id": c.Param("targetId"), "target_kind": kind, "likes": n})
}

func (h *RelationshipHandler) ListLikedVideos(c *gin.Context) {
	page, err := pageFromQuery(c, "list_liked_videos")
	if err != nil {
		fail(c, err)
		return
	}
	videos, err := h.reads.ListLikedVideos(c.Request.Context(), actor(c), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos, "page": pageMeta(page, len(videos))})
}

func (h *RelationshipHandler) ToggleSubscription(c *gin.Context) {
	result, err := h.toggles.ToggleSubscription(c.Request.Context(), actor(c), domain.ActorID(c.Param("channelId")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toggleView(result))
}

func (h *RelationshipHandler) CountSubscribers(c *gin.Context) {
	channel := domain.ActorID(c.Param("channelId"))
	n, err := h.reads.CountSubscribers(c.Request.Context(), channel)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel_id": channel, "subscribers": n})
}

func (h *RelationshipHandler) ListChannelSubscribers(c *gin.Context) {
	page, err := pageFromQuery(c, "list_channel_subscribers")
	if err != nil {
		fail(c, err)
		return
	}
	subscribers, err := h.reads.ListChannelSubscribers(c.Request.Context(), domain.ActorID(c.Param("channelId")), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subscribers, "page": pageMeta(page, len(subscribers))})
}

func (h *RelationshipHandler) ListSubscribedChannels(c *gin.Context) {
	page, err := pageFromQuery(c, "list_subscribed_channels")
	if err != nil {
		fail(c, err)
		return
	}
	channels, err := h.reads.ListSubscribedChannels(c.Request.Context(), domain.ActorID(c.Param("subscriberId")), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels, "page": pageMeta(page, len(channels))})
}
