package http

import (
	"net/http"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// DiscussionHandler serves tweets and video comments.
type DiscussionHandler struct {
	content ports.ContentService
	reads   ports.AggregationService
}

func NewDiscussionHandler(content ports.ContentService, reads ports.AggregationService) *DiscussionHandler {
	return &DiscussionHandler{
		content: content,
		reads:   reads,
	}
}

func (h *DiscussionHandler) SetupRoutes(api *gin.RouterGroup, requireAuth, optionalAuth gin.HandlerFunc) {
	tweets := api.Group("/tweets")
	{
		tweets.GET("/user/:userId", h.ListUserTweets)
		tweets.POST("", requireAuth, h.CreateTweet)
		tweets.PATCH("/:tweetId", requireAuth, h.UpdateTweet)
		tweets.DELETE("/:tweetId", requireAuth, h.DeleteTweet)
	}

	comments := api.Group("/comments")
	{
		comments.GET("/:videoId", optionalAuth, h.ListVideoComments)
		comments.POST("/:videoId", requireAuth, h.AddComment)
		comments.PATCH("/c/:commentId", requireAuth, h.UpdateComment)
		comments.DELETE("/c/:commentId", requireAuth, h.DeleteComment)
	}
}

type ContentRequest struct {
	Content string `json:"content"`
}

func bindContent(c *gin.Context, op string) (string, bool) {
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid(op, "invalid request format"))
		return "", false
	}
	return req.Content, true
}

func (h *DiscussionHandler) ListUserTweets(c *gin.Context) {
	page, err := pageFromQuery(c, "list_user_tweets")
	if err != nil {
		fail(c, err)
		return
	}
	tweets, err := h.reads.ListUserTweets(c.Request.Context(), domain.ActorID(c.Param("userId")), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tweets": tweets, "page": pageMeta(page, len(tweets))})
}

func (h *DiscussionHandler) CreateTweet(c *gin.Context) {
	content, ok := bindContent(c, "create_tweet")
	if !ok {
		return
	}
	tweet, err := h.content.CreateTweet(c.Request.Context(), actor(c), content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tweet": tweet})
}

func (h *DiscussionHandler) UpdateTweet(c *gin.Context) {
	content, ok := bindContent(c, "update_tweet")
	if !ok {
		return
	}
	tweet, err := h.content.UpdateTweet(c.Request.Context(), actor(c), domain.TweetID(c.Param("tweetId")), content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tweet": tweet})
}

func (h *DiscussionHandler) DeleteTweet(c *gin.Context) {
	if err := h.content.DeleteTweet(c.Request.Context(), actor(c), domain.TweetID(c.Param("tweetId"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DiscussionHandler) ListVideoComments(c *gin.Context) {
	page, err := pageFromQuery(c, "list_video_comments")
	if err != nil {
		fail(c, err)
		return
	}
	comments, err := h.reads.ListVideoComments(c.Request.Context(), actor(c), domain.VideoID(c.Param("videoId")), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments, "page": pageMeta(page, len(comments))})
}

func (h *DiscussionHandler) AddComment(c *gin.Context) {
	content, ok := bindContent(c, "add_comment")
	if !ok {
		return
	}
	comment, err := h.content.AddComment(c.Request.Context(), actor(c), domain.VideoID(c.Param("videoId")), content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

func (h *DiscussionHandler) UpdateComment(c *gin.Context) {
	content, ok := bindContent(c, "update_comment")
	if !ok {
		return
	}
	comment, err := h.content.UpdateComment(c.Request.Context(), actor(c), domain.CommentID(c.Param("commentId")), content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

func (h *DiscussionHandler) DeleteComment(c *gin.Context) {
	if err := h.content.DeleteComment(c.Request.Context(), actor(c), domain.CommentID(c.Param("commentId"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
