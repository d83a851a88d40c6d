package http

import (
	"net/http"
	"strconv"
	"strings"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type VideoHandler struct {
	content ports.ContentService
	reads   ports.AggregationService
}

func NewVideoHandler(content ports.ContentService, reads ports.AggregationService) *VideoHandler {
	return &VideoHandler{
		content: content,
		reads:   reads,
	}
}

func (h *VideoHandler) SetupRoutes(api *gin.RouterGroup, requireAuth, optionalAuth gin.HandlerFunc) {
	videos := api.Group("/videos")
	{
		videos.GET("", h.ListVideos)
		videos.GET("/:videoId", optionalAuth, h.GetVideo)
		videos.POST("/:videoId/views", optionalAuth, h.RecordView)

		videos.POST("", requireAuth, h.PublishVideo)
		videos.PATCH("/:videoId", requireAuth, h.UpdateVideo)
		videos.DELETE("/:videoId", requireAuth, h.DeleteVideo)
		videos.PATCH("/:videoId/publish", requireAuth, h.TogglePublishStatus)
	}
}

// ListVideos lists published videos; ?query= matches titles and ?owner_id=
// narrows to one channel.
func (h *VideoHandler) ListVideos(c *gin.Context) {
	const op = "list_videos"

	page, err := pageFromQuery(c, op)
	if err != nil {
		fail(c, err)
		return
	}
	filter := domain.VideoFilter{
		OwnerID: domain.ActorID(strings.TrimSpace(c.Query("owner_id"))),
		Query:   strings.TrimSpace(c.Query("query")),
	}

	videos, err := h.reads.ListVideos(c.Request.Context(), filter, page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos, "page": pageMeta(page, len(videos))})
}

func (h *VideoHandler) GetVideo(c *gin.Context) {
	video, err := h.content.GetVideo(c.Request.Context(), actor(c), domain.VideoID(c.Param("videoId")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (h *VideoHandler) RecordView(c *gin.Context) {
	video, err := h.content.RecordView(c.Request.Context(), actor(c), domain.VideoID(c.Param("videoId")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

// PublishVideo takes a multipart form: title, description, duration,
// video_file and thumbnail.
func (h *VideoHandler) PublishVideo(c *gin.Context) {
	const op = "publish_video"

	var duration float64
	if raw := c.PostForm("duration"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fail(c, invalid(op, "duration must be a number of seconds, got %q", raw))
			return
		}
		duration = d
	}

	videoFile, err := saveUpload(c, op, "video_file", true)
	if err != nil {
		fail(c, err)
		return
	}
	defer videoFile.Remove()

	thumbnail, err := saveUpload(c, op, "thumbnail", true)
	if err != nil {
		fail(c, err)
		return
	}
	defer thumbnail.Remove()

	video, err := h.content.PublishVideo(c.Request.Context(), actor(c), ports.PublishVideoInput{
		Title:         c.PostForm("title"),
		Description:   c.PostForm("description"),
		Duration:      duration,
		VideoPath:     videoFile.Path,
		ThumbnailPath: thumbnail.Path,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"video": video})
}

// UpdateVideo takes a multipart form; title, description and thumbnail are
// each optional.
func (h *VideoHandler) UpdateVideo(c *gin.Context) {
	const op = "update_video"

	thumbnail, err := saveUpload(c, op, "thumbnail", false)
	if err != nil {
		fail(c, err)
		return
	}
	defer thumbnail.Remove()

	in := ports.UpdateVideoInput{ThumbnailPath: uploadPath(thumbnail)}
	if title, ok := c.GetPostForm("title"); ok {
		in.Title = &title
	}
	if description, ok := c.GetPostForm("description"); ok {
		in.Description = &description
	}

	video, err := h.content.UpdateVideo(c.Request.Context(), actor(c), domain.VideoID(c.Param("videoId")), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	if err := h.content.DeleteVideo(c.Request.Context(), actor(c), domain.VideoID(c.Param("videoId"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *VideoHandler) TogglePublishStatus(c *gin.Context) {
	video, err := h.content.TogglePublishStatus(c.Request.Context(), actor(c), domain.VideoID(c.Param("videoId")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}
