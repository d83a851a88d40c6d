package http

import (
	"net/http"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type PlaylistHandler struct {
	playlists ports.PlaylistService
	reads     ports.AggregationService
}

func NewPlaylistHandler(playlists ports.PlaylistService, reads ports.AggregationService) *PlaylistHandler {
	return &PlaylistHandler{
		playlists: playlists,
		reads:     reads,
	}
}

func (h *PlaylistHandler) SetupRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	playlists := api.Group("/playlists")
	{
		playlists.GET("/user/:userId", h.ListUserPlaylists)
		playlists.GET("/:playlistId", h.GetPlaylist)

		playlists.POST("", requireAuth, h.CreatePlaylist)
		playlists.PATCH("/:playlistId", requireAuth, h.UpdatePlaylist)
		playlists.DELETE("/:playlistId", requireAuth, h.DeletePlaylist)
		playlists.PATCH("/add/:videoId/:playlistId", requireAuth, h.AddVideo)
		playlists.PATCH("/remove/:videoId/:playlistId", requireAuth, h.RemoveVideo)
	}
}

type CreatePlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdatePlaylistRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *PlaylistHandler) CreatePlaylist(c *gin.Context) {
	var req CreatePlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("create_playlist", "invalid request format"))
		return
	}
	playlist, err := h.playlists.Create(c.Request.Context(), actor(c), req.Name, req.Description)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"playlist": playlist})
}

func (h *PlaylistHandler) GetPlaylist(c *gin.Context) {
	playlist, err := h.playlists.Get(c.Request.Context(), domain.PlaylistID(c.Param("playlistId")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlist": playlist})
}

func (h *PlaylistHandler) UpdatePlaylist(c *gin.Context) {
	var req UpdatePlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("update_playlist", "invalid request format"))
		return
	}
	playlist, err := h.playlists.Update(c.Request.Context(), actor(c), domain.PlaylistID(c.Param("playlistId")), req.Name, req.Description)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlist": playlist})
}

func (h *PlaylistHandler) DeletePlaylist(c *gin.Context) {
	if err := h.playlists.Delete(c.Request.Context(), actor(c), domain.PlaylistID(c.Param("playlistId"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PlaylistHandler) AddVideo(c *gin.Context) {
	playlist, err := h.playlists.AddVideo(c.Request.Context(), actor(c),
		domain.PlaylistID(c.Param("playlistId")), domain.VideoID(c.Param("videoId")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlist": playlist})
}

func (h *PlaylistHandler) RemoveVideo(c *gin.Context) {
	playlist, err := h.playlists.RemoveVideo(c.Request.Context(), actor(c),
		domain.PlaylistID(c.Param("playlistId")), domain.VideoID(c.Param("videoId")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlist": playlist})
}

func (h *PlaylistHandler) ListUserPlaylists(c *gin.Context) {
	page, err := pageFromQuery(c, "list_user_playlists")
	if err != nil {
		fail(c, err)
		return
	}
	playlists, err := h.reads.ListUserPlaylists(c.Request.Context(), domain.ActorID(c.Param("userId")), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlists": playlists, "page": pageMeta(page, len(playlists))})
}
