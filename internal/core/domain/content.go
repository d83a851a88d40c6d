package domain

import "time"

type VideoID string
type TweetID string
type CommentID string

// Asset is a file held by the external asset store.
type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

func (a Asset) IsZero() bool {
	return a.URL == "" && a.PublicID == ""
}

type Video struct {
	ID          VideoID   `json:"id"`
	OwnerID     ActorID   `json:"owner_id"`
	VideoFile   Asset     `json:"video_file"`
	Thumbnail   Asset     `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (v *Video) Owner() ActorID { return v.OwnerID }

// VisibleTo reports whether viewer may see the video: anyone once it is
// published, only its owner before that.
func (v *Video) VisibleTo(viewer ActorID) bool {
	return v.IsPublished || SameActor(v.OwnerID, viewer)
}

type Tweet struct {
	ID        TweetID   `json:"id"`
	OwnerID   ActorID   `json:"owner_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Tweet) Owner() ActorID { return t.OwnerID }

type Comment struct {
	ID        CommentID `json:"id"`
	OwnerID   ActorID   `json:"owner_id"`
	VideoID   VideoID   `json:"video_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Comment) Owner() ActorID { return c.OwnerID }

// WatchedVideo is a watch-history entry joined with its creator's public
// profile.
type WatchedVideo struct {
	Video   *Video       `json:"video"`
	Creator ActorSummary `json:"creator"`
}
