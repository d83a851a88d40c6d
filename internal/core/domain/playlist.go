package domain

import "time"

type PlaylistID string

type Playlist struct {
	ID          PlaylistID `json:"id"`
	OwnerID     ActorID    `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Videos      []VideoID  `json:"videos"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p *Playlist) Owner() ActorID { return p.OwnerID }

func (p *Playlist) Contains(videoID VideoID) bool {
	for _, id := range p.Videos {
		if id == videoID {
			return true
		}
	}
	return false
}

// Owned is any resource carrying an owning actor.
type Owned interface {
	Owner() ActorID
}
