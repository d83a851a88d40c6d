package domain

import (
	"strings"
	"time"
)

type ActorID string

type Actor struct {
	ID           ActorID
	Username     string
	Email        string
	FullName     string
	Avatar       Asset
	CoverImage   Asset
	PasswordHash string
	RefreshToken string
	WatchHistory []VideoID // most recent first
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActorSummary is the public projection of an Actor. It never carries
// credential fields.
type ActorSummary struct {
	ID         ActorID `json:"id"`
	Username   string  `json:"username"`
	FullName   string  `json:"full_name"`
	Avatar     string  `json:"avatar"`
	CoverImage string  `json:"cover_image,omitempty"`
}

func (a *Actor) Summary() ActorSummary {
	return ActorSummary{
		ID:         a.ID,
		Username:   a.Username,
		FullName:   a.FullName,
		Avatar:     a.Avatar.URL,
		CoverImage: a.CoverImage.URL,
	}
}

func (a *Actor) Owner() ActorID {
	return a.ID
}

// PushHistory moves videoID to the front of the watch history.
func (a *Actor) PushHistory(videoID VideoID, limit int) {
	history := make([]VideoID, 0, len(a.WatchHistory)+1)
	history = append(history, videoID)
	for _, id := range a.WatchHistory {
		if id != videoID {
			history = append(history, id)
		}
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	a.WatchHistory = history
}

// SameActor is the single identifier-comparison rule for ownership and
// identity checks: canonical string equality, empty never matches.
func SameActor(a, b ActorID) bool {
	ca, cb := a.Canonical(), b.Canonical()
	return ca != "" && ca == cb
}

func (id ActorID) Canonical() string {
	return strings.TrimSpace(string(id))
}

func (id ActorID) IsZero() bool {
	return id.Canonical() == ""
}

// NormalizeUsername applies the lookup form used for usernames.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
