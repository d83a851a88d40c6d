package domain

import "time"

type EdgeKind string

const (
	EdgeLike         EdgeKind = "like"
	EdgeSubscription EdgeKind = "subscription"
)

type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetTweet   TargetKind = "tweet"
	TargetComment TargetKind = "comment"
	TargetActor   TargetKind = "actor"
)

// LikeTargetKinds lists the content kinds a Like may point at.
var LikeTargetKinds = []TargetKind{TargetVideo, TargetTweet, TargetComment}

func (k TargetKind) Likeable() bool {
	switch k {
	case TargetVideo, TargetTweet, TargetComment:
		return true
	}
	return false
}

// EdgeKey is the uniqueness key of an edge: at most one live edge exists per
// distinct key.
type EdgeKey struct {
	Kind       EdgeKind
	Source     ActorID
	TargetID   string
	TargetKind TargetKind
}

// LikeKey builds the key of a Like edge.
func LikeKey(source ActorID, targetID string, kind TargetKind) EdgeKey {
	return EdgeKey{Kind: EdgeLike, Source: source, TargetID: targetID, TargetKind: kind}
}

// SubscriptionKey builds the key of a Subscription edge (subscriber -> creator).
func SubscriptionKey(subscriber, creator ActorID) EdgeKey {
	return EdgeKey{Kind: EdgeSubscription, Source: subscriber, TargetID: string(creator), TargetKind: TargetActor}
}

type Edge struct {
	EdgeKey
	CreatedAt time.Time
}

type ToggleOutcome string

const (
	ToggleCreated ToggleOutcome = "created"
	ToggleRemoved ToggleOutcome = "removed"
)

// ToggleResult reports what a toggle did. Edge.CreatedAt is set only when the
// toggle created the edge; a removal carries the key alone.
type ToggleResult struct {
	Applied ToggleOutcome `json:"applied"`
	Edge    Edge          `json:"edge"`
}

// EdgeEvent is emitted after a toggle has been applied.
type EdgeEvent struct {
	Applied     ToggleOutcome `json:"applied"`
	Kind        EdgeKind      `json:"kind"`
	Source      ActorID       `json:"source"`
	TargetID    string        `json:"target_id"`
	TargetKind  TargetKind    `json:"target_kind"`
	TargetOwner ActorID       `json:"target_owner"`
	At          time.Time     `json:"at"`
}

// ToggleRequest names one edge to flip. TargetKind is ignored for
// subscriptions.
type ToggleRequest struct {
	Kind       EdgeKind
	Source     ActorID
	TargetID   string
	TargetKind TargetKind
}

// Key resolves the uniqueness key of the requested edge.
func (r ToggleRequest) Key() EdgeKey {
	if r.Kind == EdgeSubscription {
		return SubscriptionKey(r.Source, ActorID(r.TargetID))
	}
	return LikeKey(r.Source, r.TargetID, r.TargetKind)
}
