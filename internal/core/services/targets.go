package services

import (
	"context"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
)

// visibleTarget looks up the target of a like or subscription as viewer sees
// it and returns its owner. An unpublished video, and the comments under it,
// are NotFound to everyone but the video's owner.
func visibleTarget(ctx context.Context, repos ports.Repositories, op string, viewer domain.ActorID, targetID string, kind domain.TargetKind) (domain.ActorID, error) {
	switch kind {
	case domain.TargetVideo:
		return visibleVideoOwner(ctx, repos, op, viewer, domain.VideoID(targetID))
	case domain.TargetTweet:
		t, err := repos.Tweets.GetByID(ctx, domain.TweetID(targetID))
		if err != nil {
			return "", lookupError(op, err, "tweet %s not found", targetID)
		}
		return t.OwnerID, nil
	case domain.TargetComment:
		c, err := repos.Comments.GetByID(ctx, domain.CommentID(targetID))
		if err != nil {
			return "", lookupError(op, err, "comment %s not found", targetID)
		}
		if _, err := visibleVideoOwner(ctx, repos, op, viewer, c.VideoID); err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return "", domain.NotFound(op, "comment %s not found", targetID)
			}
			return "", err
		}
		return c.OwnerID, nil
	case domain.TargetActor:
		a, err := repos.Actors.GetByID(ctx, domain.ActorID(targetID))
		if err != nil {
			return "", lookupError(op, err, "channel %s not found", targetID)
		}
		return a.ID, nil
	}
	return "", domain.InvalidArgument(op, "unknown target kind %q", kind)
}

func visibleVideoOwner(ctx context.Context, repos ports.Repositories, op string, viewer domain.ActorID, id domain.VideoID) (domain.ActorID, error) {
	v, err := repos.Videos.GetByID(ctx, id)
	if err != nil {
		return "", lookupError(op, err, "video %s not found", id)
	}
	if !v.VisibleTo(viewer) {
		return "", domain.NotFound(op, "video %s not found", id)
	}
	return v.OwnerID, nil
}
