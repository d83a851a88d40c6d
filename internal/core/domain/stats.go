package domain

// ChannelProfile is an actor's public profile with subscription counts
// computed on read.
type ChannelProfile struct {
	Actor           ActorSummary `json:"actor"`
	SubscriberCount int64        `json:"subscriber_count"`
	SubscribedCount int64        `json:"subscribed_count"`
	IsSubscribed    bool         `json:"is_subscribed"`
}

// ChannelStats is the creator dashboard.
type ChannelStats struct {
	CreatorID         ActorID `json:"creator_id"`
	TotalViews        int64   `json:"total_views"`
	TotalSubscribers  int64   `json:"total_subscribers"`
	TotalVideos       int64   `json:"total_videos"`
	TotalVideoLikes   int64   `json:"total_video_likes"`
	TotalTweetLikes   int64   `json:"total_tweet_likes"`
	TotalCommentLikes int64   `json:"total_comment_likes"`
}

// SubscriptionCounts holds both directions of an actor's subscriptions,
// read from a single snapshot.
type SubscriptionCounts struct {
	Subscribers int64
	Subscribed  int64
}

// ContentTotals is what a store reports for one creator's videos.
type ContentTotals struct {
	Videos int64
	Views  int64
}
