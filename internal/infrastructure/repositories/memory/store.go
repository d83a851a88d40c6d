package memory

import (
	"sort"
	"strings"
	"sync"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
)

type targetRef struct {
	kind       domain.EdgeKind
	targetID   string
	targetKind domain.TargetKind
}

type sourceRef struct {
	kind       domain.EdgeKind
	source     domain.ActorID
	targetKind domain.TargetKind
}

// Store keeps every aggregate and edge in process memory behind one
// RWMutex, so a read lock is a consistent snapshot across all of them.
type Store struct {
	mu sync.RWMutex

	actors     map[domain.ActorID]*domain.Actor
	byUsername map[string]domain.ActorID
	byEmail    map[string]domain.ActorID
	videos     map[domain.VideoID]*domain.Video
	tweets     map[domain.TweetID]*domain.Tweet
	comments   map[domain.CommentID]*domain.Comment
	playlists  map[domain.PlaylistID]*domain.Playlist
	edges      map[domain.EdgeKey]domain.Edge
	edgesByTgt map[targetRef]map[domain.EdgeKey]struct{}
	edgesBySrc map[sourceRef]map[domain.EdgeKey]struct{}
}

func NewStore() *Store {
	return &Store{
		actors:     make(map[domain.ActorID]*domain.Actor),
		byUsername: make(map[string]domain.ActorID),
		byEmail:    make(map[string]domain.ActorID),
		videos:     make(map[domain.VideoID]*domain.Video),
		tweets:     make(map[domain.TweetID]*domain.Tweet),
		comments:   make(map[domain.CommentID]*domain.Comment),
		playlists:  make(map[domain.PlaylistID]*domain.Playlist),
		edges:      make(map[domain.EdgeKey]domain.Edge),
		edgesByTgt: make(map[targetRef]map[domain.EdgeKey]struct{}),
		edgesBySrc: make(map[sourceRef]map[domain.EdgeKey]struct{}),
	}
}

// Repositories exposes the store through the core ports.
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Actors:        &ActorRepository{s: s},
		Videos:        &VideoRepository{s: s},
		Tweets:        &TweetRepository{s: s},
		Comments:      &CommentRepository{s: s},
		Playlists:     &PlaylistRepository{s: s},
		Relationships: &RelationshipRepository{s: s},
	}
}

// page slices an already sorted result.
func page[T any](items []T, req domain.PageRequest) []T {
	offset := req.Offset()
	if offset >= len(items) {
		return []T{}
	}
	end := offset + req.Limit()
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}

// sortBy orders items by less, reversed for descending pages. id breaks ties
// so equal keys page deterministically.
func sortBy[T any](items []T, dir domain.SortDirection, less func(a, b T) int, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		c := less(items[i], items[j])
		if c == 0 {
			c = strings.Compare(id(items[i]), id(items[j]))
		}
		if dir == domain.SortAsc {
			return c < 0
		}
		return c > 0
	})
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
