package domain

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort keys understood by stores.
const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortViews     = "views"
	SortTitle     = "title"
	SortDuration  = "duration"
	SortName      = "name"
)

// PageRequest is a 1-indexed page of a sorted listing.
type PageRequest struct {
	Page      int
	PageSize  int
	SortBy    string
	Direction SortDirection
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p PageRequest) Limit() int {
	return p.PageSize
}

// Validate checks page bounds and resolves sort defaults against the allowed
// keys. The first allowed key is the default.
func (p PageRequest) Validate(op string, maxPageSize int, allowedSort ...string) (PageRequest, error) {
	if p.Page < 1 {
		return p, InvalidArgument(op, "page must be a positive integer, got %d", p.Page)
	}
	if p.PageSize < 1 {
		return p, InvalidArgument(op, "page size must be a positive integer, got %d", p.PageSize)
	}
	if maxPageSize > 0 && p.PageSize > maxPageSize {
		return p, InvalidArgument(op, "page size %d exceeds maximum %d", p.PageSize, maxPageSize)
	}

	if p.SortBy == "" && len(allowedSort) > 0 {
		p.SortBy = allowedSort[0]
	}
	if len(allowedSort) > 0 {
		ok := false
		for _, key := range allowedSort {
			if key == p.SortBy {
				ok = true
				break
			}
		}
		if !ok {
			return p, InvalidArgument(op, "unsupported sort key %q", p.SortBy)
		}
	}

	switch p.Direction {
	case "":
		p.Direction = SortDesc
	case SortAsc, SortDesc:
	default:
		return p, InvalidArgument(op, "sort direction must be asc or desc, got %q", p.Direction)
	}
	return p, nil
}

// VideoFilter narrows video listings.
type VideoFilter struct {
	OwnerID       ActorID
	Query         string
	PublishedOnly bool
}
