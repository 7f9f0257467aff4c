// Package pagination implements keyset (cursor) pagination over quizzes ordered
// by (created_at DESC, id DESC).
package pagination

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Page size bounds.
const (
	DefaultPageSize = 15
	MaxPageSize     = 100
)

const cursorVersion = 1

// Filter selects quizzes by lifecycle state.
type Filter string

const (
	FilterActive  Filter = "active"
	FilterExpired Filter = "expired"
)

// ParseFilter maps a query value onto a Filter. Anything unrecognised lists active quizzes.
func ParseFilter(s string) Filter {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterExpired:
		return FilterExpired
	default:
		return FilterActive
	}
}

// Cursor is the position after the last item of a page.
type Cursor struct {
	V  int       `json:"v"`
	T  int64     `json:"t"`
	ID uuid.UUID `json:"id"`
}

// At returns the cursor positioned on an item with the given key.
func At(createdAt time.Time, id uuid.UUID) Cursor {
	return Cursor{V: cursorVersion, T: createdAt.UnixMicro(), ID: id}
}

// CreatedAt is the cursor's timestamp.
func (c Cursor) CreatedAt() time.Time {
	return time.UnixMicro(c.T).UTC()
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// ErrBadCursor is returned by DecodeCursor for any token it cannot use.
var ErrBadCursor = errors.New("malformed cursor")

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	if c.V != cursorVersion {
		return Cursor{}, fmt.Errorf("%w: version %d", ErrBadCursor, c.V)
	}
	if c.T == 0 || c.ID == uuid.Nil {
		return Cursor{}, fmt.Errorf("%w: missing fields", ErrBadCursor)
	}
	return c, nil
}

// Request is a page request as received from a client.
type Request struct {
	Filter   Filter
	PageSize int
	Cursor   string
}

// Size returns the page size clamped to [1, MaxPageSize], defaulting when unset.
func (r Request) Size() int {
	switch {
	case r.PageSize == 0:
		return DefaultPageSize
	case r.PageSize < 1:
		return 1
	case r.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return r.PageSize
	}
}

// Query is what a Source must answer: up to Limit items matching Filter at Now,
// strictly after After in listing order.
type Query struct {
	Filter Filter
	Now    time.Time
	After  *Cursor
	Limit  int
}

// Keyed items expose their sort key.
type Keyed interface {
	Key() (time.Time, uuid.UUID)
}

// Source reads ordered, filtered slices and counts from a store.
type Source[T Keyed] interface {
	Slice(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, f Filter, now time.Time) (int, error)
}

// Page is one page of results.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
	Total      int    `json:"total"`
}

// Paginate fetches one page from src. A cursor that cannot be decoded restarts
// from the first page.
func Paginate[T Keyed](ctx context.Context, src Source[T], req Request, now time.Time, logger *zap.Logger) (Page[T], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := Query{Filter: req.Filter, Now: now, Limit: req.Size()}
	if q.Filter != FilterExpired {
		q.Filter = FilterActive
	}
	if req.Cursor != "" {
		c, err := DecodeCursor(req.Cursor)
		if err != nil {
			logger.Debug("ignoring cursor", zap.Error(err))
		} else {
			q.After = &c
		}
	}

	items, err := src.Slice(ctx, q)
	if err != nil {
		return Page[T]{}, fmt.Errorf("fetch page: %w", err)
	}
	total, err := src.Count(ctx, q.Filter, now)
	if err != nil {
		return Page[T]{}, fmt.Errorf("count: %w", err)
	}

	if items == nil {
		items = []T{}
	}
	page := Page[T]{Items: items, Total: total, HasMore: len(items) == q.Limit}
	if page.HasMore {
		createdAt, id := items[len(items)-1].Key()
		page.NextCursor = At(createdAt, id).Encode()
	}
	return page, nil
}
