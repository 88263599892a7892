package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/errs"
	"github.com/lalith-99/agora/internal/repository"
)

// cursorPayload is what a load-more cursor carries: the sort key plus the
// last-seen row's sort value and id. Encoding both pins an exact position
// in the total order, so inserts and deletes ahead of the cursor can't
// shift rows into or out of later pages.
type cursorPayload struct {
	Sort      repository.SortKey `json:"s"`
	CreatedAt time.Time          `json:"t,omitzero"`
	Score     int64              `json:"n,omitempty"`
	ID        uuid.UUID          `json:"id"`
}

// EncodeCursor packs the last row of a page into an opaque token.
func EncodeCursor(sort repository.SortKey, mark repository.PageMark) string {
	raw, _ := json.Marshal(cursorPayload{
		Sort:      sort,
		CreatedAt: mark.CreatedAt,
		Score:     mark.Score,
		ID:        mark.ID,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor unpacks a token produced by EncodeCursor. Garbage tokens
// are an InvalidArgument, not a server error — clients fabricate these.
func DecodeCursor(token string) (repository.SortKey, *repository.PageMark, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", nil, fmt.Errorf("decode cursor: %v: %w", err, errs.ErrInvalidArgument)
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, fmt.Errorf("decode cursor: %v: %w", err, errs.ErrInvalidArgument)
	}
	switch p.Sort {
	case repository.SortCreatedAt, repository.SortVoteScore, repository.SortReplyCount:
	default:
		return "", nil, fmt.Errorf("decode cursor: unknown sort %q: %w", p.Sort, errs.ErrInvalidArgument)
	}
	if p.ID == uuid.Nil {
		return "", nil, fmt.Errorf("decode cursor: missing id: %w", errs.ErrInvalidArgument)
	}
	return p.Sort, &repository.PageMark{CreatedAt: p.CreatedAt, Score: p.Score, ID: p.ID}, nil
}

// MarkFor extracts the PageMark for a row under the given sort, for
// building the next-page cursor from the last row returned.
func MarkFor(sort repository.SortKey, createdAt time.Time, score int64, id uuid.UUID) repository.PageMark {
	m := repository.PageMark{ID: id}
	if sort == repository.SortCreatedAt {
		m.CreatedAt = createdAt
	} else {
		m.Score = score
	}
	return m
}
