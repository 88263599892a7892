package realtime

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/errs"
	"github.com/lalith-99/agora/internal/repository"
)

func TestCursorRoundTrip(t *testing.T) {
	id := uuid.New()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	token := EncodeCursor(repository.SortCreatedAt, repository.PageMark{CreatedAt: at, ID: id})
	sort, mark, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sort != repository.SortCreatedAt {
		t.Fatalf("sort = %q, want created_at", sort)
	}
	if !mark.CreatedAt.Equal(at) || mark.ID != id {
		t.Fatalf("mark = %+v, want {%s %s}", mark, at, id)
	}

	token = EncodeCursor(repository.SortVoteScore, repository.PageMark{Score: 42, ID: id})
	sort, mark, err = DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode score cursor: %v", err)
	}
	if sort != repository.SortVoteScore || mark.Score != 42 || mark.ID != id {
		t.Fatalf("score cursor = %q %+v", sort, mark)
	}
}

func TestDecodeCursorGarbage(t *testing.T) {
	cases := []string{
		"not base64 at all!!!",
		"aGVsbG8",                    // valid base64, not JSON
		EncodeCursor("sideways", repository.PageMark{ID: uuid.New()}), // unknown sort
		EncodeCursor(repository.SortCreatedAt, repository.PageMark{}), // nil id
	}
	for _, token := range cases {
		if _, _, err := DecodeCursor(token); !errors.Is(err, errs.ErrInvalidArgument) {
			t.Fatalf("DecodeCursor(%q): err = %v, want ErrInvalidArgument", token, err)
		}
	}
}

func TestMarkFor(t *testing.T) {
	id := uuid.New()
	at := time.Now().UTC()

	m := MarkFor(repository.SortCreatedAt, at, 99, id)
	if !m.CreatedAt.Equal(at) || m.Score != 0 {
		t.Fatalf("created_at mark carries score: %+v", m)
	}
	m = MarkFor(repository.SortReplyCount, at, 99, id)
	if m.Score != 99 || !m.CreatedAt.IsZero() {
		t.Fatalf("reply_count mark carries time: %+v", m)
	}
}
