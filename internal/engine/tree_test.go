package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/models"
)

func replyWithParent(id uuid.UUID, parent *uuid.UUID, at time.Time) models.Reply {
	return models.Reply{ID: id, ParentReplyID: parent, CreatedAt: at}
}

func TestBuildReplyTreeNesting(t *testing.T) {
	base := time.Now().UTC()
	root := uuid.New()
	child := uuid.New()
	grandchild := uuid.New()
	sibling := uuid.New()

	replies := []models.Reply{
		replyWithParent(root, nil, base),
		replyWithParent(child, &root, base.Add(time.Minute)),
		replyWithParent(grandchild, &child, base.Add(2*time.Minute)),
		replyWithParent(sibling, &root, base.Add(3*time.Minute)),
	}

	forest := BuildReplyTree(replies)
	if len(forest) != 1 {
		t.Fatalf("roots = %d, want 1", len(forest))
	}
	if CountNodes(forest) != len(replies) {
		t.Fatalf("node count = %d, want %d", CountNodes(forest), len(replies))
	}

	r := forest[0]
	if r.Reply.ID != root {
		t.Fatalf("root id = %s, want %s", r.Reply.ID, root)
	}
	if len(r.Children) != 2 {
		t.Fatalf("root children = %d, want 2", len(r.Children))
	}
	// Sibling order follows input (creation) order.
	if r.Children[0].Reply.ID != child || r.Children[1].Reply.ID != sibling {
		t.Fatalf("sibling order = [%s %s], want [%s %s]",
			r.Children[0].Reply.ID, r.Children[1].Reply.ID, child, sibling)
	}
	if len(r.Children[0].Children) != 1 || r.Children[0].Children[0].Reply.ID != grandchild {
		t.Fatalf("grandchild not linked under child")
	}
}

func TestBuildReplyTreeOrphanPromotion(t *testing.T) {
	base := time.Now().UTC()
	a := uuid.New()
	b := uuid.New()
	missing := uuid.New()

	// b replies to a; c's parent is not in the input set (paginated out or
	// hard-removed). c must surface as a root, never vanish.
	c := uuid.New()
	replies := []models.Reply{
		replyWithParent(a, nil, base),
		replyWithParent(b, &a, base.Add(time.Minute)),
		replyWithParent(c, &missing, base.Add(2*time.Minute)),
	}

	forest := BuildReplyTree(replies)
	if CountNodes(forest) != 3 {
		t.Fatalf("node count = %d, want 3", CountNodes(forest))
	}
	if len(forest) != 2 {
		t.Fatalf("roots = %d, want 2", len(forest))
	}
	if forest[0].Reply.ID != a || forest[1].Reply.ID != c {
		t.Fatalf("roots = [%s %s], want [%s %s]", forest[0].Reply.ID, forest[1].Reply.ID, a, c)
	}
}

func TestBuildReplyTreeSelfParent(t *testing.T) {
	id := uuid.New()
	replies := []models.Reply{replyWithParent(id, &id, time.Now().UTC())}

	forest := BuildReplyTree(replies)
	if len(forest) != 1 || CountNodes(forest) != 1 {
		t.Fatalf("self-parented reply not promoted to root: roots=%d nodes=%d", len(forest), CountNodes(forest))
	}
}

func TestBuildReplyTreeEmpty(t *testing.T) {
	forest := BuildReplyTree(nil)
	if len(forest) != 0 {
		t.Fatalf("roots = %d, want 0", len(forest))
	}
}
