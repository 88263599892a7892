package engine

import (
	"github.com/google/uuid"
	"github.com/lalith-99/agora/internal/models"
)

// ReplyNode is one node of the reconstructed reply tree. It indexes into
// the caller's flat reply slice instead of embedding the record, so the
// tree is cheap to build and trivial to serialize without cycles.
type ReplyNode struct {
	Reply    *models.Reply `json:"reply"`
	Children []*ReplyNode  `json:"children"`
}

// BuildReplyTree converts a flat reply slice into a forest keyed by
// ParentReplyID.
//
// Two passes, O(n): first index every reply by id with an empty child list,
// then link each reply under its parent — or promote it to a root when the
// parent id is unset or doesn't resolve within the input (paginated-out or
// deleted ancestors must never make a reply disappear). Sibling order is
// input order, so feeding replies in creation order yields
// creation-ordered siblings. No I/O, deterministic for a given input
// ordering.
func BuildReplyTree(replies []models.Reply) []*ReplyNode {
	nodes := make(map[uuid.UUID]*ReplyNode, len(replies))
	for i := range replies {
		nodes[replies[i].ID] = &ReplyNode{Reply: &replies[i], Children: []*ReplyNode{}}
	}

	roots := make([]*ReplyNode, 0)
	for i := range replies {
		r := &replies[i]
		node := nodes[r.ID]
		if r.ParentReplyID != nil {
			if parent, ok := nodes[*r.ParentReplyID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// CountNodes returns the total node count of a forest. Used by callers that
// want to assert no reply was dropped during reconstruction.
func CountNodes(forest []*ReplyNode) int {
	n := 0
	for _, root := range forest {
		n += 1 + CountNodes(root.Children)
	}
	return n
}
