// Package thread builds reply forests over the flat comments relation and
// holds the pure authorization rules for comment mutation.
package thread

import (
	"errors"

	"murmur/internal/models"
)

// ErrCycleDetected reports a cycle in comment parent references. The comments
// table models a forest; a cycle means the persisted data is corrupt and the
// discussion cannot be rendered from it.
var ErrCycleDetected = errors.New("cycle detected in comment parent references")

// Node is one rendered entry of a discussion: a comment plus its ordered
// replies. Nodes are materialized on demand from a Forest and carry no back
// reference to their parent.
type Node struct {
	Comment *models.Comment `json:"comment"`
	Replies []*Node         `json:"replies"`
}

// Forest is the reconstructed reply structure of one post's comments.
// It stores parent→children as an id-keyed adjacency map rather than linked
// node pointers, so it can be rebuilt deterministically from the same input
// and walked without recursion into shared state.
type Forest struct {
	roots    []uint
	children map[uint][]uint
	comments map[uint]*models.Comment
}

// BuildForest reconstructs the reply forest from a flat list of comments
// ordered by ascending creation time. It never mutates the input.
//
// Roots are comments with a nil ParentID plus orphans whose parent is not in
// the input (a deleted ancestor must not make its descendants vanish).
// Sibling order preserves input order. A cycle in parent references yields
// ErrCycleDetected instead of unbounded recursion.
func BuildForest(comments []*models.Comment) (*Forest, error) {
	f := &Forest{
		children: make(map[uint][]uint, len(comments)),
		comments: make(map[uint]*models.Comment, len(comments)),
	}

	for _, c := range comments {
		f.comments[c.ID] = c
	}

	for _, c := range comments {
		if c.ParentID == nil {
			f.roots = append(f.roots, c.ID)
			continue
		}
		if _, ok := f.comments[*c.ParentID]; !ok {
			// Orphan: parent no longer exists, render as a root.
			f.roots = append(f.roots, c.ID)
			continue
		}
		f.children[*c.ParentID] = append(f.children[*c.ParentID], c.ID)
	}

	// Every comment has at most one parent, so anything unreachable from the
	// root set must sit on a cycle.
	visited := make(map[uint]bool, len(comments))
	stack := make([]uint, len(f.roots))
	copy(stack, f.roots)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			return nil, ErrCycleDetected
		}
		visited[id] = true
		stack = append(stack, f.children[id]...)
	}
	if len(visited) != len(f.comments) {
		return nil, ErrCycleDetected
	}

	return f, nil
}

// Size returns the total number of comments in the forest.
func (f *Forest) Size() int {
	return len(f.comments)
}

// Contains reports whether the comment id is part of the forest.
func (f *Forest) Contains(id uint) bool {
	_, ok := f.comments[id]
	return ok
}

// Comment returns the comment for the given id, if present.
func (f *Forest) Comment(id uint) (*models.Comment, bool) {
	c, ok := f.comments[id]
	return c, ok
}

// RootIDs returns the ids of the top-level comments in sibling order.
func (f *Forest) RootIDs() []uint {
	ids := make([]uint, len(f.roots))
	copy(ids, f.roots)
	return ids
}

// ChildIDs returns the ordered reply ids of the given comment.
func (f *Forest) ChildIDs(id uint) []uint {
	kids := f.children[id]
	ids := make([]uint, len(kids))
	copy(ids, kids)
	return ids
}

// Descendants returns every comment id below the given one, in depth-first
// order. The id itself is not included.
func (f *Forest) Descendants(id uint) []uint {
	var out []uint
	stack := append([]uint(nil), f.children[id]...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, next)
		stack = append(stack, f.children[next]...)
	}
	return out
}

// Render materializes the nested node structure for presentation. Each call
// builds fresh nodes; the forest itself stays untouched.
func (f *Forest) Render() []*Node {
	nodes := make([]*Node, 0, len(f.roots))
	for _, id := range f.roots {
		nodes = append(nodes, f.renderNode(id))
	}
	return nodes
}

func (f *Forest) renderNode(id uint) *Node {
	n := &Node{Comment: f.comments[id], Replies: []*Node{}}
	for _, child := range f.children[id] {
		n.Replies = append(n.Replies, f.renderNode(child))
	}
	return n
}
