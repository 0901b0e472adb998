package ui

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by the Get* queries when no node matches.
var ErrNotFound = errors.New("ui: no matching node")

// Role is the accessibility role of a rendered node.
type Role string

const (
	RoleProgressBar Role = "progressbar"
	RoleButton      Role = "button"
	RoleGroup       Role = "group"
	RoleAlert       Role = "alert"
	RoleText        Role = "text"
	RoleImage       Role = "img"
)

// Node is one element of a rendered tree. Trees handed out by the runtime are
// snapshots and must not be mutated.
type Node struct {
	Role     Role
	TestID   string
	Name     string
	Text     string
	Children []*Node
}

// Walk visits n and its descendants in pre-order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	n.walk(fn)
}

func (n *Node) walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// QueryByTestID returns the first node carrying id, or nil.
func (n *Node) QueryByTestID(id string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.TestID == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// QueryByRole returns the first node with the given role. An empty name
// matches any node of that role.
func (n *Node) QueryByRole(role Role, name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.Role == role && (name == "" || c.Name == name) {
			found = c
			return false
		}
		return true
	})
	return found
}

// QueryAllByRole returns every node with the given role.
func (n *Node) QueryAllByRole(role Role) []*Node {
	var all []*Node
	n.Walk(func(c *Node) bool {
		if c.Role == role {
			all = append(all, c)
		}
		return true
	})
	return all
}

// GetByTestID is QueryByTestID returning ErrNotFound instead of nil.
func (n *Node) GetByTestID(id string) (*Node, error) {
	if found := n.QueryByTestID(id); found != nil {
		return found, nil
	}
	return nil, fmt.Errorf("%w: test id %q", ErrNotFound, id)
}

// GetByRole is QueryByRole returning ErrNotFound instead of nil.
func (n *Node) GetByRole(role Role, name string) (*Node, error) {
	if found := n.QueryByRole(role, name); found != nil {
		return found, nil
	}
	if name == "" {
		return nil, fmt.Errorf("%w: role %s", ErrNotFound, role)
	}
	return nil, fmt.Errorf("%w: role %s named %q", ErrNotFound, role, name)
}

// TextContent joins the text of n and all descendants with single spaces.
func (n *Node) TextContent() string {
	var parts []string
	n.Walk(func(c *Node) bool {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
		return true
	})
	return strings.Join(parts, " ")
}

// Sprint dumps a tree in an indented, diff-friendly form.
func Sprint(n *Node) string {
	if n == nil {
		return "<empty>\n"
	}
	var b strings.Builder
	sprint(&b, n, 0)
	return b.String()
}

func sprint(b *strings.Builder, n *Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("<")
	b.WriteString(string(n.Role))
	if n.TestID != "" {
		fmt.Fprintf(b, " testid=%q", n.TestID)
	}
	if n.Name != "" {
		fmt.Fprintf(b, " name=%q", n.Name)
	}
	b.WriteString(">")
	if n.Text != "" {
		fmt.Fprintf(b, " %q", n.Text)
	}
	b.WriteString("\n")
	for _, c := range n.Children {
		sprint(b, c, depth+1)
	}
}
