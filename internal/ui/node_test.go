package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Node {
	return &Node{
		Role:   RoleGroup,
		TestID: "camera-overlay",
		Children: []*Node{
			{Role: RoleText, TestID: "mode", Text: "photo"},
			{Role: RoleButton, Name: "Capture", Text: "Capture"},
			{Role: RoleButton, Name: "Flash", Text: "Flash: auto"},
		},
	}
}

func TestNodeQueries(t *testing.T) {
	tree := sampleTree()

	tests := []struct {
		name  string
		query func() *Node
		want  string
	}{
		{"by_test_id_root", func() *Node { return tree.QueryByTestID("camera-overlay") }, "camera-overlay"},
		{"by_test_id_child", func() *Node { return tree.QueryByTestID("mode") }, "mode"},
		{"by_role_any_name", func() *Node { return tree.QueryByRole(RoleButton, "") }, "Capture"},
		{"by_role_named", func() *Node { return tree.QueryByRole(RoleButton, "Flash") }, "Flash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := tt.query()
			require.NotNil(t, found)
			if found.TestID != "" {
				assert.Equal(t, tt.want, found.TestID)
			} else {
				assert.Equal(t, tt.want, found.Name)
			}
		})
	}

	assert.Nil(t, tree.QueryByTestID("missing"))
	assert.Nil(t, tree.QueryByRole(RoleProgressBar, ""))
	assert.Len(t, tree.QueryAllByRole(RoleButton), 2)
}

func TestNodeGetQueriesReturnNotFound(t *testing.T) {
	tree := sampleTree()

	_, err := tree.GetByTestID("camera-overlay-loading")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "camera-overlay-loading")

	_, err = tree.GetByRole(RoleAlert, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tree.GetByRole(RoleButton, "Delete")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `"Delete"`)

	n, err := tree.GetByRole(RoleButton, "Capture")
	require.NoError(t, err)
	assert.Equal(t, "Capture", n.Text)
}

func TestNilNodeIsEmpty(t *testing.T) {
	var tree *Node

	assert.Nil(t, tree.QueryByTestID("x"))
	assert.Empty(t, tree.QueryAllByRole(RoleText))
	assert.Equal(t, "", tree.TextContent())
	assert.Equal(t, "<empty>\n", Sprint(tree))
	assert.Equal(t, "", View(tree))
}

func TestTextContentAndSprint(t *testing.T) {
	tree := sampleTree()

	assert.Equal(t, "photo Capture Flash: auto", tree.TextContent())

	want := `<group testid="camera-overlay">
  <text testid="mode"> "photo"
  <button name="Capture"> "Capture"
  <button name="Flash"> "Flash: auto"
`
	assert.Equal(t, want, Sprint(tree))
}

func TestViewRendersEveryRole(t *testing.T) {
	tree := &Node{
		Role: RoleGroup,
		Children: []*Node{
			{Role: RoleProgressBar, Text: "loading"},
			{Role: RoleAlert, Text: "camera unavailable"},
			{Role: RoleButton, Name: "Capture"},
			{Role: RoleImage, Text: "[grid]"},
		},
	}

	out := View(tree)
	for _, want := range []string{"loading", "camera unavailable", "Capture", "[grid]"} {
		assert.Contains(t, out, want)
	}
}
