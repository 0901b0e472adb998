package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Italic(true)

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("62")).
			Padding(0, 2).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	groupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	imageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// View renders a tree for a terminal.
func View(n *Node) string {
	if n == nil {
		return ""
	}

	switch n.Role {
	case RoleProgressBar:
		return progressStyle.Render(n.Text)
	case RoleButton:
		label := n.Text
		if label == "" {
			label = n.Name
		}
		return buttonStyle.Render(label)
	case RoleAlert:
		return alertStyle.Render("! " + n.Text)
	case RoleImage:
		return imageStyle.Render(n.Text)
	case RoleGroup:
		return groupStyle.Render(renderChildren(n))
	default:
		if len(n.Children) == 0 {
			return n.Text
		}
		return renderChildren(n)
	}
}

func renderChildren(n *Node) string {
	parts := make([]string, 0, len(n.Children)+1)
	if n.Text != "" {
		parts = append(parts, n.Text)
	}
	for _, c := range n.Children {
		parts = append(parts, View(c))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
