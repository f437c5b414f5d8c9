package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aretw0/notesync/pkg/core"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	contentStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

// renderList renders the note list screen: greeting, then one block per note.
func renderList(greeting string, notes []core.Note) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Hello, "+greeting) + "\n\n")

	if len(notes) == 0 {
		b.WriteString(emptyStyle.Render("No notes yet. Create one with `notesync add`.") + "\n")
		return b.String()
	}

	for _, n := range notes {
		fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(n.DisplayTitle()), idStyle.Render(n.ID))
		b.WriteString(contentStyle.Render(n.DisplayContent()) + "\n")
		b.WriteString(contentStyle.Render(dateStyle.Render(formatUpdated(n.UpdatedAt))) + "\n\n")
	}
	return b.String()
}

func formatUpdated(t *time.Time) string {
	if t == nil {
		return "pending"
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}
