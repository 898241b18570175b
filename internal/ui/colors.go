package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#1DB954", "#FFFFFF", "#FF5555", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	accent lipgloss.Style
	title  lipgloss.Style
	err    lipgloss.Style
	dim    lipgloss.Style
}

func NewPalette(accent, title, err, dim string) *Palette {
	return &Palette{
		accent: NewBold(accent),
		title:  NewBold(title),
		err:    NewBold(err),
		dim:    NewStyle(dim),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}
