// Package app is the interactive board picker.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/buckleypaul/boardswitch/internal/board"
	"github.com/buckleypaul/boardswitch/internal/ui"
)

// ErrCancelled is returned by Pick when the picker is closed without a choice.
var ErrCancelled = errors.New("no board selected")

// PickerItem represents a selectable item in the picker.
type PickerItem struct {
	Label string // Display text (profile key)
	Value string // Selection value
	Desc  string // Optional secondary text (name and environment)
}

type items []PickerItem

func (s items) String(i int) string { return s[i].Label + " " + s[i].Desc }
func (s items) Len() int            { return len(s) }

// ItemsFromProfiles builds picker items in registry order.
func ItemsFromProfiles(profiles []board.Profile) []PickerItem {
	out := make([]PickerItem, len(profiles))
	for i, p := range profiles {
		out[i] = PickerItem{
			Label: p.Key,
			Value: p.Key,
			Desc:  fmt.Sprintf("%s (%s)", p.Name, p.Environment),
		}
	}
	return out
}

// Picker is a filtered-list tea.Model. It quits once an item is chosen or
// the user cancels.
type Picker struct {
	title    string
	items    []PickerItem
	filtered []PickerItem
	input    textinput.Model
	keys     KeyMap
	cursor   int
	width    int
	selected string
	done     bool
}

const maxPickerItems = 12

// NewPicker creates a picker over items.
func NewPicker(title string, pickerItems []PickerItem) *Picker {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 64

	p := &Picker{
		title: title,
		items: pickerItems,
		input: ti,
		keys:  PickerKeys,
		width: ui.DefaultWidth,
	}
	p.filter()
	return p
}

// Selected returns the chosen value, if any.
func (p *Picker) Selected() (string, bool) {
	return p.selected, p.selected != ""
}

func (p *Picker) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input for the picker.
func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		return p, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Cancel):
			p.done = true
			return p, tea.Quit
		case key.Matches(msg, p.keys.Select):
			if p.cursor < len(p.filtered) {
				p.selected = p.filtered[p.cursor].Value
				p.done = true
				return p, tea.Quit
			}
			return p, nil
		case key.Matches(msg, p.keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		case key.Matches(msg, p.keys.Down):
			if p.cursor < len(p.filtered)-1 {
				p.cursor++
			}
			return p, nil
		}
	}

	// Forward other keys to text input
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.filter()
	return p, cmd
}

// View renders the picker box.
func (p *Picker) View() string {
	if p.done {
		return ""
	}

	boxWidth := p.width - 4
	if boxWidth > 60 {
		boxWidth = 60
	}
	if boxWidth < 30 {
		boxWidth = 30
	}
	innerWidth := boxWidth - 4 // border + padding

	var b strings.Builder

	p.input.Width = innerWidth - 3 // account for prompt "> "
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	visible := maxPickerItems
	if visible > len(p.filtered) {
		visible = len(p.filtered)
	}

	// Scroll window around cursor
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := start + visible

	selectedStyle := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true)
	for i := start; i < end; i++ {
		item := p.filtered[i]
		line := item.Label + "  " + ui.DimStyle.Render(item.Desc)
		if i == p.cursor {
			b.WriteString(selectedStyle.Render("> "+item.Label) + "  " + ui.DimStyle.Render(item.Desc))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if len(p.filtered) == 0 {
		b.WriteString(ui.DimStyle.Render("  No matches"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render(fmt.Sprintf("(%d/%d boards)  ", len(p.filtered), len(p.items))))
	b.WriteString(ui.StatusKey("enter", "select") + "  " + ui.StatusKey("esc", "cancel"))

	return ui.Panel(p.title, b.String(), boxWidth)
}

func (p *Picker) filter() {
	query := strings.TrimSpace(p.input.Value())
	if query == "" {
		p.filtered = p.items
	} else {
		matches := fuzzy.FindFrom(query, items(p.items))
		p.filtered = make([]PickerItem, len(matches))
		for i, m := range matches {
			p.filtered[i] = p.items[m.Index]
		}
	}
	if p.cursor >= len(p.filtered) {
		p.cursor = len(p.filtered) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// Pick runs the picker over the registry's profiles and returns the chosen
// key. Cancelling returns ErrCancelled.
func Pick(ctx context.Context, reg *board.Registry, in io.Reader, out io.Writer) (string, error) {
	p := NewPicker("Select board", ItemsFromProfiles(reg.List()))
	prog := tea.NewProgram(p, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	if _, err := prog.Run(); err != nil {
		return "", fmt.Errorf("picker: %w", err)
	}
	if v, ok := p.Selected(); ok {
		return v, nil
	}
	return "", ErrCancelled
}
