package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// FeedEntry is one merged entry update shown in the feed.
type FeedEntry struct {
	Datetime string
	Path     []string
	Key      string
	Value    string
	AppID    string
}

// EntryMsg delivers a new entry to the feed model.
type EntryMsg FeedEntry

// ScanMsg reports that a scan pass finished, with the number of entries it
// delivered.
type ScanMsg struct {
	Delivered int
}

// feedKeyMap defines the key bindings for the feed.
type feedKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

func defaultFeedKeyMap() feedKeyMap {
	return feedKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// FeedModel is the BubbleTea model for the live entry feed shown by
// `decsync watch --tui`.
type FeedModel struct {
	title    string
	viewport viewport.Model
	keys     feedKeyMap
	entries  []FeedEntry
	scans    int
	width    int
	height   int
	ready    bool
}

// NewFeedModel creates a feed with the given title line.
func NewFeedModel(title string) FeedModel {
	return FeedModel{
		title: title,
		keys:  defaultFeedKeyMap(),
	}
}

// Entries returns the entries received so far, oldest first.
func (m FeedModel) Entries() []FeedEntry {
	return m.entries
}

// Init implements tea.Model.
func (m FeedModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m FeedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		footerHeight := 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.content())

	case EntryMsg:
		m.entries = append(m.entries, FeedEntry(msg))
		m.viewport.SetContent(m.content())
		m.viewport.GotoBottom()

	case ScanMsg:
		m.scans++
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m FeedModel) View() string {
	if !m.ready {
		return "starting..."
	}
	header := Styles.Title.Render(m.title)
	status := Styles.Status.Render(
		fmt.Sprintf("%d entries · %d scans · q to quit", len(m.entries), m.scans))
	return header + "\n\n" + m.viewport.View() + "\n" + status
}

// content renders the entry lines for the viewport.
func (m FeedModel) content() string {
	if len(m.entries) == 0 {
		return Styles.Status.Render("waiting for updates...")
	}
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(Styles.Datetime.Render(e.Datetime))
		b.WriteString(" ")
		b.WriteString(Styles.Path.Render("/" + strings.Join(e.Path, "/")))
		b.WriteString(" ")
		b.WriteString(Styles.Key.Render(e.Key))
		b.WriteString(" = ")
		b.WriteString(e.Value)
		if e.AppID != "" {
			b.WriteString(Styles.Status.Render(" (" + e.AppID + ")"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
