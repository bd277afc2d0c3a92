package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/waver/internal/orchestrator"
)

// LogLevel represents the severity of an activity entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelDebug LogLevel = "DEBUG"
)

// ActivityEntry is one line in the activity panel.
type ActivityEntry struct {
	Timestamp   time.Time
	Level       LogLevel
	ExecutionID string // Empty means not tied to a plan
	TaskID      string
	Message     string
}

// EntryFromEvent converts an orchestrator event into an activity entry.
func EntryFromEvent(ev orchestrator.Event) ActivityEntry {
	entry := ActivityEntry{
		Timestamp:   ev.Timestamp,
		Level:       LogLevelInfo,
		ExecutionID: ev.ExecutionID,
		TaskID:      ev.TaskID,
	}

	switch ev.Type {
	case orchestrator.EventPlanStarted:
		entry.Message = "plan started: " + ev.Message
	case orchestrator.EventTaskStarted:
		entry.Level = LogLevelDebug
		entry.Message = fmt.Sprintf("%s started (%s)", ev.TaskID, ev.ToolName)
	case orchestrator.EventTaskCompleted:
		entry.Message = fmt.Sprintf("%s completed in %s", ev.TaskID, ev.Duration.Round(time.Millisecond))
	case orchestrator.EventTaskRetrying:
		entry.Level = LogLevelWarn
		entry.Message = fmt.Sprintf("%s retry %d: %s", ev.TaskID, ev.Attempt, ev.Error)
	case orchestrator.EventTaskFailed:
		entry.Level = LogLevelError
		entry.Message = fmt.Sprintf("%s failed: %s", ev.TaskID, ev.Error)
	case orchestrator.EventTaskSkipped:
		entry.Level = LogLevelWarn
		entry.Message = fmt.Sprintf("%s skipped: %s", ev.TaskID, ev.Message)
	case orchestrator.EventPlanStalled:
		entry.Level = LogLevelWarn
		entry.Message = "plan stalled: " + ev.Message
	case orchestrator.EventPlanCompleted:
		entry.Message = fmt.Sprintf("plan completed in %s", ev.Duration.Round(time.Millisecond))
	case orchestrator.EventPlanFailed:
		entry.Level = LogLevelError
		entry.Message = "plan failed: " + ev.Error
	default:
		entry.Message = string(ev.Type)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return entry
}

// ActivityPanel displays a filterable, scrollable view of plan activity.
type ActivityPanel struct {
	entries       []ActivityEntry
	filter        string   // "all" or short execution id
	filterOptions []string // Available filter options
	filterIndex   int
	scrollOffset  int
	autoScroll    bool
	width         int
	height        int
	focused       bool
	maxEntries    int

	titleStyle   lipgloss.Style
	filterStyle  lipgloss.Style
	infoStyle    lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	debugStyle   lipgloss.Style
	timeStyle    lipgloss.Style
	planStyle    lipgloss.Style
	messageStyle lipgloss.Style
}

// NewActivityPanel creates an empty ActivityPanel.
func NewActivityPanel() *ActivityPanel {
	return &ActivityPanel{
		filter:        "all",
		filterOptions: []string{"all"},
		autoScroll:    true,
		maxEntries:    500,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		filterStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),

		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),  // Green
		warnStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // Orange
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // Red
		debugStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")), // Gray
		timeStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		planStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("63")), // Blue
		messageStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	}
}

// Add appends an entry, trimming the oldest beyond the panel's capacity.
func (p *ActivityPanel) Add(entry ActivityEntry) {
	p.entries = append(p.entries, entry)
	if len(p.entries) > p.maxEntries {
		p.entries = p.entries[len(p.entries)-p.maxEntries:]
	}
	if entry.ExecutionID != "" {
		p.addFilterOption(shortID(entry.ExecutionID))
	}
	if p.autoScroll {
		p.scrollToBottom()
	}
}

func (p *ActivityPanel) addFilterOption(id string) {
	for _, opt := range p.filterOptions {
		if opt == id {
			return
		}
	}
	p.filterOptions = append(p.filterOptions, id)
}

// shortID keeps the random suffix of an execution id.
func shortID(executionID string) string {
	if i := strings.LastIndex(executionID, "_"); i >= 0 && i < len(executionID)-1 {
		return executionID[i+1:]
	}
	return executionID
}

// SetSize updates the panel dimensions.
func (p *ActivityPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	if p.autoScroll {
		p.scrollToBottom()
	}
}

// SetFocused sets whether this panel has keyboard focus.
func (p *ActivityPanel) SetFocused(focused bool) {
	p.focused = focused
}

// Update handles navigation keys while focused.
func (p *ActivityPanel) Update(msg tea.Msg) (*ActivityPanel, tea.Cmd) {
	if !p.focused {
		return p, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if p.scrollOffset > 0 {
				p.scrollOffset--
				p.autoScroll = false
			}
		case "down", "j":
			if p.scrollOffset < len(p.filtered())-p.visibleLines() {
				p.scrollOffset++
			}
		case "f":
			p.filterIndex = (p.filterIndex + 1) % len(p.filterOptions)
			p.filter = p.filterOptions[p.filterIndex]
			p.scrollToBottom()
		case "g":
			p.scrollOffset = 0
			p.autoScroll = false
		case "G":
			p.scrollToBottom()
			p.autoScroll = true
		}
	}
	return p, nil
}

func (p *ActivityPanel) visibleLines() int {
	return max(p.height-4, 1) // title and borders
}

func (p *ActivityPanel) scrollToBottom() {
	p.scrollOffset = max(len(p.filtered())-p.visibleLines(), 0)
}

func (p *ActivityPanel) filtered() []ActivityEntry {
	if p.filter == "all" {
		return p.entries
	}
	var out []ActivityEntry
	for _, e := range p.entries {
		if shortID(e.ExecutionID) == p.filter {
			out = append(out, e)
		}
	}
	return out
}

// View renders the panel.
func (p *ActivityPanel) View() string {
	var b strings.Builder

	title := "Activity"
	if p.focused {
		title = "[Activity]"
	}
	b.WriteString(p.titleStyle.Render(title))
	filterText := fmt.Sprintf(" [%s]", p.filter)
	if p.autoScroll {
		filterText += " (auto)"
	}
	b.WriteString(p.filterStyle.Render(filterText))
	b.WriteString("\n")

	entries := p.filtered()
	if len(entries) == 0 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Render("  No activity"))
	} else {
		start := min(max(p.scrollOffset, 0), len(entries))
		end := min(start+p.visibleLines(), len(entries))
		for _, e := range entries[start:end] {
			b.WriteString(p.renderLine(e))
			b.WriteString("\n")
		}
	}

	borderColor := lipgloss.Color("240")
	if p.focused {
		borderColor = lipgloss.Color("63")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(max(p.width-2, 10)).
		Height(max(p.height-2, 1)).
		Render(b.String())
}

func (p *ActivityPanel) renderLine(e ActivityEntry) string {
	parts := []string{p.timeStyle.Render(e.Timestamp.Format("15:04:05"))}

	levelStyle, icon := p.infoStyle, "I"
	switch e.Level {
	case LogLevelWarn:
		levelStyle, icon = p.warnStyle, "W"
	case LogLevelError:
		levelStyle, icon = p.errorStyle, "E"
	case LogLevelDebug:
		levelStyle, icon = p.debugStyle, "D"
	}
	parts = append(parts, levelStyle.Render(icon))

	if e.ExecutionID != "" && p.filter == "all" {
		parts = append(parts, p.planStyle.Render("["+shortID(e.ExecutionID)+"]"))
	}

	maxLen := max(p.width-25, 20)
	msg := []rune(e.Message)
	if len(msg) > maxLen {
		msg = append(msg[:maxLen-3], []rune("...")...)
	}
	parts = append(parts, p.messageStyle.Render(string(msg)))
	return strings.Join(parts, " ")
}

// Count returns the number of retained entries.
func (p *ActivityPanel) Count() int {
	return len(p.entries)
}

// CurrentFilter returns the current filter value.
func (p *ActivityPanel) CurrentFilter() string {
	return p.filter
}
