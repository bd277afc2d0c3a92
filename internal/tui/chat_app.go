package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/waver/internal/assistant"
	"github.com/ShayCichocki/waver/internal/orchestrator"
)

// Assistant is the part of the assistant the chat needs.
type Assistant interface {
	Process(ctx context.Context, message string) (*assistant.Response, error)
	SetMode(m assistant.Mode) error
	Mode() assistant.Mode
}

// AnswerMsg carries the assistant's answer to one question.
type AnswerMsg struct {
	Question string
	Response *assistant.Response
	Err      error
}

// EventMsg carries one orchestrator event.
type EventMsg struct {
	Event orchestrator.Event
}

// WaitForEvent returns a command that delivers the next event on ch.
// It returns nil when ch is nil, and the command yields nil once ch is closed.
func WaitForEvent(ch <-chan orchestrator.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg{Event: ev}
	}
}

type turn struct {
	question string
	answer   string
	meta     string
	failed   bool
	notice   bool
}

// ChatApp is the model for the interactive chat. The conversation sits
// on the left, plan activity on the right and the input at the bottom.
type ChatApp struct {
	ctx          context.Context
	assistant    Assistant
	events       <-chan orchestrator.Event
	conversation viewport.Model
	spinner      spinner.Model
	activity     *ActivityPanel
	inputField   *InputField
	turns        []turn
	waiting      bool
	inputFocused bool
	quitting     bool
	width        int
	height       int

	userStyle   lipgloss.Style
	botStyle    lipgloss.Style
	metaStyle   lipgloss.Style
	errorStyle  lipgloss.Style
	noticeStyle lipgloss.Style
}

// NewChatApp creates a ChatApp answering through a. events may be nil.
func NewChatApp(ctx context.Context, a Assistant, events <-chan orchestrator.Event) *ChatApp {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	return &ChatApp{
		ctx:          ctx,
		assistant:    a,
		events:       events,
		conversation: viewport.New(80, 20),
		spinner:      sp,
		activity:     NewActivityPanel(),
		inputField:   NewInputField(),
		inputFocused: true,

		userStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		botStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		metaStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		errorStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		noticeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// Init implements tea.Model.
func (a *ChatApp) Init() tea.Cmd {
	return tea.Batch(a.inputField.Focus(), WaitForEvent(a.events))
}

// Update implements tea.Model.
func (a *ChatApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.quitting = true
			return a, tea.Quit

		case "tab", "shift+tab":
			a.inputFocused = !a.inputFocused
			a.activity.SetFocused(!a.inputFocused)
			if a.inputFocused {
				return a, a.inputField.Focus()
			}
			a.inputField.Blur()
			return a, nil

		case "esc":
			if !a.inputFocused {
				a.inputFocused = true
				a.activity.SetFocused(false)
				return a, a.inputField.Focus()
			}
			return a, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			a.conversation, cmd = a.conversation.Update(msg)
			return a, cmd
		}

		if a.inputFocused {
			var cmd tea.Cmd
			a.inputField, cmd = a.inputField.Update(msg)
			return a, cmd
		}
		var cmd tea.Cmd
		a.activity, cmd = a.activity.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case QuestionSubmittedMsg:
		return a, a.submit(msg)

	case AnswerMsg:
		a.waiting = false
		a.finishTurn(msg)
		return a, nil

	case EventMsg:
		a.activity.Add(EntryFromEvent(msg.Event))
		return a, WaitForEvent(a.events)

	case spinner.TickMsg:
		if !a.waiting {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *ChatApp) submit(msg QuestionSubmittedMsg) tea.Cmd {
	if msg.Mode != "" {
		if err := a.assistant.SetMode(msg.Mode); err != nil {
			a.addTurn(turn{answer: err.Error(), failed: true})
			return nil
		}
		if msg.Text == "" {
			a.addTurn(turn{answer: "modo: " + string(msg.Mode), notice: true})
			return nil
		}
	}
	if a.waiting {
		a.addTurn(turn{answer: "espera la respuesta anterior", notice: true})
		return nil
	}

	a.waiting = true
	a.addTurn(turn{question: msg.Text})

	ctx, as, question := a.ctx, a.assistant, msg.Text
	ask := func() tea.Msg {
		resp, err := as.Process(ctx, question)
		return AnswerMsg{Question: question, Response: resp, Err: err}
	}
	return tea.Batch(a.spinner.Tick, ask)
}

// finishTurn fills in the newest pending turn for the question.
func (a *ChatApp) finishTurn(msg AnswerMsg) {
	for i := len(a.turns) - 1; i >= 0; i-- {
		t := &a.turns[i]
		if t.question != msg.Question || t.answer != "" {
			continue
		}
		if msg.Err != nil {
			t.answer, t.failed = msg.Err.Error(), true
		} else {
			t.answer, t.meta = msg.Response.Response, describe(msg.Response)
		}
		a.refresh()
		return
	}
}

func describe(r *assistant.Response) string {
	meta := fmt.Sprintf("%s · %s · %.2f", r.ProcessingMode, r.QueryType, r.ComplexityScore)
	if r.Agentic != nil {
		meta += fmt.Sprintf(" · %d tareas · %.2fs", r.Agentic.TasksExecuted, r.Agentic.ExecutionTime)
	}
	return meta
}

func (a *ChatApp) addTurn(t turn) {
	a.turns = append(a.turns, t)
	a.refresh()
}

func (a *ChatApp) refresh() {
	a.conversation.SetContent(a.renderConversation())
	a.conversation.GotoBottom()
}

func (a *ChatApp) renderConversation() string {
	wrap := lipgloss.NewStyle().Width(max(a.conversation.Width-2, 10))

	var b strings.Builder
	for _, t := range a.turns {
		switch {
		case t.notice:
			b.WriteString(a.noticeStyle.Render(wrap.Render(t.answer)))
			b.WriteString("\n\n")
			continue
		case t.question != "":
			b.WriteString(a.userStyle.Render("Tú: "))
			b.WriteString(wrap.Render(t.question))
			b.WriteString("\n")
		}
		if t.answer == "" {
			continue
		}
		if t.failed {
			b.WriteString(a.errorStyle.Render("Error: " + t.answer))
		} else {
			b.WriteString(a.botStyle.Render("Waver: "))
			b.WriteString(wrap.Render(t.answer))
		}
		if t.meta != "" {
			b.WriteString("\n")
			b.WriteString(a.metaStyle.Render(t.meta))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// updateSizes lays out the panels for the terminal size.
func (a *ChatApp) updateSizes() {
	const inputHeight, barHeight = 3, 1
	bodyHeight := max(a.height-inputHeight-2*barHeight, 3)

	activityWidth := a.width / 3
	a.conversation.Width = a.width - activityWidth
	a.conversation.Height = bodyHeight
	a.activity.SetSize(activityWidth, bodyHeight)
	a.inputField.SetWidth(a.width)
	a.refresh()
}

// View implements tea.Model.
func (a *ChatApp) View() string {
	if a.quitting {
		return "¡Hasta luego!\n"
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, a.conversation.View(), a.activity.View())
	return lipgloss.JoinVertical(lipgloss.Left,
		a.headerView(),
		body,
		a.inputField.View(),
		a.footerView(),
	)
}

func (a *ChatApp) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Render("Waver")
	mode := lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Render("modo " + string(a.assistant.Mode()))
	status := ""
	if a.waiting {
		status = " " + a.spinner.View() + " pensando..."
	}
	return title + " " + mode + status
}

func (a *ChatApp) footerView() string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(
		"enter: enviar │ !simple/!agentic/!adaptive: modo │ tab: actividad │ pgup/pgdown: desplazar │ ctrl+c: salir")
}

// NewChatProgram creates a Bubbletea program for the interactive chat.
func NewChatProgram(ctx context.Context, a Assistant, events <-chan orchestrator.Event) (*tea.Program, *ChatApp) {
	app := NewChatApp(ctx, a, events)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	return p, app
}
