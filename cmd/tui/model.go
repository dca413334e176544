package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/OireachtasAI/oireachtas-mvp/engine/rag"
)

const (
	maxSuggestions = 5
	askTimeout     = 90 * time.Second
	wrapWidth      = 80
)

// Messages for tea updates
type (
	answerMsg *rag.Answer
	errorMsg  error
	savedMsg  string
)

// focusArea tracks which input owns keystrokes.
type focusArea int

const (
	focusSpeaker focusArea = iota
	focusTopic
)

// styles groups the lipgloss styles for the explorer.
type styles struct {
	title      lipgloss.Style
	badge      lipgloss.Style
	label      lipgloss.Style
	suggestion lipgloss.Style
	success    lipgloss.Style
	warning    lipgloss.Style
	errText    lipgloss.Style
	muted      lipgloss.Style
	help       lipgloss.Style
	spinner    lipgloss.Style
	answerBox  lipgloss.Style
}

func defaultStyles() styles {
	green := lipgloss.Color("#169B62")
	orange := lipgloss.Color("#FF883E")
	return styles{
		title:      lipgloss.NewStyle().Bold(true).Background(green).Foreground(lipgloss.Color("#FFFFFF")).Padding(0, 1),
		badge:      lipgloss.NewStyle().Foreground(orange),
		label:      lipgloss.NewStyle().Bold(true).Foreground(green),
		suggestion: lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		success:    lipgloss.NewStyle().Foreground(green),
		warning:    lipgloss.NewStyle().Foreground(orange),
		errText:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		muted:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		help:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		spinner:    lipgloss.NewStyle().Foreground(orange),
		answerBox:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(green).Padding(0, 1).MarginTop(1),
	}
}

// model is the bubbletea model for the explorer.
type model struct {
	speakerInput textinput.Model
	topicInput   textinput.Model
	spinner      spinner.Model
	viewport     viewport.Model
	renderer     *glamour.TermRenderer
	styles       styles

	backend answerer
	mode    string
	names   []string

	focus       focusArea
	suggestions []string
	answer      *rag.Answer
	isLoading   bool
	err         error
	savedPath   string
	width       int
	height      int
}

func newModel(backend answerer, names []string, mode string) model {
	st := defaultStyles()

	speaker := textinput.New()
	speaker.Placeholder = "Speaker, e.g. Mary Lou McDonald"
	speaker.Prompt = "│ "
	speaker.CharLimit = 80
	speaker.Width = 46
	speaker.PromptStyle = st.label
	speaker.Focus()

	topic := textinput.New()
	topic.Placeholder = "Topic, e.g. housing"
	topic.Prompt = "│ "
	topic.CharLimit = 200
	topic.Width = 46
	topic.PromptStyle = st.label

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.spinner

	vp := viewport.New(wrapWidth, 20)

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)

	return model{
		speakerInput: speaker,
		topicInput:   topic,
		spinner:      sp,
		viewport:     vp,
		renderer:     renderer,
		styles:       st,
		backend:      backend,
		mode:         mode,
		names:        names,
		focus:        focusSpeaker,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlS:
			return m, m.saveAnswer()

		case tea.KeyTab:
			// Tab completes the top suggestion first, then switches fields.
			if m.focus == focusSpeaker && len(m.suggestions) > 0 && m.speakerInput.Value() != m.suggestions[0] {
				m.speakerInput.SetValue(m.suggestions[0])
				m.speakerInput.CursorEnd()
				m.suggestions = m.suggest()
				return m, nil
			}
			return m.toggleFocus()

		case tea.KeyShiftTab:
			return m.toggleFocus()

		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			if m.focus == focusSpeaker {
				return m.setFocus(focusTopic)
			}
			return m.submit()
		}

		if !m.isLoading {
			switch m.focus {
			case focusSpeaker:
				m.speakerInput, tiCmd = m.speakerInput.Update(msg)
				m.suggestions = m.suggest()
			case focusTopic:
				m.topicInput, tiCmd = m.topicInput.Update(msg)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Header, labelled inputs, suggestion line, status, footer.
		const chromeHeight = 14
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-chromeHeight, 5)
		m.speakerInput.Width = min(msg.Width-8, 60)
		m.topicInput.Width = min(msg.Width-8, 60)

		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(min(msg.Width-8, wrapWidth)),
			)
			if m.answer != nil {
				m.viewport.SetContent(m.renderMarkdown(m.answer.Markdown))
			}
		}

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case answerMsg:
		m.isLoading = false
		m.err = nil
		m.savedPath = ""
		m.answer = msg
		m.viewport.SetContent(m.renderMarkdown(m.answer.Markdown))
		m.viewport.GotoTop()

	case errorMsg:
		m.isLoading = false
		m.err = msg

	case savedMsg:
		m.savedPath = string(msg)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m model) setFocus(f focusArea) (model, tea.Cmd) {
	m.focus = f
	var cmd tea.Cmd
	if f == focusSpeaker {
		m.topicInput.Blur()
		cmd = m.speakerInput.Focus()
	} else {
		m.speakerInput.Blur()
		cmd = m.topicInput.Focus()
	}
	return m, cmd
}

func (m model) toggleFocus() (model, tea.Cmd) {
	if m.focus == focusSpeaker {
		return m.setFocus(focusTopic)
	}
	return m.setFocus(focusSpeaker)
}

// suggest ranks registry names against the speaker field.
func (m model) suggest() []string {
	q := strings.TrimSpace(m.speakerInput.Value())
	if q == "" {
		return nil
	}
	matches := fuzzy.Find(q, m.names)
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	out := make([]string, len(matches))
	for i, match := range matches {
		out[i] = match.Str
	}
	return out
}

func (m model) submit() (model, tea.Cmd) {
	speaker := strings.TrimSpace(m.speakerInput.Value())
	topic := strings.TrimSpace(m.topicInput.Value())
	if speaker == "" || topic == "" {
		return m, nil
	}
	m.isLoading = true
	m.err = nil
	m.savedPath = ""
	return m, tea.Batch(m.spinner.Tick, m.ask(speaker, topic))
}

func (m model) ask(speaker, topic string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()
		ans, err := m.backend.Query(ctx, speaker, topic)
		if err != nil {
			return errorMsg(err)
		}
		return answerMsg(ans)
	}
}

func (m model) saveAnswer() tea.Cmd {
	ans := m.answer
	return func() tea.Msg {
		if ans == nil {
			return errorMsg(errors.New("no answer to save yet"))
		}
		path := answerFileName(time.Now())
		if err := os.WriteFile(path, []byte(renderAnswerFile(ans)), 0o644); err != nil {
			return errorMsg(fmt.Errorf("save answer: %w", err))
		}
		return savedMsg(path)
	}
}

// answerFileName names saved answers by capture time.
func answerFileName(now time.Time) string {
	return fmt.Sprintf("answer-%s.md", now.Format("20060102-150405"))
}

// renderAnswerFile is the markdown written by ctrl+s: the answer followed
// by its citation list.
func renderAnswerFile(ans *rag.Answer) string {
	var b strings.Builder
	b.WriteString(ans.Markdown)
	b.WriteString("\n")
	if len(ans.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, src := range ans.Sources {
			fmt.Fprintf(&b, "- %s", src.URL)
			if src.Date != "" {
				fmt.Fprintf(&b, " (%s)", src.Date)
			}
			b.WriteString("\n")
		}
	}
	if ans.Model != "" {
		fmt.Fprintf(&b, "\n_Generated by %s._\n", ans.Model)
	}
	return b.String()
}

func (m model) renderMarkdown(md string) string {
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (m model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderInputs(),
		m.renderStatus(),
		m.styles.answerBox.Render(m.viewport.View()),
		m.renderFooter(),
	)
}

func (m model) renderHeader() string {
	title := m.styles.title.Render(" Oireachtas Explorer ")
	mode := m.styles.badge.Render(m.mode)
	var status string
	if m.isLoading {
		status = m.styles.warning.Render("● working")
	} else {
		status = m.styles.success.Render("● ready")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", mode, "  ", status)
}

func (m model) renderInputs() string {
	speaker := m.styles.label.Render("Speaker") + "\n" + m.speakerInput.View()
	if s := m.renderSuggestions(); s != "" {
		speaker += "\n" + s
	}
	topic := m.styles.label.Render("Topic") + "\n" + m.topicInput.View()
	return lipgloss.JoinVertical(lipgloss.Left, speaker, topic)
}

func (m model) renderSuggestions() string {
	if m.focus != focusSpeaker || len(m.suggestions) == 0 {
		return ""
	}
	return m.styles.suggestion.Render("did you mean: " + strings.Join(m.suggestions, " · "))
}

func (m model) renderStatus() string {
	switch {
	case m.isLoading:
		return m.spinner.View() + " searching the debates..."
	case m.err != nil:
		return m.styles.errText.Render("error: " + m.err.Error())
	case m.savedPath != "":
		return m.styles.success.Render("saved " + m.savedPath)
	case m.answer != nil:
		meta := fmt.Sprintf("model %s · %d sources", m.answer.Model, len(m.answer.Sources))
		if m.answer.Cached {
			meta += " · cached"
		}
		return m.styles.muted.Render(meta)
	}
	return " "
}

func (m model) renderFooter() string {
	return m.styles.help.Render("enter ask · tab complete/next · ctrl+s save · esc quit")
}
