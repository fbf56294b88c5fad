package main

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/museum-guide/internal/handlers"
	"github.com/jwebster45206/museum-guide/pkg/hunt"
	"github.com/muesli/reflow/wordwrap"
)

const PlaceHolderText = "Type your answer..."

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api   *apiClient
	hunts []handlers.HuntSummary
	input textinput.Model
	width int

	// Hunt selection state
	selecting bool
	cursor    int

	// Active hunt state
	huntID   string
	status   hunt.Status
	clue     handlers.ClueView
	solved   bool
	showHint bool
	loading  bool
	banner   string
	notice   string
	err      error
}

type statusMsg struct {
	status hunt.Status
	clue   handlers.ClueView
	err    error
}

type answerMsg struct {
	result hunt.AnswerResult
	err    error
}

type advanceMsg struct {
	err error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")) // amber

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	questionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	hintStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("244"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(api *apiClient, hunts []handlers.HuntSummary) ConsoleUI {
	ti := textinput.New()
	ti.Placeholder = PlaceHolderText
	ti.Prompt = ":: "
	ti.CharLimit = 100
	ti.Width = 40

	return ConsoleUI{
		api:       api,
		hunts:     hunts,
		input:     ti,
		width:     80,
		selecting: true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return nil
}

func (m ConsoleUI) loadHunt(huntID string) tea.Cmd {
	return func() tea.Msg {
		st, err := m.api.status(huntID)
		if err != nil {
			return statusMsg{err: err}
		}
		if st.Stage == hunt.StageCompleted {
			return statusMsg{status: st}
		}
		clue, err := m.api.clue(huntID, st.ActiveStep)
		return statusMsg{status: st, clue: clue, err: err}
	}
}

func (m ConsoleUI) submit(huntID string, step int, answer string, exhibitID string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.api.submitAnswer(huntID, step, answer)
		if err == nil && result.Verdict == hunt.VerdictCorrect && exhibitID != "" {
			// Solving a clue means the visitor found its exhibit
			_ = m.api.markVisited(exhibitID)
		}
		return answerMsg{result: result, err: err}
	}
}

func (m ConsoleUI) advance(huntID string, step int) tea.Cmd {
	return func() tea.Msg {
		_, err := m.api.advance(huntID, step)
		return advanceMsg{err: err}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-10, 10)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.selecting {
			return m.updateSelection(msg)
		}
		return m.updatePlaying(msg)

	case statusMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.clue = msg.clue
			m.solved = false
			m.showHint = false
			m.input.Reset()
		}
		return m, nil

	case answerMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		switch msg.result.Verdict {
		case hunt.VerdictCorrect:
			m.solved = true
			if msg.result.Last {
				m.banner = "Correct! Press ctrl+n to finish the hunt."
			} else {
				m.banner = "Correct! Press ctrl+n for the next clue."
			}
		case hunt.VerdictIncorrect:
			m.banner = "Not quite. Try again!"
		case hunt.VerdictMissing:
			m.banner = "Please enter an answer."
		}
		return m, nil

	case advanceMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			return m, nil
		}
		m.banner = ""
		m.notice = ""
		return m, m.loadHunt(m.huntID)
	}

	return m, nil
}

func (m ConsoleUI) updateSelection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(m.hunts)-1 {
			m.cursor++
		}
	case tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		m.selecting = false
		m.huntID = m.hunts[m.cursor].ID
		m.loading = true
		m.banner = ""
		m.notice = ""
		m.err = nil
		m.input.Focus()
		return m, m.loadHunt(m.huntID)
	}
	return m, nil
}

func (m ConsoleUI) updatePlaying(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		m.selecting = true
		m.input.Blur()
		return m, nil

	case tea.KeyCtrlT:
		m.showHint = !m.showHint
		return m, nil

	case tea.KeyCtrlY:
		if err := clipboard.WriteAll(m.clue.Question); err != nil {
			m.err = fmt.Errorf("copy failed: %w", err)
		} else {
			m.notice = "Clue copied to clipboard."
		}
		return m, nil

	case tea.KeyCtrlN:
		if !m.solved {
			return m, nil
		}
		m.loading = true
		return m, m.advance(m.huntID, m.status.ActiveStep)

	case tea.KeyEnter:
		if m.status.Stage == hunt.StageCompleted || m.solved {
			return m, nil
		}
		answer := m.input.Value()
		m.input.Reset()
		m.loading = true
		return m, m.submit(m.huntID, m.status.ActiveStep, answer, m.clue.ExhibitID)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ConsoleUI) View() string {
	if m.selecting {
		return m.viewSelection()
	}
	return m.viewPlaying()
}

func (m ConsoleUI) viewSelection() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("MUSEUM TREASURE HUNTS") + "\n\n")
	for i, h := range m.hunts {
		line := fmt.Sprintf("%s (%s, %d clues, %d pts)", h.Name, h.Difficulty, h.TotalSteps, h.Points)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString(itemStyle.Render(line) + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("↑/↓: choose • enter: start • esc: quit"))
	return b.String()
}

func (m ConsoleUI) viewPlaying() string {
	wrap := max(m.width-8, 20)
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.huntName()) + "\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.loading {
		b.WriteString(helpStyle.Render("Loading...") + "\n")
		return b.String()
	}

	if m.status.Stage == hunt.StageCompleted {
		b.WriteString(successStyle.Render("Hunt completed! Well done.") + "\n\n")
		b.WriteString(helpStyle.Render("esc: back to hunts • ctrl+c: quit"))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Clue %d of %d  (%d%% complete)\n\n",
		m.status.ActiveStep, m.status.TotalSteps, m.status.Percent))
	b.WriteString(questionStyle.Render(wordwrap.String(m.clue.Question, wrap)) + "\n\n")
	if m.showHint && m.clue.Hint != "" {
		b.WriteString(hintStyle.Render(wordwrap.String("Hint: "+m.clue.Hint, wrap)) + "\n\n")
	}

	if m.banner != "" {
		if m.solved {
			b.WriteString(successStyle.Render(m.banner) + "\n\n")
		} else {
			b.WriteString(errorStyle.Render(m.banner) + "\n\n")
		}
	}
	if m.notice != "" {
		b.WriteString(hintStyle.Render(m.notice) + "\n\n")
	}

	if !m.solved {
		b.WriteString(m.input.View() + "\n\n")
	}
	b.WriteString(helpStyle.Render("enter: answer • ctrl+n: next • ctrl+t: hint • ctrl+y: copy clue • esc: back"))
	return b.String()
}

func (m ConsoleUI) huntName() string {
	for _, h := range m.hunts {
		if h.ID == m.huntID {
			return strings.ToUpper(h.Name)
		}
	}
	return m.huntID
}
