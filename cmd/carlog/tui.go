// This file implements the interactive interface using bubbletea: a login
// screen backed by the configured operator table, then a live view of the
// upload run.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"carlog/internal/auth"
	"carlog/internal/config"
	"carlog/internal/sheet"
	"carlog/internal/types"
	"carlog/internal/upload"
)

// screen is the TUI's top-level state.
type screen int

const (
	screenLogin screen = iota
	screenReady
	screenRunning
	screenDone
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
)

// eventMsg carries one field outcome from the run goroutine.
type eventMsg upload.Event

// doneMsg carries the terminal result of the run.
type doneMsg upload.Result

type uploadModel struct {
	cfg      *config.Config
	verifier auth.Verifier
	runner   *upload.Runner

	screen   screen
	username textinput.Model
	password textinput.Model
	focusPwd bool
	authErr  string

	rows    []types.Row
	loadErr string

	spinner  spinner.Model
	progress progress.Model
	events   chan upload.Event
	done     <-chan upload.Result
	cancel   context.CancelFunc

	fieldsSeen  int
	fieldsTotal int
	currentRow  int
	totalRows   int
	recent      []upload.Event
	result      *upload.Result
}

func initUploadModel(cfg *config.Config) uploadModel {
	username := textinput.New()
	username.Placeholder = "username"
	username.Focus()
	username.CharLimit = 64

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := uploadModel{
		cfg:      cfg,
		runner:   upload.NewRunner(zap.NewNop()),
		screen:   screenLogin,
		username: username,
		password: password,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
	}
	if len(cfg.Auth.Users) > 0 {
		m.verifier = auth.NewStatic(cfg.Auth.Users)
	} else {
		// No operator table configured, skip straight to the run screen.
		m.screen = screenReady
		m.loadRows()
	}
	return m
}

func (m *uploadModel) loadRows() {
	reader := sheet.NewReader(m.cfg.Input, m.cfg.Columns(), m.cfg.RequiredColumns())
	rows, err := reader.Read()
	if err != nil {
		m.loadErr = err.Error()
		return
	}
	m.rows = rows
	m.loadErr = ""
}

func (m uploadModel) Init() tea.Cmd {
	return textinput.Blink
}

// waitForEvent delivers the next progress event to the update loop.
func waitForEvent(events chan upload.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

// waitForDone delivers the run result once the worker finishes.
func waitForDone(done <-chan upload.Result) tea.Cmd {
	return func() tea.Msg {
		return doneMsg(<-done)
	}
}

func (m uploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		switch m.screen {
		case screenLogin:
			return m.updateLogin(msg)
		case screenReady:
			return m.updateReady(msg)
		case screenDone:
			if msg.Type == tea.KeyEnter || msg.String() == "q" {
				return m, tea.Quit
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case eventMsg:
		m.fieldsSeen++
		m.currentRow = msg.Row
		m.totalRows = msg.Total
		m.recent = append(m.recent, upload.Event(msg))
		if len(m.recent) > 8 {
			m.recent = m.recent[len(m.recent)-8:]
		}
		var cmds []tea.Cmd
		if m.fieldsTotal > 0 {
			cmds = append(cmds, m.progress.SetPercent(float64(m.fieldsSeen)/float64(m.fieldsTotal)))
		}
		cmds = append(cmds, waitForEvent(m.events))
		return m, tea.Batch(cmds...)

	case doneMsg:
		result := upload.Result(msg)
		m.result = &result
		m.screen = screenDone
		return m, m.progress.SetPercent(1)
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenLogin:
		if m.focusPwd {
			m.password, cmd = m.password.Update(msg)
		} else {
			m.username, cmd = m.username.Update(msg)
		}
	}
	return m, cmd
}

func (m uploadModel) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab:
		m.focusPwd = !m.focusPwd
		if m.focusPwd {
			m.username.Blur()
			return m, m.password.Focus()
		}
		m.password.Blur()
		return m, m.username.Focus()

	case tea.KeyEnter:
		if !m.focusPwd {
			m.focusPwd = true
			m.username.Blur()
			return m, m.password.Focus()
		}
		if err := m.verifier.Verify(m.username.Value(), m.password.Value()); err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				m.authErr = "Invalid username or password."
			} else {
				m.authErr = err.Error()
			}
			m.password.SetValue("")
			return m, nil
		}
		m.authErr = ""
		m.screen = screenReady
		m.loadRows()
		return m, nil
	}

	var cmd tea.Cmd
	if m.focusPwd {
		m.password, cmd = m.password.Update(msg)
	} else {
		m.username, cmd = m.username.Update(msg)
	}
	return m, cmd
}

func (m uploadModel) updateReady(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.loadRows()
		return m, nil
	case "q":
		return m, tea.Quit
	}
	if msg.Type != tea.KeyEnter || m.loadErr != "" || len(m.rows) == 0 {
		return m, nil
	}
	return m.startRun()
}

func (m uploadModel) startRun() (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	events := make(chan upload.Event, 64)
	m.events = events

	done, err := m.runner.Start(ctx, func(ctx context.Context) (types.Summary, error) {
		defer close(events)
		return upload.Execute(ctx, m.cfg, zap.NewNop(), func(e upload.Event) {
			events <- e
		})
	})
	if errors.Is(err, upload.ErrRunInProgress) {
		cancel()
		return m, nil
	}
	m.done = done

	m.screen = screenRunning
	m.fieldsSeen = 0
	m.fieldsTotal = len(m.rows) * len(m.cfg.Fields)
	m.totalRows = len(m.rows)
	m.recent = nil

	return m, tea.Batch(m.spinner.Tick, waitForEvent(events), waitForDone(done))
}

func (m uploadModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("carlog") + "  " + labelStyle.Render(m.cfg.Site.URL) + "\n\n")

	switch m.screen {
	case screenLogin:
		b.WriteString("Sign in to start an upload.\n\n")
		b.WriteString("  " + m.username.View() + "\n")
		b.WriteString("  " + m.password.View() + "\n\n")
		if m.authErr != "" {
			b.WriteString(errorStyle.Render("  "+m.authErr) + "\n\n")
		}
		b.WriteString(labelStyle.Render("  tab: switch field • enter: sign in • esc: quit") + "\n")

	case screenReady:
		b.WriteString(fmt.Sprintf("Input:  %s\n", m.cfg.Input))
		b.WriteString(fmt.Sprintf("Output: %s\n\n", m.cfg.Output))
		if m.loadErr != "" {
			b.WriteString(errorStyle.Render("Cannot read input: "+m.loadErr) + "\n\n")
			b.WriteString(labelStyle.Render("r: retry • q: quit") + "\n")
			break
		}
		b.WriteString(fmt.Sprintf("%d data rows ready.\n\n", len(m.rows)))
		if len(m.rows) == 0 {
			b.WriteString(labelStyle.Render("Nothing to upload. r: reload • q: quit") + "\n")
			break
		}
		b.WriteString(labelStyle.Render("enter: start upload • r: reload • q: quit") + "\n")

	case screenRunning:
		b.WriteString(fmt.Sprintf("%s Uploading row %d of %d\n\n", m.spinner.View(), m.currentRow, m.totalRows))
		b.WriteString(m.progress.View() + "\n\n")
		for _, e := range m.recent {
			b.WriteString(fmt.Sprintf("  row %d  %-14s %s\n", e.Row, e.Field, renderStatus(e.Status)))
		}
		b.WriteString("\n" + labelStyle.Render("esc: abort") + "\n")

	case screenDone:
		s := m.result.Summary
		var body strings.Builder
		body.WriteString(fmt.Sprintf("Run %s\n\n", s.RunID))
		body.WriteString(fmt.Sprintf("Rows processed:  %d\n", s.RowsProcessed))
		body.WriteString(fmt.Sprintf("Rows submitted:  %d\n", s.RowsSubmitted))
		body.WriteString(fmt.Sprintf("Fields matched:  %s\n", okStyle.Render(fmt.Sprintf("%d", s.Matched))))
		body.WriteString(fmt.Sprintf("Mismatched:      %s\n", warnStyle.Render(fmt.Sprintf("%d", s.Mismatched))))
		body.WriteString(fmt.Sprintf("Failed:          %s\n", errorStyle.Render(fmt.Sprintf("%d", s.Failed))))
		body.WriteString(fmt.Sprintf("Skipped:         %d\n", s.Skipped))
		body.WriteString(fmt.Sprintf("\nAudit log: %s", m.cfg.Output))
		b.WriteString(summaryStyle.Render(body.String()) + "\n")
		if m.result.Err != nil {
			b.WriteString("\n" + errorStyle.Render("Run ended early: "+m.result.Err.Error()) + "\n")
		}
		b.WriteString("\n" + labelStyle.Render("enter: quit") + "\n")
	}
	return b.String()
}

func renderStatus(s types.Status) string {
	switch s {
	case types.StatusMatched:
		return okStyle.Render(string(s))
	case types.StatusMismatched:
		return warnStyle.Render(string(s))
	case types.StatusFailed:
		return errorStyle.Render(string(s))
	default:
		return labelStyle.Render(string(s))
	}
}

// runInteractive starts the interactive interface
func runInteractive(cfg *config.Config) error {
	p := tea.NewProgram(
		initUploadModel(cfg),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
