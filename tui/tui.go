// Package tui is the interactive line-editing surface: a bubbletea
// program that owns the prompt and keystrokes while the console core
// streams engine output above it. It talks to the core only through
// the Completer capability and the Fire/Query session methods, so the
// editing surface is swappable without touching the core.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/GrayareaGaming/source-console-shell/config"
	"github.com/GrayareaGaming/source-console-shell/console"
	"github.com/GrayareaGaming/source-console-shell/history"
	"github.com/GrayareaGaming/source-console-shell/util"
)

const (
	historyLimit  = 500
	maxCandidates = 50
)

// ============================================
// Styles
// ============================================

var (
	colorMuted = lipgloss.Color("#71717a")
	colorGreen = lipgloss.Color("#4ade80")
	colorRed   = lipgloss.Color("#f87171")
	colorCyan  = lipgloss.Color("#22d3ee")

	stylePrompt = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	styleError  = lipgloss.NewStyle().Foreground(colorRed)
	styleSystem = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)

// ============================================
// Messages
// ============================================

type msgLine struct{ text string }
type msgClosed struct{}
type msgCvarsLoaded struct {
	count int
	err   error
}

// ============================================
// Display sink
// ============================================

// Sink forwards continuous console output into the running program.
// Program.Send never blocks the caller, which keeps the router's
// reader loop moving even when the terminal is busy. Lines arriving
// before the program starts go straight to stdout.
type Sink struct {
	mu      sync.Mutex
	program *tea.Program
}

func NewSink() *Sink { return &Sink{} }

// Attach hands the sink its running program.
func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.program = p
	s.mu.Unlock()
}

func (s *Sink) WriteLine(line string) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()

	if p != nil {
		p.Send(msgLine{text: line})
	} else {
		fmt.Println(line)
	}
}

// ============================================
// Model
// ============================================

type model struct {
	input     textinput.Model
	con       *console.Console
	completer *console.Completer
	store     *history.Store // nil when history is disabled
	log       *util.Logger

	prompt     string
	connected  bool
	history    []string // newest first
	historyIdx int
	quitting   bool
}

func newModel(cfg *config.Config, con *console.Console, completer *console.Completer, store *history.Store, log *util.Logger) model {
	ti := textinput.New()
	ti.Placeholder = "command (Tab completes, 'exit' leaves)"
	ti.Prompt = "" // the model renders its own prompt
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	m := model{
		input:      ti,
		con:        con,
		completer:  completer,
		store:      store,
		log:        log,
		prompt:     cfg.Prompt,
		connected:  true,
		history:    make([]string, 0, historyLimit),
		historyIdx: -1,
	}

	if store != nil {
		if recent, err := store.Recent(historyLimit); err == nil {
			m.history = append(m.history, recent...)
		} else {
			log.Warn("history load failed: %v", err)
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			// Match the reference shell: Ctrl+C clears the line, a
			// second Ctrl+C on an empty line quits.
			if m.input.Value() != "" {
				m.input.SetValue("")
				m.historyIdx = -1
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit

		case "ctrl+d":
			m.quitting = true
			return m, tea.Quit

		case "ctrl+l":
			return m, tea.ClearScreen

		case "tab":
			m.tabComplete()
			return m, nil

		case "up":
			if m.historyIdx < len(m.history)-1 {
				m.historyIdx++
				m.input.SetValue(m.history[m.historyIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.historyIdx > 0 {
				m.historyIdx--
				m.input.SetValue(m.history[m.historyIdx])
				m.input.CursorEnd()
			} else if m.historyIdx == 0 {
				m.historyIdx = -1
				m.input.SetValue("")
			}
			return m, nil

		case "enter":
			return m.submit()
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case msgLine:
		// Engine output lands above the prompt; bubbletea repaints the
		// prompt line after us.
		fmt.Print("\r\033[K")
		fmt.Println(msg.text)
		return m, nil

	case msgCvarsLoaded:
		fmt.Print("\r\033[K")
		if msg.err != nil {
			fmt.Println(styleSystem.Render(fmt.Sprintf("CVAR load failed (%v); completion limited", msg.err)))
		} else {
			fmt.Println(styleSystem.Render(fmt.Sprintf("Loaded %d CVARs for autocompletion.", msg.count)))
		}
		return m, nil

	case msgClosed:
		m.connected = false
		if !m.quitting {
			fmt.Print("\r\033[K")
			fmt.Println(styleError.Render("Connection closed by server."))
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderPrompt() + m.input.View()
}

func (m model) renderPrompt() string {
	dot := lipgloss.NewStyle().Foreground(colorGreen).Render("●")
	if !m.connected {
		dot = lipgloss.NewStyle().Foreground(colorRed).Render("●")
	}
	return fmt.Sprintf("%s %s ", dot, stylePrompt.Render(m.prompt+">"))
}

// submit echoes the finalized line, records it, and fires it at the
// engine. Fire-and-forget: output streams back asynchronously.
func (m model) submit() (tea.Model, tea.Cmd) {
	command := strings.TrimSpace(m.input.Value())
	if command == "" {
		return m, nil
	}

	fmt.Print("\r\033[K")
	fmt.Printf("%s %s %s\n", m.renderConnDot(), stylePrompt.Render(m.prompt+">"), command)

	m.input.SetValue("")
	m.historyIdx = -1

	if command == "exit" || command == "quit" {
		m.quitting = true
		return m, tea.Quit
	}

	m.remember(command)

	if err := m.con.Fire(command); err != nil {
		if errors.Is(err, console.ErrStreamClosed) {
			fmt.Println(styleError.Render("Connection closed by server."))
			m.quitting = true
			return m, tea.Quit
		}
		fmt.Println(styleError.Render(fmt.Sprintf("send failed: %v", err)))
	}
	return m, nil
}

func (m *model) remember(command string) {
	if len(m.history) == 0 || m.history[0] != command {
		m.history = append([]string{command}, m.history...)
		if len(m.history) > historyLimit {
			m.history = m.history[:historyLimit]
		}
	}
	if m.store != nil {
		if err := m.store.Append(command); err != nil {
			m.log.Warn("history append failed: %v", err)
		}
	}
}

func (m model) renderConnDot() string {
	if m.connected {
		return lipgloss.NewStyle().Foreground(colorGreen).Render("●")
	}
	return lipgloss.NewStyle().Foreground(colorRed).Render("●")
}

// tabComplete asks the core for candidates at the cursor. One match
// replaces the word in place; several are listed above the prompt.
func (m *model) tabComplete() {
	value := m.input.Value()
	cursor := m.input.Position()

	candidates, start := m.completer.Complete(value, cursor)

	switch {
	case len(candidates) == 1:
		completion := candidates[0]
		m.input.SetValue(value[:start] + completion + value[cursor:])
		m.input.SetCursor(start + len(completion))

	case len(candidates) > 1:
		fmt.Print("\r\033[K")
		fmt.Println(styleSystem.Render("Completions:"))
		shown := candidates
		if len(shown) > maxCandidates {
			shown = shown[:maxCandidates]
		}
		for _, c := range shown {
			fmt.Println("  " + c)
		}
		if len(candidates) > maxCandidates {
			fmt.Println(styleSystem.Render(fmt.Sprintf("  ... and %d more", len(candidates)-maxCandidates)))
		}
	}
}

// ============================================
// Entry point
// ============================================

// Run drives the interactive session until the user leaves or the
// connection dies. The CVAR index loads in the background so the
// prompt is usable immediately.
func Run(cfg *config.Config, con *console.Console, index *console.Index, completer *console.Completer, store *history.Store, log *util.Logger, sink *Sink) error {
	m := newModel(cfg, con, completer, store, log)
	p := tea.NewProgram(m)
	sink.Attach(p)

	go func() {
		err := index.LoadCvars(con, cfg.Commands.CvarList)
		p.Send(msgCvarsLoaded{count: index.Len(), err: err})
	}()

	go func() {
		<-con.Closed()
		p.Send(msgClosed{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run interactive loop: %w", err)
	}
	return nil
}
