// SPDX-License-Identifier: MIT

// Package tui implements the interactive device-selection prompt.
package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"visualizer/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultCountdown is how long the prompt waits before resuming the last
// used device.
const DefaultCountdown = 3 * time.Second

// ErrAborted is returned by Select when the user quits the prompt.
var ErrAborted = errors.New("device selection aborted")

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Erase  key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Select: key.NewBinding(key.WithKeys("enter")),
	Erase:  key.NewBinding(key.WithKeys("backspace")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

type tickMsg time.Time

// Choice is the outcome of the prompt.
type Choice struct {
	DeviceID int
	// Manual is false when the last used device was resumed by the
	// countdown.
	Manual bool
}

// SelectModel is the bubbletea model for the device prompt.
type SelectModel struct {
	devices   []audio.Device
	lastID    int
	cursor    int
	typed     string
	remaining int
	counting  bool

	choice  Choice
	done    bool
	aborted bool
}

// NewSelectModel returns a prompt over devices. When lastID names one of
// them a countdown of countdown (rounded to seconds) resumes it unless a key
// is pressed first.
func NewSelectModel(devices []audio.Device, lastID int, countdown time.Duration) SelectModel {
	m := SelectModel{devices: devices, lastID: lastID}
	if i := m.indexOf(lastID); i >= 0 {
		m.cursor = i
		m.remaining = int(countdown / time.Second)
		m.counting = m.remaining > 0
	}
	return m
}

func (m SelectModel) indexOf(id int) int {
	for i, d := range m.devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m SelectModel) Init() tea.Cmd {
	if m.counting {
		return tick()
	}
	return nil
}

func (m SelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if !m.counting {
			return m, nil
		}
		m.remaining--
		if m.remaining <= 0 {
			m.counting = false
			m.choice = Choice{DeviceID: m.lastID}
			m.done = true
			return m, tea.Quit
		}
		return m, tick()

	case tea.KeyMsg:
		m.counting = false

		switch {
		case key.Matches(msg, keys.Quit):
			m.aborted = true
			return m, tea.Quit

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			m.typed = ""

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.devices)-1 {
				m.cursor++
			}
			m.typed = ""

		case key.Matches(msg, keys.Erase):
			if m.typed != "" {
				m.typed = m.typed[:len(m.typed)-1]
				m.jumpToTyped()
			}

		case key.Matches(msg, keys.Select):
			if len(m.devices) == 0 {
				return m, nil
			}
			m.choice = Choice{DeviceID: m.devices[m.cursor].ID, Manual: true}
			m.done = true
			return m, tea.Quit

		case msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && msg.Runes[0] >= '0' && msg.Runes[0] <= '9':
			m.typed += string(msg.Runes)
			m.jumpToTyped()
		}
	}
	return m, nil
}

func (m *SelectModel) jumpToTyped() {
	id, err := strconv.Atoi(m.typed)
	if err != nil {
		return
	}
	if i := m.indexOf(id); i >= 0 {
		m.cursor = i
	}
}

func (m SelectModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Select Audio Input"))
	sb.WriteString("\n\n")

	if len(m.devices) == 0 {
		sb.WriteString("No input devices found.\n")
	}
	for i, d := range m.devices {
		mark := " "
		if d.ID == m.lastID {
			mark = "*"
		}
		line := fmt.Sprintf("%s %s", mark, d)
		if i == m.cursor {
			line = highlightStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if m.counting {
		sb.WriteString(infoStyle.Render(fmt.Sprintf("Resuming device %d in %ds, press any key to choose another", m.lastID, m.remaining)))
		sb.WriteString("\n")
	}
	if m.typed != "" {
		sb.WriteString(fmt.Sprintf("Device: %s\n", m.typed))
	}
	sb.WriteString(infoStyle.Render("↑/↓ or digits: Choose • Enter: Select • q: Quit"))
	sb.WriteString("\n")
	return sb.String()
}

// Choice returns the selection and whether one was made.
func (m SelectModel) Choice() (Choice, bool) {
	return m.choice, m.done
}

// Select runs the prompt on the terminal.
func Select(devices []audio.Device, lastID int, countdown time.Duration) (Choice, error) {
	final, err := tea.NewProgram(NewSelectModel(devices, lastID, countdown)).Run()
	if err != nil {
		return Choice{}, fmt.Errorf("device prompt: %w", err)
	}
	choice, ok := final.(SelectModel).Choice()
	if !ok {
		return Choice{}, ErrAborted
	}
	return choice, nil
}
