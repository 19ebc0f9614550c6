// SPDX-License-Identifier: MIT
package tui

import (
	"strings"
	"testing"
	"time"

	"visualizer/internal/audio"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevices() []audio.Device {
	return []audio.Device{
		{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2},
		{ID: 1, Name: "Monitor of Built-in Audio", MaxInputChannels: 2, Loopback: true},
		{ID: 2, Name: "USB Headset", MaxInputChannels: 1},
	}
}

func update(t *testing.T, m SelectModel, msg tea.Msg) (SelectModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	sm, ok := next.(SelectModel)
	require.True(t, ok)
	return sm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCountdownResumesLastDevice(t *testing.T) {
	m := NewSelectModel(testDevices(), 1, DefaultCountdown)
	require.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Resuming device 1 in 3s")

	var cmd tea.Cmd
	m, cmd = update(t, m, tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	m, _ = update(t, m, tickMsg(time.Now()))
	_, done := m.Choice()
	assert.False(t, done)

	m, cmd = update(t, m, tickMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	choice, done := m.Choice()
	require.True(t, done)
	assert.Equal(t, Choice{DeviceID: 1, Manual: false}, choice)
}

func TestAnyKeyCancelsCountdown(t *testing.T) {
	m := NewSelectModel(testDevices(), 1, DefaultCountdown)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})

	for range 5 {
		var cmd tea.Cmd
		m, cmd = update(t, m, tickMsg(time.Now()))
		assert.Nil(t, cmd)
	}
	_, done := m.Choice()
	assert.False(t, done)
	assert.NotContains(t, m.View(), "Resuming")
}

func TestNoCountdownWithoutLastDevice(t *testing.T) {
	m := NewSelectModel(testDevices(), -1, DefaultCountdown)
	assert.Nil(t, m.Init())
	assert.NotContains(t, m.View(), "*")

	m = NewSelectModel(testDevices(), 9, DefaultCountdown)
	assert.Nil(t, m.Init())
}

func TestArrowSelection(t *testing.T) {
	m := NewSelectModel(testDevices(), -1, DefaultCountdown)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	choice, done := m.Choice()
	require.True(t, done)
	assert.Equal(t, Choice{DeviceID: 1, Manual: true}, choice)
}

func TestDigitSelection(t *testing.T) {
	m := NewSelectModel(testDevices(), 0, DefaultCountdown)
	m, _ = update(t, m, runes("2"))
	assert.Contains(t, m.View(), "Device: 2")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	choice, done := m.Choice()
	require.True(t, done)
	assert.Equal(t, 2, choice.DeviceID)
	assert.True(t, choice.Manual)
}

func TestQuitAborts(t *testing.T) {
	for _, msg := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		m := NewSelectModel(testDevices(), 1, DefaultCountdown)
		m, cmd := update(t, m, msg)
		require.NotNil(t, cmd)
		_, done := m.Choice()
		assert.False(t, done)
		assert.Empty(t, m.View())
	}
}

func TestViewMarksKindsAndLastUsed(t *testing.T) {
	view := NewSelectModel(testDevices(), 2, 0).View()

	assert.Contains(t, view, "[0] [MIC] Built-in Microphone")
	assert.Contains(t, view, "[1] [SYS] Monitor of Built-in Audio")
	for _, line := range strings.Split(view, "\n") {
		if strings.Contains(line, "USB Headset") {
			assert.Contains(t, line, "* [2] [MIC]")
		}
	}
}

func TestEnterWithNoDevices(t *testing.T) {
	m := NewSelectModel(nil, -1, DefaultCountdown)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	_, done := m.Choice()
	assert.False(t, done)
	assert.Contains(t, m.View(), "No input devices found.")
}
