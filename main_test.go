// SPDX-License-Identifier: MIT
package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"visualizer/cmd"
	"visualizer/internal/config"
	"visualizer/internal/transport"
	"visualizer/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveSettingsHandler(t *testing.T) {
	store := config.NewSettingsStore(filepath.Join(t.TempDir(), "config.json"))
	presenter := &utils.MockTransport{}
	h := saveSettingsHandler(store, presenter)

	require.NoError(t, h([]byte(`{"style":"retro","bass_sens":2.5}`)))

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "retro", s.Style)
	assert.Equal(t, 2.5, s.BassSens)
	assert.Equal(t, config.DefaultUserSettings().Sensitivity, s.Sensitivity)

	sent := presenter.Messages(transport.EventApplyConfig)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Sticky)
	payload, ok := sent[0].Payload.(config.InitPayload)
	require.True(t, ok)
	assert.Equal(t, "retro", payload.Style)
	assert.Equal(t, 2.5, payload.BassSens)

	assert.Error(t, h([]byte(`not json`)))
	assert.Error(t, h([]byte(`{"volume":11}`)))
	assert.ErrorIs(t, h([]byte(`{"sensitivity":"loud"}`)), config.ErrInvalidSetting)
	assert.Len(t, presenter.Messages(transport.EventApplyConfig), 1, "rejected saves leave the sticky config alone")
}

func TestSaveSettingsHandlerRefreshesStickyConfig(t *testing.T) {
	store := config.NewSettingsStore(filepath.Join(t.TempDir(), "config.json"))
	presenter := &utils.MockTransport{}
	h := saveSettingsHandler(store, presenter)

	require.NoError(t, h([]byte(`{"style":"fire"}`)))
	require.NoError(t, h([]byte(`{"sensitivity":"1.75"}`)))

	sent := presenter.Messages(transport.EventApplyConfig)
	require.Len(t, sent, 2)
	latest, ok := sent[1].Payload.(config.InitPayload)
	require.True(t, ok)
	assert.Equal(t, "fire", latest.Style)
	assert.Equal(t, 1.75, latest.Sensitivity)
}

func TestChooseDeviceWithoutPrompt(t *testing.T) {
	store := config.NewSettingsStore(filepath.Join(t.TempDir(), "config.json"))
	settings := config.DefaultUserSettings()

	opts, err := cmd.ParseArgs([]string{"--device", "4"}, &bytes.Buffer{})
	require.NoError(t, err)
	cfg := config.Default()
	opts.Apply(cfg)

	id, err := chooseDevice(cfg, opts, store, settings)
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	cfg = config.Default()
	cfg.Audio.Source = config.SourceFile
	id, err = chooseDevice(cfg, &cmd.Options{}, store, settings)
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestFileOpenerReportsMissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Source = config.SourceFile
	cfg.Audio.File = filepath.Join(t.TempDir(), "missing.wav")
	engine, err := cfg.Engine(1.0)
	require.NoError(t, err)

	_, err = opener(cfg, engine)(0)
	assert.Error(t, err)
}
