// SPDX-License-Identifier: MIT

// Package cmd parses the command line.
package cmd

import (
	"io"

	"visualizer/internal/config"
	"visualizer/pkg/build"

	"github.com/spf13/cobra"
)

// CommandList prints the input devices and exits.
const CommandList = "list"

// Options holds the parsed command line.
type Options struct {
	// Run is false when cobra handled the invocation itself (help, version).
	Run     bool
	Command string

	ConfigPath string
	DeviceID   int
	// DeviceSet reports whether --device was given; it skips the prompt.
	DeviceSet  bool
	Profile    string
	LowLatency bool
	File       string
	Headless   bool
	Verbose    bool
	Listen     string
}

// Apply overlays explicit flags on cfg.
func (o *Options) Apply(cfg *config.Config) {
	if o.DeviceSet {
		cfg.Audio.InputDevice = o.DeviceID
	}
	if o.Profile != "" {
		cfg.Audio.Profile = o.Profile
	}
	if o.LowLatency {
		cfg.Audio.Profile = config.ProfileLowLatency
	}
	if o.File != "" {
		cfg.Audio.Source = config.SourceFile
		cfg.Audio.File = o.File
	}
	if o.Listen != "" {
		cfg.Transport.ListenAddr = o.Listen
	}
	if o.Verbose {
		cfg.Debug = true
	}
}

// ParseArgs parses args (without the program name). Output from help and
// version goes to out.
func ParseArgs(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{DeviceID: config.MinDeviceID}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Run = true
			options.DeviceSet = cmd.Flags().Changed("device")
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Run = true
			options.Command = CommandList
		},
	}
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.PersistentFlags()

	// Configuration
	flags.StringVarP(&options.ConfigPath, "config", "c", "",
		"Path to config.yaml (default: ./config.yaml when present)")

	// Capture
	flags.IntVarP(&options.DeviceID, "device", "d", config.MinDeviceID,
		"Input device ID; skips the selection prompt. Use 'list' to see devices.")
	flags.StringVarP(&options.Profile, "profile", "p", "",
		"Latency profile: standard or low-latency")
	flags.BoolVarP(&options.LowLatency, "low-latency", "l", false,
		"Shorthand for --profile low-latency")
	flags.StringVarP(&options.File, "file", "f", "",
		"Analyze a WAV file instead of a capture device")

	// Presentation
	flags.BoolVar(&options.Headless, "headless", false,
		"Log events instead of serving the WebSocket front end")
	flags.StringVar(&options.Listen, "listen", "",
		"HTTP/WebSocket listen address (default "+config.DefaultListenAddr+")")

	// Debug Configuration
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}
