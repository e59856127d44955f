package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/viper"
)

// dontbugDefaultMaxStackDepth in the teacher (cmd/root.go) became a
// viper.SetDefault("max-stack-depth", ...) flag default; here it is the
// default depth the stack-trace request walks when the launch arguments
// don't override it.
const defaultMaxStackDepth = 128

const defaultLiveWatchPollMs = 500

// RttArgs configures the optional RttEngine for this session.
type RttArgs struct {
	Enabled        bool   `mapstructure:"enabled"`
	Address        uint64 `mapstructure:"address"`
	SearchSize     uint64 `mapstructure:"searchSize"`
	PollIntervalMs int    `mapstructure:"pollIntervalMs"`
	Decoder        string `mapstructure:"decoder"`
}

// SwoArgs configures the optional SWO trace stream (spec §6 "swo-connected").
type SwoArgs struct {
	Enabled      bool   `mapstructure:"enabled"`
	CPUFrequency uint64 `mapstructure:"cpuFrequency"`
	SwoFrequency uint64 `mapstructure:"swoFrequency"`
}

// LaunchArgs is the decoded shape of a DAP "launch" or "attach" request's
// Arguments payload (spec §6 "all configuration arrives inside the DAP
// launch/attach arguments"; spec §9 Open Question: breakAfterReset,
// runToEntryPoint and noDebug are mutually exclusive with the precedence
// documented on onConfigurationDoneRequest in internal/session/launch.go).
type LaunchArgs struct {
	Attach bool `mapstructure:"attach"`

	Program          string   `mapstructure:"program"`
	Cwd              string   `mapstructure:"cwd"`
	GdbExecutable    string   `mapstructure:"gdbExecutable"`
	ServerExecutable string   `mapstructure:"serverExecutable"`
	ServerArgs       []string `mapstructure:"serverArgs"`
	ConnectAddress   string   `mapstructure:"connectAddress"`

	BreakAfterReset bool `mapstructure:"breakAfterReset"`
	RunToEntryPoint bool `mapstructure:"runToEntryPoint"`
	NoDebug         bool `mapstructure:"noDebug"`

	MaxStackDepth  int    `mapstructure:"maxStackDepth"`
	HexFormat      bool   `mapstructure:"hexFormat"`
	SvdFile        string `mapstructure:"svdFile"`
	PortRangeStart int    `mapstructure:"portRangeStart"`

	Rtt       RttArgs `mapstructure:"rtt"`
	Swo       SwoArgs `mapstructure:"swo"`
	LiveWatch struct {
		PollIntervalMs int `mapstructure:"pollIntervalMs"`
	} `mapstructure:"liveWatch"`
}

// DecodeLaunchArgs binds a DAP launch/attach request's raw Arguments JSON
// through viper (spec §A.1 "binds only environment variables and DAP
// launch-argument JSON through viper") and unmarshals it, applying the
// same style of defaults the teacher's initConfig sets with
// viper.SetDefault — but scoped to one request's viper.New() instance
// rather than the teacher's process-wide global, since a server-mode
// listener (spec §6 "Ports") may hold several concurrent sessions each
// with their own launch arguments.
func DecodeLaunchArgs(raw json.RawMessage) (LaunchArgs, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("gdbExecutable", "gdb")
	v.SetDefault("maxStackDepth", defaultMaxStackDepth)
	v.SetDefault("portRangeStart", 30000)
	v.SetDefault("rtt.pollIntervalMs", 100)
	v.SetDefault("liveWatch.pollIntervalMs", defaultLiveWatchPollMs)

	if len(raw) > 0 {
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return LaunchArgs{}, fmt.Errorf("config: decoding launch arguments: %w", err)
		}
	}

	var args LaunchArgs
	if err := v.Unmarshal(&args); err != nil {
		return LaunchArgs{}, fmt.Errorf("config: unmarshaling launch arguments: %w", err)
	}
	return args, nil
}
