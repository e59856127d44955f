package config

import "testing"

func TestDecodeLaunchArgsAppliesDefaults(t *testing.T) {
	args, err := DecodeLaunchArgs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.GdbExecutable != "gdb" {
		t.Fatalf("expected default gdbExecutable %q, got %q", "gdb", args.GdbExecutable)
	}
	if args.MaxStackDepth != defaultMaxStackDepth {
		t.Fatalf("expected default max stack depth %d, got %d", defaultMaxStackDepth, args.MaxStackDepth)
	}
	if args.PortRangeStart != 30000 {
		t.Fatalf("expected default port range start 30000, got %d", args.PortRangeStart)
	}
	if args.LiveWatch.PollIntervalMs != defaultLiveWatchPollMs {
		t.Fatalf("expected default live watch poll interval %d, got %d", defaultLiveWatchPollMs, args.LiveWatch.PollIntervalMs)
	}
}

func TestDecodeLaunchArgsOverridesDefaults(t *testing.T) {
	raw := []byte(`{
		"program": "/tmp/firmware.elf",
		"gdbExecutable": "arm-none-eabi-gdb",
		"breakAfterReset": true,
		"rtt": {"enabled": true, "address": 536870912, "pollIntervalMs": 50},
		"liveWatch": {"pollIntervalMs": 250}
	}`)

	args, err := DecodeLaunchArgs(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.Program != "/tmp/firmware.elf" {
		t.Fatalf("unexpected program: %q", args.Program)
	}
	if args.GdbExecutable != "arm-none-eabi-gdb" {
		t.Fatalf("unexpected gdbExecutable: %q", args.GdbExecutable)
	}
	if !args.BreakAfterReset {
		t.Fatal("expected breakAfterReset to be true")
	}
	if !args.Rtt.Enabled || args.Rtt.Address != 536870912 || args.Rtt.PollIntervalMs != 50 {
		t.Fatalf("unexpected rtt args: %+v", args.Rtt)
	}
	if args.LiveWatch.PollIntervalMs != 250 {
		t.Fatalf("unexpected live watch poll interval: %d", args.LiveWatch.PollIntervalMs)
	}
}

func TestDecodeLaunchArgsRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeLaunchArgs([]byte(`{not json`)); err == nil {
		t.Fatal("expected an error for malformed launch arguments")
	}
}
