package logging

import (
	"log/slog"
	"testing"
)

func TestBumpLevelRaisesSeverity(t *testing.T) {
	if got := BumpLevel(LevelInfo, false); got != LevelNotice {
		t.Errorf("BumpLevel(Info, raise) = %d, want Notice (%d)", got, LevelNotice)
	}
	if got := BumpLevel(LevelNotice, false); got != LevelWarn {
		t.Errorf("BumpLevel(Notice, raise) = %d, want Warn (%d)", got, LevelWarn)
	}
}

func TestBumpLevelLowersSeverity(t *testing.T) {
	if got := BumpLevel(LevelNotice, true); got != LevelInfo {
		t.Errorf("BumpLevel(Notice, lower) = %d, want Info (%d)", got, LevelInfo)
	}
	if got := BumpLevel(LevelInfo, true); got != LevelVerbose {
		t.Errorf("BumpLevel(Info, lower) = %d, want Verbose (%d)", got, LevelVerbose)
	}
}

func TestStringToLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   LevelDebug,
		"verbose": LevelVerbose,
		"info":    LevelInfo,
		"notice":  LevelNotice,
		"warn":    LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
	}
	for arg, want := range cases {
		got, err := StringToLevel(arg)
		if err != nil {
			t.Errorf("StringToLevel(%q) returned error: %v", arg, err)
		}
		if got != want {
			t.Errorf("StringToLevel(%q) = %d, want %d", arg, got, want)
		}
	}
}

func TestStringToLevelRejectsUnknown(t *testing.T) {
	if _, err := StringToLevel("chatty"); err == nil {
		t.Error("expected an error for an unrecognized level name")
	}
}

func TestForModuleTagsLogger(t *testing.T) {
	base := slog.Default()
	tagged := ForModule(base, "com.ex:ui")
	if tagged == base {
		t.Error("ForModule should return a derived logger, not the base instance")
	}
}
