package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupLevels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		Setup(in, false)
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("Setup(%q) level = %s, want %s", in, got, want)
		}
	}
}
