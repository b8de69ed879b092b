package cli

import "os"

// IsNonInteractive reports whether prompts and the monitor should be skipped.
func IsNonInteractive() bool {
	if nonInteractive {
		return true
	}
	if _, ok := os.LookupEnv("SEQUENCER_NON_INTERACTIVE"); ok {
		return true
	}
	return !hasTTY()
}
