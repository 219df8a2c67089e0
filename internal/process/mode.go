package process

import "strings"

// IsStreamJSONMode decides once, at spawn time, whether stdout carries
// newline-delimited JSON records rather than display text.
//
// The decision is a heuristic over the spawn intent. Any one of these is
// enough:
//   - an argv token containing "stream-json"
//   - an argv token equal to "--json"
//   - argv containing both "--format" and "json"
//   - SendPromptViaStdin or SendPromptViaStdinRaw
//   - a non-empty SSH stdin script
//   - image attachments together with a prompt
func IsStreamJSONMode(cfg Config) bool {
	hasFormat, hasJSON := false, false
	for _, a := range cfg.Args {
		switch {
		case strings.Contains(a, "stream-json"):
			return true
		case a == "--json":
			return true
		case a == "--format":
			hasFormat = true
		case a == "json":
			hasJSON = true
		}
	}
	if hasFormat && hasJSON {
		return true
	}
	if cfg.SendPromptViaStdin || cfg.SendPromptViaStdinRaw {
		return true
	}
	if cfg.SSHStdinScript != "" {
		return true
	}
	return len(cfg.Images) > 0 && cfg.Prompt != ""
}

// IsBatchMode reports whether the process runs a single prompt to completion.
func IsBatchMode(cfg Config) bool {
	return cfg.Prompt != ""
}
