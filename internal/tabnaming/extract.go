package tabnaming

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxTabNameRunes = 40

var (
	ansiRe        = regexp.MustCompile(`\x1B\[[0-9;]*[mGKH]`)
	headerRe      = regexp.MustCompile(`#{1,6}\s*`)
	preambleRe    = regexp.MustCompile(`(?i)^(here is\b|here'?s?\b|the tab name is\b|the tab name:|tab name:|name:|→|output:)\s*`)
	newlinesRe    = regexp.MustCompile(`[\n\r]+`)
	splitRe       = regexp.MustCompile(`[.\n→]`)
	trailPunctRe  = regexp.MustCompile(`[.:;,!?]+$`)
	surroundQuote = "\"'"
	genericNameRe = regexp.MustCompile(`(?i)^("|')?\s*(coding task|task tab name|task tab|coding task tab|task name)\b`)
)

// ExtractTabName pulls a tab name out of raw agent output. Agents tend to
// wrap the answer in markdown, preambles or quoted examples; the last short
// plain line that survives filtering is taken as the name.
func ExtractTabName(output string) (string, bool) {
	if strings.TrimSpace(output) == "" {
		return "", false
	}

	cleaned := ansiRe.ReplaceAllString(output, "")
	cleaned = headerRe.ReplaceAllString(cleaned, "")
	cleaned = strings.NewReplacer("**", "", "*", "", "`", "").Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)
	for {
		next := preambleRe.ReplaceAllString(cleaned, "")
		if next == cleaned {
			break
		}
		cleaned = next
	}
	cleaned = strings.TrimSpace(newlinesRe.ReplaceAllString(cleaned, " "))

	var candidates, overlong []string
	for _, part := range splitRe.Split(cleaned, -1) {
		trimmed := strings.TrimSpace(part)
		if strings.HasPrefix(trimmed, `"`) || strings.HasPrefix(trimmed, "'") {
			continue
		}
		unquoted := strings.Trim(trimmed, surroundQuote)
		if unquoted == "" {
			continue
		}
		lower := strings.ToLower(unquoted)
		if strings.Contains(lower, "example") || strings.Contains(lower, "message:") || strings.Contains(lower, "rules:") {
			continue
		}
		if utf8.RuneCountInString(unquoted) > maxTabNameRunes {
			overlong = append(overlong, trimmed)
			continue
		}
		candidates = append(candidates, trimmed)
	}

	var name string
	switch {
	case len(candidates) > 0:
		name = candidates[len(candidates)-1]
	case len(overlong) > 0:
		name = overlong[len(overlong)-1]
	default:
		return "", false
	}

	name = strings.TrimSpace(name)
	if len(name) > 0 && strings.ContainsRune(surroundQuote, rune(name[0])) {
		name = name[1:]
	}
	if len(name) > 0 && strings.ContainsRune(surroundQuote, rune(name[len(name)-1])) {
		name = name[:len(name)-1]
	}
	name = trailPunctRe.ReplaceAllString(name, "")

	if utf8.RuneCountInString(name) > maxTabNameRunes {
		name = string([]rune(name)[:maxTabNameRunes-3]) + "..."
	}
	if utf8.RuneCountInString(name) < 2 {
		return "", false
	}
	return name, true
}

// looksGeneric reports output that is a placeholder rather than a real name.
func looksGeneric(output string) bool {
	return genericNameRe.MatchString(strings.TrimSpace(output))
}
