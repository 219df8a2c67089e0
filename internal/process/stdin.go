package process

import (
	"encoding/json"
	"strings"
)

type streamJSONMessage struct {
	Type    string            `json:"type"`
	Message streamJSONContent `json:"message"`
}

type streamJSONContent struct {
	Role    string            `json:"role"`
	Content []streamJSONBlock `json:"content"`
}

type streamJSONBlock struct {
	Type   string                 `json:"type"`
	Text   string                 `json:"text,omitempty"`
	Source *streamJSONImageSource `json:"source,omitempty"`
}

type streamJSONImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// BuildStreamJSONMessage frames prompt and image data URLs as a single
// stream-json user message, terminated by a newline. Images come first.
// Entries that are not base64 data URLs are skipped.
func BuildStreamJSONMessage(prompt string, images []string) (string, error) {
	blocks := make([]streamJSONBlock, 0, len(images)+1)
	for _, img := range images {
		mediaType, data, ok := parseDataURL(img)
		if !ok {
			continue
		}
		blocks = append(blocks, streamJSONBlock{
			Type:   "image",
			Source: &streamJSONImageSource{Type: "base64", MediaType: mediaType, Data: data},
		})
	}
	if prompt != "" {
		blocks = append(blocks, streamJSONBlock{Type: "text", Text: prompt})
	}
	msg := streamJSONMessage{
		Type:    "user",
		Message: streamJSONContent{Role: "user", Content: blocks},
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}

// parseDataURL splits "data:<media>;base64,<payload>".
func parseDataURL(s string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(meta, ";base64")
	if !found || mediaType == "" || payload == "" {
		return "", "", false
	}
	return mediaType, payload, true
}

// stdinPayload returns what must be written to a child's stdin after spawn,
// in order: the SSH bootstrap script, then the prompt. keepOpen reports
// whether stdin stays open for interactive writes afterwards.
func stdinPayload(cfg Config) (payload string, keepOpen bool, err error) {
	var b strings.Builder
	b.WriteString(cfg.SSHStdinScript)

	switch {
	case cfg.SendPromptViaStdin, len(cfg.Images) > 0 && cfg.Prompt != "":
		msg, err := BuildStreamJSONMessage(cfg.Prompt, cfg.Images)
		if err != nil {
			return "", false, err
		}
		b.WriteString(msg)
	case cfg.SendPromptViaStdinRaw:
		b.WriteString(cfg.Prompt)
		if cfg.Prompt != "" && !strings.HasSuffix(cfg.Prompt, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), !IsBatchMode(cfg), nil
}
