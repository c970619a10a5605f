package stt

import (
	"regexp"
	"strings"
)

var (
	// regexTimestamp matches whisper.cpp timestamps like [00:00:00.000 --> 00:00:04.000]
	regexTimestamp = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\.\d{3}\s-->\s\d{2}:\d{2}:\d{2}\.\d{3}\]`)
	// regexMarker matches a segment that is only a non-speech marker like [BLANK_AUDIO] or (Musik)
	regexMarker = regexp.MustCompile(`^(\[[^\]]*\]|\([^)]*\)|\*[^*]*\*)$`)
)

// cleanText removes timestamps and whole-segment non-speech markers.
func cleanText(text string) string {
	text = regexTimestamp.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if regexMarker.MatchString(text) {
		return ""
	}
	return text
}
