package stt

import (
	"regexp"
	"strings"
)

var (
	// regexTimestamp matches VTT/SRT timestamps like [00:00:00.000 --> 00:00:04.000]
	regexTimestamp = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\.\d{3}\s-->\s\d{2}:\d{2}:\d{2}\.\d{3}\]`)
	// regexArtifacts matches whisper non-speech markers like [BLANK_AUDIO] or (silence)
	regexArtifacts = regexp.MustCompile(`\[(?:BLANK_AUDIO|[A-Z _]+)\]|\((?i:silence|music|inaudible|blank audio)\)`)
	regexSpaces    = regexp.MustCompile(`[ \t]+`)
)

// CleanText removes timestamps and non-speech artifacts from engine output.
func CleanText(text string) string {
	text = regexTimestamp.ReplaceAllString(text, "")
	text = regexArtifacts.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(regexSpaces.ReplaceAllString(l, " "))
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, " ")
}
