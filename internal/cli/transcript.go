package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/DonMrMango/transcriptor/internal/store"
)

const previewLength = 60

func isBlankTranscript(transcript string) bool {
	return strings.TrimSpace(transcript) == ""
}

func noSpeechHint() string {
	return "No speech detected. Check mic mute and selected input device, then try again."
}

// summaryLine renders one history row: id, local time, duration, language and
// a single-line preview of the text.
func summaryLine(t store.Transcription) string {
	return fmt.Sprintf("%-5d %s  %7s  %-3s %s",
		t.ID,
		time.UnixMilli(t.Timestamp).Local().Format("2006-01-02 15:04"),
		formatDuration(t.Duration),
		t.Language,
		preview(t.Text, previewLength),
	)
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	d := time.Duration(*seconds * float64(time.Second)).Round(100 * time.Millisecond)
	return d.String()
}

func preview(text string, limit int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	return string(runes[:limit-1]) + "…"
}
