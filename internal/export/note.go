// Package export renders finished sessions into markdown notes inside an
// Obsidian vault.
package export

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"meeting-sidekick/internal/store"
)

// invalidFilenameChars are the characters stripped from note titles so the
// filename is valid on every filesystem the vault may live on.
var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeTitle removes filesystem-hostile characters from a note title.
func SanitizeTitle(title string) string {
	return invalidFilenameChars.ReplaceAllString(title, "")
}

// BuildFilename builds the note filename:
// "YYYY-MM-DD-HHMM - <title> [<Template>].md".
func BuildFilename(startedAt time.Time, title, templateLabel string) string {
	return fmt.Sprintf("%s - %s [%s].md",
		startedAt.Format("2006-01-02-1504"), SanitizeTitle(title), templateLabel)
}

// ObsidianURI builds an obsidian://open link for the note at filename
// inside the vault at vaultPath.
func ObsidianURI(vaultPath, filename string) string {
	vaultName := filepath.Base(vaultPath)
	withoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))
	return fmt.Sprintf("obsidian://open?vault=%s&file=%s",
		url.QueryEscape(vaultName), url.QueryEscape(withoutExt))
}

// FormatTranscript renders segments as timestamped lines, one per segment.
func FormatTranscript(segments []store.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		mins := int(seg.StartTime) / 60
		secs := int(seg.StartTime) % 60
		lines = append(lines, fmt.Sprintf("[%02d:%02d] %s", mins, secs, seg.Text))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// RenderNote builds the full markdown note body.
func RenderNote(templateLabel string, recordedAt time.Time, durationSeconds float64, summary, transcript string) string {
	d := int(durationSeconds)
	duration := fmt.Sprintf("%02d:%02d:%02d", d/3600, (d%3600)/60, d%60)

	return fmt.Sprintf(`**Template**: %s
**Recorded**: %s
**Duration**: %s

---

%s

---

<details>
<summary>Full Transcript</summary>

%s

</details>
`, templateLabel, recordedAt.Format("2006-01-02 15:04"), duration, summary, transcript)
}

// Preview returns the first limit characters of the summary, with an
// ellipsis when truncated.
func Preview(summary string, limit int) string {
	runes := []rune(summary)
	if len(runes) <= limit {
		return summary
	}
	return string(runes[:limit]) + "..."
}

// WriteNote writes the note atomically into the vault and returns its full
// path. The vault directory must already exist.
func WriteNote(vaultPath, filename, content string) (string, error) {
	info, err := os.Stat(vaultPath)
	if err != nil {
		return "", fmt.Errorf("vault path %s: %w", vaultPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("vault path %s is not a directory", vaultPath)
	}

	path := filepath.Join(vaultPath, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("place note: %w", err)
	}
	return path, nil
}
