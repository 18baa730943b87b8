package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meeting-sidekick/internal/store"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"clean", "Weekly Sync", "Weekly Sync"},
		{"slashes", "Q3/Q4 Planning", "Q3Q4 Planning"},
		{"all invalid", `<>:"/\|?*`, ""},
		{"mixed", `Design: "v2" review?`, "Design v2 review"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.title); got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestBuildFilename(t *testing.T) {
	startedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	got := BuildFilename(startedAt, "Weekly Sync", "Full Summary")
	want := "2026-03-14-0930 - Weekly Sync [Full Summary].md"
	if got != want {
		t.Errorf("BuildFilename = %q, want %q", got, want)
	}
}

func TestObsidianURI(t *testing.T) {
	uri := ObsidianURI("/home/u/vaults/My Vault", "2026-03-14-0930 - Weekly Sync [Full Summary].md")

	if !strings.HasPrefix(uri, "obsidian://open?vault=My+Vault&file=") {
		t.Errorf("unexpected URI prefix: %s", uri)
	}
	if strings.Contains(uri, ".md") {
		t.Errorf("URI should not contain the extension: %s", uri)
	}
}

func TestFormatTranscript(t *testing.T) {
	segments := []store.Segment{
		{Seq: 0, Text: "Hello everyone.", StartTime: 0, EndTime: 2},
		{Seq: 1, Text: "Let's begin.", StartTime: 65.7, EndTime: 68},
	}

	got := FormatTranscript(segments)
	want := "[00:00] Hello everyone.\n[01:05] Let's begin."
	if got != want {
		t.Errorf("FormatTranscript = %q, want %q", got, want)
	}
}

func TestRenderNote(t *testing.T) {
	recordedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	note := RenderNote("Quick Summary", recordedAt, 3725, "- point one", "[00:00] hi")

	for _, want := range []string{
		"**Template**: Quick Summary",
		"**Recorded**: 2026-03-14 09:30",
		"**Duration**: 01:02:05",
		"- point one",
		"<summary>Full Transcript</summary>",
		"[00:00] hi",
	} {
		if !strings.Contains(note, want) {
			t.Errorf("note missing %q:\n%s", want, note)
		}
	}
}

func TestPreview(t *testing.T) {
	short := "brief summary"
	if got := Preview(short, 200); got != short {
		t.Errorf("short preview changed: %q", got)
	}

	long := strings.Repeat("a", 300)
	got := Preview(long, 200)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("long preview = %d chars, want 203 ending in ellipsis", len(got))
	}
}

func TestWriteNote(t *testing.T) {
	vault := t.TempDir()

	path, err := WriteNote(vault, "test.md", "# hello")
	if err != nil {
		t.Fatalf("WriteNote: %v", err)
	}
	if path != filepath.Join(vault, "test.md") {
		t.Errorf("unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if string(data) != "# hello" {
		t.Errorf("note content = %q", data)
	}
}

func TestWriteNote_MissingVault(t *testing.T) {
	if _, err := WriteNote("/nonexistent/vault/path", "test.md", "x"); err == nil {
		t.Error("expected error for missing vault")
	}
}
