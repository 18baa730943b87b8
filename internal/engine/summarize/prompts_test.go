package summarize

import (
	"strings"
	"testing"
)

func TestBuildPrompt_Templates(t *testing.T) {
	tests := []struct {
		name       string
		templateID string
		wantPhrase string
	}{
		{"default", "default", "Executive Summary"},
		{"quick", "quick", "3-5 bullet points"},
		{"action items", "action_items", "Who is responsible"},
		{"decisions", "decisions", "What was decided"},
		{"unknown falls back to default", "bogus", "Executive Summary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, user := BuildPrompt(tt.templateID, "the transcript body", "")
			if system != SystemPrompt {
				t.Error("system prompt changed")
			}
			if !strings.Contains(user, tt.wantPhrase) {
				t.Errorf("user prompt missing %q", tt.wantPhrase)
			}
			if !strings.Contains(user, "the transcript body") {
				t.Error("user prompt missing transcript")
			}
		})
	}
}

func TestBuildPrompt_CustomInstructions(t *testing.T) {
	_, user := BuildPrompt("quick", "transcript", "focus on budget items")
	if !strings.Contains(user, "Additional instructions: focus on budget items") {
		t.Errorf("custom instructions not appended:\n%s", user)
	}

	_, user = BuildPrompt("quick", "transcript", "")
	if strings.Contains(user, "Additional instructions") {
		t.Error("empty custom instructions must not be appended")
	}
}

func TestTemplates_Catalog(t *testing.T) {
	templates := Templates()
	if len(templates) != 4 {
		t.Fatalf("got %d templates, want 4", len(templates))
	}
	if templates[0].ID != "default" {
		t.Errorf("first template = %s, want default", templates[0].ID)
	}
	for _, tmpl := range templates {
		if tmpl.Label == "" || tmpl.Description == "" {
			t.Errorf("template %s missing label or description", tmpl.ID)
		}
	}
}

func TestTemplateLabel(t *testing.T) {
	if got := TemplateLabel("quick"); got != "Quick Summary" {
		t.Errorf("TemplateLabel(quick) = %q", got)
	}
	if got := TemplateLabel("nope"); got != "Full Summary" {
		t.Errorf("unknown id should fall back to default label, got %q", got)
	}
}
