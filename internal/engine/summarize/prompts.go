package summarize

import "fmt"

// SystemPrompt frames every summarization request.
const SystemPrompt = `You are an expert meeting summarizer. Your task is to create clear, actionable summaries from meeting transcripts.

Guidelines:
- Focus on key decisions, action items, and important discussions
- Use bullet points for clarity
- Highlight any deadlines or assignments mentioned
- Keep the summary concise but comprehensive
- Pay special attention to sections marked as [IMPORTANT START]...[IMPORTANT END]
- If the transcript contains important markers, ensure those topics are prominently featured`

const defaultTemplate = `Please summarize the following meeting transcript. Pay special attention to any sections marked with [IMPORTANT START] and [IMPORTANT END] tags - these indicate topics that were flagged as particularly important during the meeting.

TRANSCRIPT:
%s

Please provide:
1. **Executive Summary** (2-3 sentences)
2. **Key Discussion Points** (bullet points)
3. **Decisions Made** (if any)
4. **Action Items** (with assignees if mentioned)
5. **Important Highlights** (from marked sections)
6. **Next Steps** (if discussed)`

const quickTemplate = `Summarize this meeting transcript in 3-5 bullet points, focusing on the most important outcomes:

%s`

const actionItemsTemplate = `Extract all action items and tasks from this meeting transcript. For each item, identify:
- The task description
- Who is responsible (if mentioned)
- Any deadline (if mentioned)

TRANSCRIPT:
%s`

const decisionLogTemplate = `Extract all decisions made during this meeting. For each decision, note:
- What was decided
- The context/reasoning (if discussed)
- Any conditions or caveats

TRANSCRIPT:
%s`

// TemplateInfo describes one prompt template for the template catalog.
type TemplateInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Templates lists the available prompt templates, default first.
func Templates() []TemplateInfo {
	return []TemplateInfo{
		{ID: "default", Label: "Full Summary", Description: "Executive summary, discussion points, decisions, action items and next steps."},
		{ID: "quick", Label: "Quick Summary", Description: "Three to five bullet points covering the most important outcomes."},
		{ID: "action_items", Label: "Action Items", Description: "Every task with owner and deadline where mentioned."},
		{ID: "decisions", Label: "Decision Log", Description: "Every decision with its context and caveats."},
	}
}

// TemplateLabel returns the display label for a template id, falling back
// to the default template's label for unknown ids.
func TemplateLabel(id string) string {
	for _, t := range Templates() {
		if t.ID == id {
			return t.Label
		}
	}
	return Templates()[0].Label
}

// BuildPrompt renders the system and user prompts for a summarization run.
// Unknown template ids fall back to the default template. Non-empty custom
// instructions are appended to the user prompt.
func BuildPrompt(templateID, transcript, customInstructions string) (system, user string) {
	tmpl := defaultTemplate
	switch templateID {
	case "quick":
		tmpl = quickTemplate
	case "action_items":
		tmpl = actionItemsTemplate
	case "decisions":
		tmpl = decisionLogTemplate
	}

	user = fmt.Sprintf(tmpl, transcript)
	if customInstructions != "" {
		user += fmt.Sprintf("\n\nAdditional instructions: %s", customInstructions)
	}
	return SystemPrompt, user
}
