// Package contentgen генерирует сценарии ведущего и материалы модератора.
package contentgen

import (
	"context"
	"fmt"
	"strings"

	"trend-launch/internal/domain"
)

type jsonCompleter interface {
	CompleteJSON(ctx context.Context, system, user string, out any) error
}

// OpenAI реализует domain.ContentGenerator через Chat Completions.
type OpenAI struct {
	client jsonCompleter
}

var _ domain.ContentGenerator = (*OpenAI)(nil)

// NewOpenAI создаёт генератор контента.
func NewOpenAI(client jsonCompleter) *OpenAI {
	return &OpenAI{client: client}
}

const systemPrompt = "You write live-commerce show collateral. Stay factual about the product, never promise results, never invent discounts. Answer with JSON only."

type scriptsPayload struct {
	Demo      string `json:"demo"`
	Objection string `json:"objection"`
	Trust     string `json:"trust"`
	Offer     string `json:"offer"`
	QA        string `json:"qa"`
}

type playbookPayload struct {
	PinnedComments    []string          `json:"pinned_comments"`
	QuickResponses    map[string]string `json:"quick_responses"`
	ProhibitedPhrases []string          `json:"prohibited_phrases"`
}

func describe(req domain.ContentRequest) string {
	p := req.Product
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", p.Name)
	if p.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", p.Category)
	}
	fmt.Fprintf(&b, "Price: %s\n", formatCents(p.SuggestedPriceCents))
	fmt.Fprintf(&b, "Platform: %s\n", req.Platform)
	fmt.Fprintf(&b, "Source: %s\n", p.SourceURL)
	return b.String()
}

// GenerateScripts реализует domain.ContentGenerator.
func (g *OpenAI) GenerateScripts(ctx context.Context, req domain.ContentRequest) (domain.PresenterScripts, error) {
	prompt := describe(req) + `
Write five presenter segments for a 7-minute live loop.
Return JSON {"demo": "...", "objection": "...", "trust": "...", "offer": "...", "qa": "..."}.`
	var parsed scriptsPayload
	if err := g.client.CompleteJSON(ctx, systemPrompt, prompt, &parsed); err != nil {
		return nil, fmt.Errorf("generate scripts: %w", err)
	}
	return domain.PresenterScripts{
		domain.SegmentDemo:      strings.TrimSpace(parsed.Demo),
		domain.SegmentObjection: strings.TrimSpace(parsed.Objection),
		domain.SegmentTrust:     strings.TrimSpace(parsed.Trust),
		domain.SegmentOffer:     strings.TrimSpace(parsed.Offer),
		domain.SegmentQA:        strings.TrimSpace(parsed.QA),
	}, nil
}

// GenerateModeratorPlaybook реализует domain.ContentGenerator.
func (g *OpenAI) GenerateModeratorPlaybook(ctx context.Context, req domain.ContentRequest) (domain.ModeratorPlaybook, error) {
	prompt := describe(req) + `
Prepare the chat moderator playbook: 3-5 pinned comments, quick responses keyed by a short trigger,
and phrases the presenter must never say (health claims, guarantees, fake scarcity).
Return JSON {"pinned_comments": ["..."], "quick_responses": {"shipping": "..."}, "prohibited_phrases": ["..."]}.`
	var parsed playbookPayload
	if err := g.client.CompleteJSON(ctx, systemPrompt, prompt, &parsed); err != nil {
		return domain.ModeratorPlaybook{}, fmt.Errorf("generate playbook: %w", err)
	}
	responses := make(map[string]string, len(parsed.QuickResponses))
	for trigger, answer := range parsed.QuickResponses {
		trigger, answer = strings.TrimSpace(trigger), strings.TrimSpace(answer)
		if trigger == "" || answer == "" {
			continue
		}
		responses[trigger] = answer
	}
	return domain.ModeratorPlaybook{
		PinnedComments:    filterValues(parsed.PinnedComments),
		QuickResponses:    responses,
		ProhibitedPhrases: filterValues(parsed.ProhibitedPhrases),
	}, nil
}

func filterValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
