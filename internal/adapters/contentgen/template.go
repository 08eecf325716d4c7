package contentgen

import (
	"context"
	"fmt"

	"trend-launch/internal/domain"
)

// Template собирает материалы по шаблонам без внешних вызовов. Используется, когда ключ OpenAI не задан.
type Template struct{}

var _ domain.ContentGenerator = Template{}

// NewTemplate создаёт шаблонный генератор.
func NewTemplate() Template { return Template{} }

// GenerateScripts реализует domain.ContentGenerator.
func (Template) GenerateScripts(_ context.Context, req domain.ContentRequest) (domain.PresenterScripts, error) {
	name := req.Product.Name
	price := formatCents(req.Product.SuggestedPriceCents)
	return domain.PresenterScripts{
		domain.SegmentDemo:      fmt.Sprintf("Show %s in action up close and walk through how it is used day to day.", name),
		domain.SegmentObjection: fmt.Sprintf("Address the usual doubts about %s: quality, size, delivery time.", name),
		domain.SegmentTrust:     fmt.Sprintf("Share how %s was tested and what real buyers say about it.", name),
		domain.SegmentOffer:     fmt.Sprintf("Today %s is %s on %s, link is pinned in the chat.", name, price, req.Platform),
		domain.SegmentQA:        "Answer chat questions one by one, repeat each question before answering.",
	}, nil
}

// GenerateModeratorPlaybook реализует domain.ContentGenerator.
func (Template) GenerateModeratorPlaybook(_ context.Context, req domain.ContentRequest) (domain.ModeratorPlaybook, error) {
	return domain.ModeratorPlaybook{
		PinnedComments: []string{
			fmt.Sprintf("%s — %s, link in bio", req.Product.Name, formatCents(req.Product.SuggestedPriceCents)),
			"Ask your questions in the chat, the host answers live",
		},
		QuickResponses: map[string]string{
			"shipping": "Orders ship within 2 business days, tracking is sent by email.",
			"returns":  "Returns are accepted within 30 days of delivery.",
		},
		ProhibitedPhrases: []string{"guaranteed results", "cures", "only today forever", "risk-free"},
	}, nil
}
