package contentgen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"trend-launch/internal/domain"
)

type fakeCompleter struct {
	answer string
	err    error
	prompt string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, user string, out any) error {
	f.prompt = user
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.answer), out)
}

var request = domain.ContentRequest{
	Product:  domain.ProductSnapshot{Name: "Sunset Lamp", SuggestedPriceCents: 2999},
	Platform: "tiktok",
	Segments: domain.Segments,
}

func TestGenerateScriptsMapsSegments(t *testing.T) {
	client := &fakeCompleter{answer: `{"demo":" d ","objection":"o","trust":"t","offer":"of","qa":"q"}`}
	scripts, err := NewOpenAI(client).GenerateScripts(context.Background(), request)
	require.NoError(t, err)
	require.Equal(t, "d", scripts[domain.SegmentDemo])
	require.Equal(t, "q", scripts[domain.SegmentQA])
	require.Contains(t, client.prompt, "$29.99")
}

func TestGeneratePlaybookDropsEmptyValues(t *testing.T) {
	client := &fakeCompleter{answer: `{"pinned_comments":["a"," "],"quick_responses":{"ship":"2 days","":"x"},"prohibited_phrases":["cures",""]}`}
	playbook, err := NewOpenAI(client).GenerateModeratorPlaybook(context.Background(), request)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, playbook.PinnedComments)
	require.Equal(t, map[string]string{"ship": "2 days"}, playbook.QuickResponses)
	require.Equal(t, []string{"cures"}, playbook.ProhibitedPhrases)
}

func TestGenerateScriptsPropagatesError(t *testing.T) {
	client := &fakeCompleter{err: errors.New("rate limited")}
	_, err := NewOpenAI(client).GenerateScripts(context.Background(), request)
	require.ErrorContains(t, err, "rate limited")
}

func TestTemplateScriptsAvoidOwnProhibitedPhrases(t *testing.T) {
	ctx := context.Background()
	scripts, err := NewTemplate().GenerateScripts(ctx, request)
	require.NoError(t, err)
	playbook, err := NewTemplate().GenerateModeratorPlaybook(ctx, request)
	require.NoError(t, err)
	for _, segment := range domain.Segments {
		text := strings.ToLower(scripts[segment])
		require.NotEmpty(t, text)
		for _, phrase := range playbook.ProhibitedPhrases {
			require.NotContains(t, text, strings.ToLower(phrase))
		}
	}
}
