package trendsource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePostProductCard(t *testing.T) {
	post := Post{
		Channel:   "viral_finds",
		MessageID: 42,
		Text:      "🔥 Portable Blender Pro 🔥\nКатегория: Kitchen\nЦена: $29.99\nЗакупка: 8,50 $\n#тренд",
		Views:     120_000,
		Reactions: 3_400,
		Replies:   210,
		Forwards:  90,
	}
	facts, ok := ParsePost(post)
	require.True(t, ok)
	require.Equal(t, "Portable Blender Pro", facts.Name)
	require.Equal(t, "kitchen", facts.Category)
	require.Equal(t, int64(2999), facts.SuggestedPriceCents)
	require.Equal(t, int64(850), facts.SourceCostCents)
	require.Equal(t, "telegram:viral_finds", facts.Source)
	require.Equal(t, "https://t.me/viral_finds/42", facts.SourceURL)
	require.Equal(t, int64(3_400), facts.Likes)
	require.Equal(t, int64(90), facts.Shares)
}

func TestParsePostRejectsNonProduct(t *testing.T) {
	cases := map[string]string{
		"plain text":    "Доброе утро! Сегодня без подборки.",
		"missing cost":  "Lamp\nPrice: 10.00",
		"missing price": "Lamp\nCost: 3.00",
		"empty":         "   ",
		"bad price":     "Lamp\nPrice: free\nCost: 3",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := ParsePost(Post{Channel: "c", MessageID: 1, Text: text})
			require.False(t, ok)
		})
	}
}

func TestParseCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"$29.99", 2999},
		{" 29,99 $", 2999},
		{"12", 1200},
		{"0.5", 50},
	}
	for _, tc := range cases {
		got, ok := parseCents(tc.in)
		require.True(t, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}
