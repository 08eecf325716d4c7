package trendsource

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"trend-launch/internal/domain"
)

// Post — сообщение канала вместе со счётчиками вовлечённости.
type Post struct {
	Channel   string
	MessageID int
	Text      string
	Views     int64
	Reactions int64
	Replies   int64
	Forwards  int64
}

// URL возвращает публичную ссылку на сообщение.
func (p Post) URL() string {
	return "https://t.me/" + p.Channel + "/" + strconv.Itoa(p.MessageID)
}

var fieldAliases = map[string]string{
	"category":      "category",
	"категория":     "category",
	"price":         "price",
	"цена":          "price",
	"cost":          "cost",
	"закупка":       "cost",
	"себестоимость": "cost",
}

// ParsePost выделяет карточку товара из поста. Первая непустая строка — название,
// дальше ожидаются строки вида «Цена: $29.99» и «Закупка: $8.50».
// Посты без названия или без обеих цен товаром не считаются.
func ParsePost(p Post) (domain.TrendFacts, bool) {
	facts := domain.TrendFacts{
		Source:    "telegram:" + p.Channel,
		SourceURL: p.URL(),
		Views:     p.Views,
		Likes:     p.Reactions,
		Comments:  p.Replies,
		Shares:    p.Forwards,
	}
	var hasPrice, hasCost bool
	for _, line := range strings.Split(p.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		field := ""
		if ok {
			field = fieldAliases[strings.ToLower(strings.TrimSpace(key))]
		}
		switch field {
		case "category":
			facts.Category = strings.ToLower(strings.TrimSpace(value))
		case "price":
			if cents, ok := parseCents(value); ok {
				facts.SuggestedPriceCents = cents
				hasPrice = true
			}
		case "cost":
			if cents, ok := parseCents(value); ok {
				facts.SourceCostCents = cents
				hasCost = true
			}
		default:
			if facts.Name == "" {
				facts.Name = cleanTitle(line)
			}
		}
	}
	if facts.Name == "" || !hasPrice || !hasCost {
		return domain.TrendFacts{}, false
	}
	return facts, true
}

func cleanTitle(line string) string {
	return strings.TrimFunc(line, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// parseCents понимает «$29.99», «29,99 $», «1 299.00».
func parseCents(raw string) (int64, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune('.')
		}
	}
	value, err := strconv.ParseFloat(strings.Trim(b.String(), "."), 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return int64(math.Round(value * 100)), true
}
