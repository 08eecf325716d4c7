package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"trend-launch/internal/domain"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestNotifySendsEscapedHTML(t *testing.T) {
	bot := &fakeSender{}
	n := newTelegram(bot, 42, zerolog.Nop())

	err := n.Notify(context.Background(), domain.Alert{Title: "Margin <20%", Body: "net 5 & falling", LaunchID: "l-1"})
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)
	require.Equal(t, int64(42), bot.sent[0].ChatID)
	require.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
	require.Contains(t, bot.sent[0].Text, "Margin &lt;20%")
	require.Contains(t, bot.sent[0].Text, "net 5 &amp; falling")
	require.Contains(t, bot.sent[0].Text, "<code>l-1</code>")
}

func TestNotifyReturnsSendError(t *testing.T) {
	n := newTelegram(&fakeSender{err: errors.New("blocked")}, 42, zerolog.Nop())
	require.ErrorContains(t, n.Notify(context.Background(), domain.Alert{Title: "x"}), "blocked")
}

func TestSplitMessageRespectsLimit(t *testing.T) {
	text := strings.Repeat("a", 3000) + "\n\n" + strings.Repeat("b", 2000) + "\n" + strings.Repeat("c", 500)

	parts := SplitMessage(text)
	require.Len(t, parts, 2)
	for _, part := range parts {
		require.LessOrEqual(t, len([]rune(part)), messageLimit)
	}
	require.Equal(t, strings.Repeat("a", 3000), parts[0])
	require.True(t, strings.HasPrefix(parts[1], "b"))
	require.True(t, strings.HasSuffix(parts[1], strings.Repeat("c", 500)))
}

func TestSplitMessageLongLine(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", messageLimit*2+10))
	require.Len(t, parts, 3)
	require.Len(t, parts[2], 10)
}

func TestSplitMessageShortAndEmpty(t *testing.T) {
	require.Equal(t, []string{"hello"}, SplitMessage(" hello "))
	require.Nil(t, SplitMessage("   "))
}
