package trendsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

const (
	pageSize = 100
	maxPages = 5
)

// historyAPI — часть tg.Client, которой достаточно для чтения каналов.
type historyAPI interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
}

// Telegram собирает карточки товаров из публичных каналов через MTProto.
type Telegram struct {
	client   *telegram.Client
	channels []string
	log      zerolog.Logger
}

var _ domain.TrendSource = (*Telegram)(nil)

// NewTelegram создаёт сборщик. Сессия должна быть авторизована заранее.
func NewTelegram(apiID int, apiHash, sessionFile string, channels []string, logger zerolog.Logger) (*Telegram, error) {
	if apiID == 0 || apiHash == "" {
		return nil, fmt.Errorf("mtproto api id and hash are required")
	}
	log := logger.With().Str("component", "trendsource").Logger()
	converted, err := PrepareSession(sessionFile)
	if err != nil {
		return nil, err
	}
	if converted {
		log.Info().Str("path", sessionFile).Msg("trendsource: сессия сконвертирована в формат gotd")
	}
	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionFile},
	})
	aliases := make([]string, 0, len(channels))
	for _, ch := range channels {
		if alias := strings.TrimPrefix(strings.TrimSpace(ch), "@"); alias != "" {
			aliases = append(aliases, alias)
		}
	}
	return &Telegram{client: client, channels: aliases, log: log}, nil
}

// Collect реализует domain.TrendSource.
func (t *Telegram) Collect(ctx context.Context, since time.Time) ([]domain.TrendFacts, error) {
	var out []domain.TrendFacts
	err := t.client.Run(ctx, func(ctx context.Context) error {
		status, err := t.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("%w: mtproto session is not authorized", domain.ErrExternalDependency)
		}
		out = collect(ctx, t.client.API(), t.channels, since, t.log)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// collect обходит каналы по очереди. Ошибка одного канала не прерывает сбор остальных.
func collect(ctx context.Context, api historyAPI, channels []string, since time.Time, log zerolog.Logger) []domain.TrendFacts {
	var out []domain.TrendFacts
	for _, alias := range channels {
		posts, err := channelPosts(ctx, api, alias, since)
		if err != nil {
			metrics.TrendCollectorErrors.Inc()
			log.Warn().Err(err).Str("channel", alias).Msg("trendsource: канал пропущен")
			continue
		}
		for _, p := range posts {
			if facts, ok := ParsePost(p); ok {
				out = append(out, facts)
			}
		}
	}
	return out
}

func channelPosts(ctx context.Context, api historyAPI, alias string, since time.Time) ([]Post, error) {
	start := time.Now()
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: alias})
	metrics.ObserveNetworkRequest("mtproto", "resolve_username", alias, start, err)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", alias, err)
	}
	peer, ok := channelPeer(resolved)
	if !ok {
		return nil, fmt.Errorf("%s is not a channel", alias)
	}

	var posts []Post
	offsetID := 0
	for page := 0; page < maxPages; page++ {
		start := time.Now()
		res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    pageSize,
		})
		metrics.ObserveNetworkRequest("mtproto", "get_history", alias, start, err)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", alias, err)
		}
		messages := historyMessages(res)
		reachedSince := false
		for _, m := range messages {
			msg, ok := m.(*tg.Message)
			if !ok {
				continue
			}
			offsetID = msg.ID
			if time.Unix(int64(msg.Date), 0).Before(since) {
				reachedSince = true
				break
			}
			posts = append(posts, toPost(alias, msg))
		}
		if reachedSince || len(messages) < pageSize {
			break
		}
	}
	return posts, nil
}

func channelPeer(resolved *tg.ContactsResolvedPeer) (*tg.InputPeerChannel, bool) {
	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, true
		}
	}
	return nil, false
}

func historyMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch v := res.(type) {
	case *tg.MessagesChannelMessages:
		return v.Messages
	case *tg.MessagesMessagesSlice:
		return v.Messages
	case *tg.MessagesMessages:
		return v.Messages
	}
	return nil
}

func toPost(alias string, msg *tg.Message) Post {
	p := Post{Channel: alias, MessageID: msg.ID, Text: msg.Message}
	if views, ok := msg.GetViews(); ok {
		p.Views = int64(views)
	}
	if forwards, ok := msg.GetForwards(); ok {
		p.Forwards = int64(forwards)
	}
	if replies, ok := msg.GetReplies(); ok {
		p.Replies = int64(replies.Replies)
	}
	if reactions, ok := msg.GetReactions(); ok {
		for _, r := range reactions.Results {
			p.Reactions += int64(r.Count)
		}
	}
	return p
}
