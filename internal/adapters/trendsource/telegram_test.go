package trendsource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	channels map[string][]tg.MessageClass
	requests []*tg.MessagesGetHistoryRequest
}

func (f *fakeHistory) ContactsResolveUsername(_ context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	if _, ok := f.channels[req.Username]; !ok {
		return nil, errors.New("USERNAME_NOT_OCCUPIED")
	}
	return &tg.ContactsResolvedPeer{
		Peer:  &tg.PeerChannel{ChannelID: 7},
		Chats: []tg.ChatClass{&tg.Channel{ID: 7, AccessHash: 99, Username: req.Username}},
	}, nil
}

func (f *fakeHistory) MessagesGetHistory(_ context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	f.requests = append(f.requests, req)
	peer, ok := req.Peer.(*tg.InputPeerChannel)
	if !ok || peer.AccessHash != 99 {
		return &tg.MessagesChannelMessages{}, nil
	}
	return &tg.MessagesChannelMessages{Messages: f.channels["finds"]}, nil
}

func message(id int, at time.Time, text string) *tg.Message {
	msg := &tg.Message{ID: id, Date: int(at.Unix()), Message: text, PeerID: &tg.PeerChannel{ChannelID: 7}}
	msg.SetViews(10_000)
	msg.SetForwards(12)
	msg.SetReplies(tg.MessageReplies{Replies: 30})
	msg.SetReactions(tg.MessageReactions{Results: []tg.ReactionCount{
		{Reaction: &tg.ReactionEmoji{Emoticon: "🔥"}, Count: 200},
		{Reaction: &tg.ReactionEmoji{Emoticon: "👍"}, Count: 50},
	}})
	return msg
}

func TestCollectStopsAtSinceAndParsesProducts(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeHistory{channels: map[string][]tg.MessageClass{
		"finds": {
			message(3, since.Add(2*time.Hour), "Mini projector\nЦена: 59.00\nЗакупка: 21.00"),
			&tg.MessageService{ID: 2},
			message(2, since.Add(time.Hour), "Доброе утро"),
			message(1, since.Add(-time.Hour), "Old lamp\nЦена: 10\nЗакупка: 2"),
		},
	}}

	facts := collect(context.Background(), api, []string{"finds", "missing"}, since, zerolog.Nop())
	require.Len(t, facts, 1)
	require.Equal(t, "Mini projector", facts[0].Name)
	require.Equal(t, "https://t.me/finds/3", facts[0].SourceURL)
	require.Equal(t, int64(10_000), facts[0].Views)
	require.Equal(t, int64(250), facts[0].Likes)
	require.Equal(t, int64(30), facts[0].Comments)
	require.Equal(t, int64(12), facts[0].Shares)
	require.Len(t, api.requests, 1)
	require.Equal(t, pageSize, api.requests[0].Limit)
}
