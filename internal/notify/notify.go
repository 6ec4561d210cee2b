package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }

// Slack posts plain-text messages to one staff channel.
type Slack struct {
	client  *slack.Client
	channel string
}

func NewSlack(token, channel string, opts ...slack.Option) *Slack {
	return &Slack{
		client:  slack.New(token, opts...),
		channel: channel,
	}
}

func (s *Slack) Notify(ctx context.Context, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}

var (
	_ Notifier = Noop{}
	_ Notifier = (*Slack)(nil)
)
