package notification

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackConfig configures a SlackNotifier.
type SlackConfig struct {
	// Token is a Slack bot token with chat:write scope.
	Token string

	// Channel is the channel ID or name approvals are posted to.
	Channel string
}

// SlackNotifier posts a formatted message per approval event to a fixed
// Slack channel, so an on-call human sees pending writes without polling
// the gateway.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier builds a SlackNotifier. Returns an error if token or
// channel is empty.
func NewSlackNotifier(config SlackConfig) (*SlackNotifier, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	if config.Channel == "" {
		return nil, fmt.Errorf("slack channel is required")
	}
	return &SlackNotifier{
		client:  slack.New(config.Token),
		channel: config.Channel,
	}, nil
}

func (s *SlackNotifier) Notify(ctx context.Context, event *Event) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(formatSlackMessage(event), false),
	)
	return err
}

func formatSlackMessage(event *Event) string {
	rec := event.Approval
	switch event.Type {
	case EventApprovalCreated:
		return fmt.Sprintf(":lock: Approval `%s` requested by tenant `%s` for %s %s — expires %s",
			rec.ID, rec.TenantID, rec.Details.Provider, rec.Details.Classification, rec.ExpiresAt.Format("15:04:05 MST"))
	case EventApprovalApproved:
		return fmt.Sprintf(":white_check_mark: Approval `%s` approved by %s", rec.ID, event.Actor)
	case EventApprovalDenied:
		return fmt.Sprintf(":no_entry: Approval `%s` denied by %s", rec.ID, event.Actor)
	case EventApprovalExpired:
		return fmt.Sprintf(":hourglass: Approval `%s` expired unanswered", rec.ID)
	default:
		return fmt.Sprintf("Approval `%s` event %s", rec.ID, event.Type)
	}
}
