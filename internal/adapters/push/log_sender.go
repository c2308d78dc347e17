package push

import (
	"context"
	"dispatch-coordination-service/internal/ports"

	"github.com/rs/zerolog/log"
)

var _ ports.PushSender = LogSender{}

// LogSender writes push messages to the log instead of delivering them.
// It stands in when no webhook is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg ports.PushMessage) error {
	log.Ctx(ctx).Info().
		Strs("recipients", msg.RecipientIDs).
		Str("title", msg.Title).
		Msg("push (not delivered)")
	return nil
}
