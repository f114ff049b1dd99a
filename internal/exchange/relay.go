package exchange

import (
	"context"
	"strings"

	"secretsanta/internal/lifecycle"
	"secretsanta/internal/messaging"
	dErrors "secretsanta/pkg/domain-errors"
)

// HandleText queues the caller's message and returns the prompt asking
// where to deliver it. Commands (text starting with "/") are not relayed and
// yield a nil prompt.
func (s *Service) HandleText(ctx context.Context, text string) (*messaging.Message, error) {
	if strings.HasPrefix(text, "/") {
		return nil, nil
	}
	if text == "" {
		return nil, validation("message text is required")
	}
	return s.queue(ctx, messaging.Text(text))
}

// HandlePhoto queues the caller's photo and returns the destination prompt.
func (s *Service) HandlePhoto(ctx context.Context, photoID, caption string) (*messaging.Message, error) {
	if photoID == "" {
		return nil, validation("photo id is required")
	}
	return s.queue(ctx, messaging.Photo(photoID, caption))
}

func (s *Service) queue(ctx context.Context, msg messaging.Message) (*messaging.Message, error) {
	id, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.phases.Require(ctx, lifecycle.OpRelayMessage); err != nil {
		return nil, err
	}
	me, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if me.GiftsTo == "" || me.ReceivesFrom == "" {
		return nil, dErrors.New(dErrors.CodeUnknownParticipant, "you are not part of the gift chain")
	}
	recipient, err := s.directory.Get(ctx, me.GiftsTo)
	if err != nil {
		return nil, err
	}

	s.relayMu.Lock()
	s.relay[id] = msg
	s.relayMu.Unlock()

	prompt := messaging.Text(
		"Do you want to send this to your Santa (the mystery person giving you a gift) or to your recipient "+recipient.Description+"?",
		messaging.Option{Label: "Santa", Data: CallbackSanta},
		messaging.Option{Label: recipient.Description, Data: CallbackRecipient},
	)
	return &prompt, nil
}

// HandleCallback acts on an inline option chosen by the caller: confirming a
// registration, or delivering the queued message to their Santa or their
// recipient. It returns the acknowledgement to show the caller.
func (s *Service) HandleCallback(ctx context.Context, data string) (*messaging.Message, error) {
	switch data {
	case CallbackConfirm:
		if err := s.Confirm(ctx); err != nil {
			return nil, err
		}
		ack := messaging.Text("You are in! Watch out for your recipient once matching is done.")
		return &ack, nil
	case CallbackSanta, CallbackRecipient:
		return s.deliver(ctx, data)
	default:
		s.logger.ErrorContext(ctx, "unexpected callback data", "data", data)
		return nil, validation("unrecognised option " + data)
	}
}

func (s *Service) deliver(ctx context.Context, target string) (*messaging.Message, error) {
	id, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.phases.Require(ctx, lifecycle.OpRelayMessage); err != nil {
		return nil, err
	}

	s.relayMu.Lock()
	queued, ok := s.relay[id]
	s.relayMu.Unlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "there is no message waiting to be sent")
	}

	me, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var to, header, ack string
	if target == CallbackSanta {
		to = me.ReceivesFrom
		header = "Message from your recipient " + me.Description + ":"
		ack = "Sent to your Santa."
	} else {
		to = me.GiftsTo
		header = "Message from your Santa:"
		ack = "Sent to your recipient."
	}
	if to == "" {
		return nil, dErrors.New(dErrors.CodeUnknownParticipant, "you are not part of the gift chain")
	}

	switch queued.Kind {
	case messaging.KindPhoto:
		if err := s.send(ctx, to, messaging.Text(header)); err != nil {
			return nil, err
		}
		if err := s.send(ctx, to, queued); err != nil {
			return nil, err
		}
	default:
		if err := s.send(ctx, to, messaging.Text(header+"\n\n"+queued.Text)); err != nil {
			return nil, err
		}
	}
	s.logger.DebugContext(ctx, "relayed message", "from", id, "to", to, "kind", queued.Kind)

	reply := messaging.Text(ack)
	return &reply, nil
}
