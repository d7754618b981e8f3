package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"docqa-be/pkg/events"
	natspkg "docqa-be/pkg/nats"
)

// INotifierService bridges the in-process answered topic onto the NATS bus
// so other backends can react to finished jobs.
type INotifierService interface {
	Consume(ctx context.Context) error
}

type notifierService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	natsPub   *natspkg.Publisher
}

func NewNotifierService(pubSub *gochannel.GoChannel, topicName string, natsPub *natspkg.Publisher) INotifierService {
	return &notifierService{
		pubSub:    pubSub,
		topicName: topicName,
		natsPub:   natsPub,
	}
}

func (ns *notifierService) Consume(ctx context.Context) error {
	messages, err := ns.pubSub.Subscribe(ctx, ns.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ns.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (ns *notifierService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload AnsweredMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] invalid answered message %s: %v", msg.UUID, err)
		return
	}

	if ns.natsPub == nil {
		// NATS connection failed at startup. Degrade to local-only
		// delivery rather than blocking job completion.
		log.Printf("[WARN] NATS unavailable, skipping event for job %s", payload.JobId)
		return
	}

	var event events.Event
	if payload.Failed {
		event = events.NewJobFailedEvent(payload.JobId, payload.UserId, payload.Reason)
	} else {
		event = events.NewAnswerReadyEvent(payload.JobId, payload.UserId, payload.ChunksRetrieved)
	}

	if err := ns.natsPub.Publish(ctx, event); err != nil {
		log.Printf("[ERROR] failed to publish %s for job %s: %v", event.EventType(), payload.JobId, err)
	}
}
