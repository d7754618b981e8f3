package service

import (
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"docqa-be/pkg/rag"
)

// AnsweredMessage is the payload published on the answered topic after a
// job's answer has been written to its hash.
type AnsweredMessage struct {
	JobId           string `json:"jobId"`
	UserId          string `json:"userId"`
	Failed          bool   `json:"failed"`
	Reason          string `json:"reason,omitempty"`
	ChunksRetrieved int    `json:"chunksRetrieved"`
}

type IPublisherService interface {
	PublishAnswered(jobId, userId string, record *rag.AnswerRecord) error
	PublishFailed(jobId, userId, reason string) error
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

func (ps *publisherService) PublishAnswered(jobId, userId string, record *rag.AnswerRecord) error {
	return ps.publish(AnsweredMessage{
		JobId:           jobId,
		UserId:          userId,
		ChunksRetrieved: record.Metadata.ChunksRetrieved,
	})
}

func (ps *publisherService) PublishFailed(jobId, userId, reason string) error {
	return ps.publish(AnsweredMessage{
		JobId:  jobId,
		UserId: userId,
		Failed: true,
		Reason: reason,
	})
}

func (ps *publisherService) publish(payload AnsweredMessage) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := ps.pubSub.Publish(ps.topicName, msg); err != nil {
		log.Printf("[ERROR] failed to publish answered message for job %s: %v", payload.JobId, err)
		return err
	}
	return nil
}
