package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"essay-coach-be/internal/dto"
	"essay-coach-be/internal/repository/contract"
	"essay-coach-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the embed-document topic: for each queued id it
// re-reads the document, encodes title plus body, and writes the vector back.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	documents contract.DocumentRepository
	encoder   *embedding.Encoder
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	documents contract.DocumentRepository,
	encoder *embedding.Encoder,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		documents: documents,
		encoder:   encoder,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal embed message: %v", err)
		msg.Ack() // malformed messages never become valid, drop them
		return
	}

	log.Printf("[INFO] Embedding document %s", payload.DocumentId)

	doc, err := cs.documents.FindById(ctx, payload.DocumentId)
	if err != nil {
		log.Printf("[ERROR] Failed to load document %s: %v", payload.DocumentId, err)
		msg.Nack() // retriable
		return
	}
	if doc == nil {
		log.Printf("[WARN] Document %s deleted before embedding, skipping", payload.DocumentId)
		msg.Ack()
		return
	}

	// Title carries signal for short drafts, fold it into the embedded text
	text := doc.Content
	if doc.Title != "" {
		text = fmt.Sprintf("%s\n\n%s", doc.Title, doc.Content)
	}

	vector, err := cs.encoder.Encode(ctx, text)
	if err != nil {
		log.Printf("[ERROR] Failed to encode document %s: %v", payload.DocumentId, err)
		msg.Nack() // retriable, includes the model-not-ready window at startup
		return
	}

	if err := cs.documents.UpdateEmbedding(ctx, doc.Id, vector); err != nil {
		log.Printf("[ERROR] Failed to store embedding for document %s: %v", payload.DocumentId, err)
		msg.Nack()
		return
	}

	log.Printf("[SUCCESS] Document %s embedded", payload.DocumentId)
	msg.Ack()
}
