package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"essay-coach-be/internal/constant"
	"essay-coach-be/internal/dto"
	"essay-coach-be/internal/entity"
	"essay-coach-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmbedTopic = "EMBED_DOCUMENT_TEST"

func newTestPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestConsumerEmbedsPublishedDocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := newFakeDocumentRepo()
	doc := &entity.Document{
		Title:    "The Long Walk",
		Content:  "A draft about perseverance.",
		Category: constant.DocumentCategoryNarrative,
	}
	require.NoError(t, repo.Create(ctx, doc))

	pubSub := newTestPubSub()
	defer pubSub.Close()

	consumer := NewConsumerService(pubSub, testEmbedTopic, repo, embedding.NewEncoder(&stubEmbedder{}))
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService(testEmbedTopic, pubSub)
	payload, _ := json.Marshal(dto.PublishEmbedDocumentMessage{DocumentId: doc.Id})
	require.NoError(t, publisher.Publish(ctx, payload))

	waitFor(t, 5*time.Second, func() bool {
		return repo.storedEmbedding(doc.Id) != nil
	})
	assert.Len(t, repo.storedEmbedding(doc.Id), embedding.Dimension)
}

func TestConsumerSkipsDeletedDocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := newFakeDocumentRepo()
	pubSub := newTestPubSub()
	defer pubSub.Close()

	embedder := &stubEmbedder{}
	consumer := NewConsumerService(pubSub, testEmbedTopic, repo, embedding.NewEncoder(embedder))
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService(testEmbedTopic, pubSub)
	payload, _ := json.Marshal(dto.PublishEmbedDocumentMessage{DocumentId: uuid.New()})
	require.NoError(t, publisher.Publish(ctx, payload))

	// Give the consumer a moment; a missing document must be acked without
	// ever touching the encoder.
	time.Sleep(200 * time.Millisecond)
	embedder.mu.Lock()
	calls := embedder.calls
	embedder.mu.Unlock()
	assert.Zero(t, calls)
}
