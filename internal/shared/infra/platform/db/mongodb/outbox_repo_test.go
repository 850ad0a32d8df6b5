package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestFromMongoOutboxEvent(t *testing.T) {
	id := uuid.New()
	evt, err := fromMongoOutboxEvent(&mongoOutboxEvent{
		ID:        id.String(),
		EventType: sharedDomain.ChangeDetected,
		Payload:   `{"event":"mongodb.reviews.insert"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, id, evt.ID)
	assert.Equal(t, map[string]interface{}{"event": "mongodb.reviews.insert"}, evt.Payload)

	_, err = fromMongoOutboxEvent(&mongoOutboxEvent{ID: "nope", Payload: "{}"})
	assert.Error(t, err)

	_, err = fromMongoOutboxEvent(&mongoOutboxEvent{ID: id.String(), Payload: "{"})
	assert.Error(t, err)
}

// Necesita un MongoDB real: MONGODB_URI=mongodb://localhost:27017
func TestOutboxRepoMongoDB_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI no definido; se omite el test de integración con MongoDB")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	dbName := "hexapulse_outbox_test_" + uuid.NewString()[:8]
	defer client.Database(dbName).Drop(context.Background())

	repo := NewOutboxRepoMongoDB(client, dbName)
	require.NoError(t, repo.EnsureIndexes(ctx))

	evt := sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "reviews",
		AggregateID:   "reviews:abc",
		EventType:     sharedDomain.ChangeDetected,
		Payload:       map[string]interface{}{"event": "mongodb.reviews.insert"},
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.AppendOutbox(ctx, evt))

	pending, err := repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, evt.ID, pending[0].ID)
	assert.Equal(t, "reviews:abc", pending[0].AggregateID)

	require.NoError(t, repo.MarkOutboxProcessed(ctx, evt.ID))
	pending, err = repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Error(t, repo.MarkOutboxProcessed(ctx, uuid.New()))
}
