package mongodb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/monitor/domain"
)

const pollLimit = 500

// Connect abre el cliente y comprueba que el primario responde.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return client, nil
}

// ChangeSourceMongo implementa domain.ChangeSource sobre MongoDB: change
// streams para el modo push y consultas por marca de agua para el sondeo.
type ChangeSourceMongo struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

var _ domain.ChangeSource = (*ChangeSourceMongo)(nil)

func NewChangeSourceMongo(client *mongo.Client, dbName string, log *zap.Logger) *ChangeSourceMongo {
	return &ChangeSourceMongo{client: client, db: client.Database(dbName), log: log}
}

// changeEvent es el subconjunto del evento de change stream que usamos.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
	DocumentKey   struct {
		ID interface{} `bson:"_id"`
	} `bson:"documentKey"`
	ClusterTime primitive.Timestamp `bson:"clusterTime"`
}

// Watch abre un change stream sólo para insert/update/replace, con el
// documento completo en los updates.
func (s *ChangeSourceMongo) Watch(ctx context.Context, collection string) (domain.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{
			domain.OpInsert, domain.OpUpdate, domain.OpReplace,
		}}}}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := s.db.Collection(collection).Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	return &mongoStream{cs: cs, collection: collection}, nil
}

type mongoStream struct {
	cs         *mongo.ChangeStream
	collection string
}

func (m *mongoStream) Next(ctx context.Context) (domain.RawChange, error) {
	if !m.cs.Next(ctx) {
		if err := m.cs.Err(); err != nil {
			return domain.RawChange{}, err
		}
		if err := ctx.Err(); err != nil {
			return domain.RawChange{}, err
		}
		return domain.RawChange{}, domain.ErrStreamClosed
	}

	var evt changeEvent
	if err := m.cs.Decode(&evt); err != nil {
		return domain.RawChange{}, err
	}

	ts := documentTimestamp(evt.FullDocument)
	if ts.IsZero() && evt.ClusterTime.T != 0 {
		ts = time.Unix(int64(evt.ClusterTime.T), 0)
	}

	return domain.RawChange{
		Collection: m.collection,
		Operation:  evt.OperationType,
		DocumentID: idString(evt.DocumentKey.ID),
		Document:   toDocument(evt.FullDocument),
		Timestamp:  ts,
	}, nil
}

func (m *mongoStream) Close(ctx context.Context) error {
	return m.cs.Close(ctx)
}

// latestSort ordena por la última modificación conocida.
var latestSort = bson.D{{Key: "updatedAt", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// LatestMark toma el documento más reciente; con la colección vacía, ahora.
func (s *ChangeSourceMongo) LatestMark(ctx context.Context, collection string) (time.Time, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{}, options.FindOne().SetSort(latestSort)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Now(), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if ts := documentTimestamp(doc); !ts.IsZero() {
		return ts, nil
	}
	return time.Now(), nil
}

// PollSince busca lo creado o modificado después de mark, en orden ascendente.
func (s *ChangeSourceMongo) PollSince(ctx context.Context, collection string, mark time.Time) ([]domain.RawChange, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"updatedAt": bson.M{"$gt": mark}},
		bson.M{"createdAt": bson.M{"$gt": mark}},
		bson.M{"_id": bson.M{"$gt": objectIDCeil(mark)}},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(pollLimit)

	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var changes []domain.RawChange
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		changes = append(changes, domain.RawChange{
			Collection: collection,
			Operation:  pollOperation(doc),
			DocumentID: idString(doc["_id"]),
			Document:   toDocument(doc),
			Timestamp:  documentTimestamp(doc),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

func (s *ChangeSourceMongo) RecentDocuments(ctx context.Context, collection string, limit int) ([]domain.Document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []domain.Document
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, toDocument(doc))
	}
	return docs, cursor.Err()
}

func (s *ChangeSourceMongo) LatestDocument(ctx context.Context, collection string) (domain.Document, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{}, options.FindOne().SetSort(latestSort)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDocument(doc), nil
}

func (s *ChangeSourceMongo) InsertResult(ctx context.Context, collection string, doc domain.Document) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, bson.M(doc))
	return err
}

// Close libera la conexión del cliente.
func (s *ChangeSourceMongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// documentTimestamp es el mayor de updatedAt, createdAt y la hora del
// ObjectID. Los tres entran en el filtro de PollSince, así que la marca
// tiene que superar a todos para que un documento no vuelva a coincidir
// (ej. un createdAt importado con fecha antigua y un _id nuevo).
func documentTimestamp(doc bson.M) time.Time {
	var latest time.Time
	for _, key := range []string{"updatedAt", "createdAt"} {
		if ts, ok := asTime(doc[key]); ok && ts.After(latest) {
			latest = ts
		}
	}
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		if ts := oid.Timestamp(); ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// pollOperation: un documento con updatedAt posterior a createdAt es un update.
func pollOperation(doc bson.M) string {
	updated, hasUpdated := asTime(doc["updatedAt"])
	created, hasCreated := asTime(doc["createdAt"])
	if hasUpdated && (!hasCreated || updated.After(created)) {
		return domain.OpUpdate
	}
	return domain.OpInsert
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	default:
		return time.Time{}, false
	}
}

// objectIDCeil es el mayor ObjectID posible del segundo de t: $gt sobre él
// sólo acepta documentos creados en segundos posteriores.
func objectIDCeil(t time.Time) primitive.ObjectID {
	var id primitive.ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	for i := 4; i < len(id); i++ {
		id[i] = 0xff
	}
	return id
}

func idString(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// toDocument pasa de BSON a tipos planos serializables a JSON.
func toDocument(doc bson.M) domain.Document {
	if doc == nil {
		return nil
	}
	out := make(domain.Document, len(doc))
	for k, v := range doc {
		out[k] = plain(v)
	}
	return out
}

func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.M:
		return map[string]interface{}(toDocument(bson.M(t)))
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	default:
		return v
	}
}
