package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pawbyte/accounts/internal/config"
)

// Mongo implements Primary on top of a pooled MongoDB client. Each
// operation checks a connection out of the driver's pool for its own
// context and returns it on every exit path, so a handle never outlives
// the call that acquired it.
type Mongo struct {
	client *mongo.Client
	db     string
}

// NewMongo creates a new MongoDB-backed primary store from the given
// config. It connects and pings to verify connectivity before returning.
func NewMongo(cfg config.MongoConfig) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	// Verify the connection is alive before returning.
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &Mongo{client: client, db: cfg.Database}, nil
}

// Close releases the client's connection pool.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Insert adds a document and returns the generated object id as a hex string.
func (m *Mongo) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	res, err := m.coll(collection).InsertOne(ctx, bson.M(doc))
	if err != nil {
		return "", fmt.Errorf("inserting into %s: %w", collection, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("inserting into %s: unexpected id type %T", collection, res.InsertedID)
	}
	return oid.Hex(), nil
}

// Find returns all documents matching the filter, with "_id" rendered back
// to its hex string form.
func (m *Mongo) Find(ctx context.Context, collection string, filter Document, projection []string) ([]Document, error) {
	opts := options.Find()
	if projection != nil {
		fields := bson.M{}
		for _, f := range projection {
			fields[f] = 1
		}
		opts.SetProjection(fields)
	}

	cursor, err := m.coll(collection).Find(ctx, toMongoFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding %s document: %w", collection, err)
		}
		docs = append(docs, fromMongoDoc(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s cursor: %w", collection, err)
	}

	return docs, nil
}

// Update sets the given fields on the first matching document.
func (m *Mongo) Update(ctx context.Context, collection string, filter, set Document) (int64, error) {
	res, err := m.coll(collection).UpdateOne(ctx, toMongoFilter(filter), bson.M{"$set": bson.M(set)})
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", collection, err)
	}
	return res.ModifiedCount, nil
}

// Delete removes the first matching document.
func (m *Mongo) Delete(ctx context.Context, collection string, filter Document) (int64, error) {
	res, err := m.coll(collection).DeleteOne(ctx, toMongoFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

func (m *Mongo) coll(name string) *mongo.Collection {
	return m.client.Database(m.db).Collection(name)
}

// toMongoFilter converts a field-equality Document into a bson filter,
// mapping a hex "_id" string to a real ObjectID so lookups by the ids we
// hand out actually match.
func toMongoFilter(filter Document) bson.M {
	out := bson.M{}
	for k, v := range filter {
		if k == "_id" {
			if hex, ok := v.(string); ok {
				if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
					out[k] = oid
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}

// fromMongoDoc converts a decoded bson document back into a Document,
// rendering the ObjectID as the hex string callers expect.
func fromMongoDoc(raw bson.M) Document {
	doc := Document{}
	for k, v := range raw {
		if oid, ok := v.(primitive.ObjectID); ok {
			doc[k] = oid.Hex()
			continue
		}
		doc[k] = v
	}
	return doc
}
