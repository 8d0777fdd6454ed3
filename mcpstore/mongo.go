package mcpstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore is the per-tenant, database-mode Store, grounded on the
// collection-handle + context-scoped-call idiom of
// features/runlog/mongo/clients/mongo/client.go (collection wrapped behind
// a narrow interface rather than the full driver type, so it can be faked
// in tests without a live server).
type MongoStore struct {
	coll    collection
	timeout time.Duration
}

const (
	defaultCollection = "mcp_servers"
	defaultTimeout    = 5 * time.Second
)

// recordDocument is the Mongo-persisted shape of a Record, scoped to one
// tenant via UserID.
type recordDocument struct {
	UserID          string            `bson:"user_id"`
	Name            string            `bson:"name"`
	Preset          string            `bson:"preset,omitempty"`
	DisplayName     string            `bson:"display_name"`
	Description     string            `bson:"description,omitempty"`
	Command         string            `bson:"command"`
	Args            []string          `bson:"args,omitempty"`
	Env             map[string]string `bson:"env,omitempty"`
	Enabled         bool              `bson:"enabled"`
	Connected       bool              `bson:"connected"`
	ToolsCount      int               `bson:"tools_count"`
	LastConnectedAt time.Time         `bson:"last_connected_at,omitempty"`
}

type connectionLogDocument struct {
	UserID    string    `bson:"user_id"`
	Name      string    `bson:"name"`
	Success   bool      `bson:"success"`
	Message   string    `bson:"message,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

// NewMongoStore constructs a MongoStore over the given database/collection
// names, creating the (user_id, name) uniqueness index if absent.
func NewMongoStore(ctx context.Context, client *mongodriver.Client, database, collectionName string, timeout time.Duration) (*MongoStore, error) {
	if client == nil {
		return nil, fmt.Errorf("mongo client is required")
	}
	if database == "" {
		return nil, fmt.Errorf("database name is required")
	}
	if collectionName == "" {
		collectionName = defaultCollection
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	coll := client.Database(database).Collection(collectionName)
	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(idxCtx, index); err != nil {
		return nil, fmt.Errorf("ensure mcp server index: %w", err)
	}

	return &MongoStore{coll: mongoCollection{coll: coll}, timeout: timeout}, nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func toDocument(userID string, r Record) recordDocument {
	return recordDocument{
		UserID: userID, Name: r.Name, Preset: r.Preset, DisplayName: r.DisplayName,
		Description: r.Description, Command: r.Command, Args: r.Args, Env: r.Env,
		Enabled: r.Enabled, Connected: r.Connected, ToolsCount: r.ToolsCount,
		LastConnectedAt: r.LastConnectedAt,
	}
}

func fromDocument(d recordDocument) Record {
	return Record{
		Name: d.Name, Preset: d.Preset, DisplayName: d.DisplayName, Description: d.Description,
		Command: d.Command, Args: d.Args, Env: d.Env, Enabled: d.Enabled,
		Connected: d.Connected, ToolsCount: d.ToolsCount, LastConnectedAt: d.LastConnectedAt,
	}
}

func (s *MongoStore) Create(ctx context.Context, userID string, rec Record) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, toDocument(userID, rec))
	return err
}

func (s *MongoStore) Get(ctx context.Context, userID, name string) (Record, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID, "name": name}, options.Find().SetLimit(1))
	if err != nil {
		return Record{}, false, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return Record{}, false, cur.Err()
	}
	var doc recordDocument
	if err := cur.Decode(&doc); err != nil {
		return Record{}, false, err
	}
	return fromDocument(doc), true, nil
}

func (s *MongoStore) List(ctx context.Context, userID string) ([]Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID}, options.Find())
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Record
	for cur.Next(ctx) {
		var doc recordDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		doc.Connected = false // always reload disconnected, per the original
		out = append(out, fromDocument(doc))
	}
	return out, cur.Err()
}

func (s *MongoStore) Update(ctx context.Context, userID string, rec Record) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"user_id": userID, "name": rec.Name}, toDocument(userID, rec),
		options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Delete(ctx context.Context, userID, name string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"user_id": userID, "name": name})
	return err
}

func (s *MongoStore) GetCredentials(ctx context.Context, userID, name string) (map[string]string, error) {
	rec, ok, err := s.Get(ctx, userID, name)
	if err != nil || !ok {
		return nil, err
	}
	return rec.Env, nil
}

func (s *MongoStore) RecordLastConnected(ctx context.Context, userID, name string, at time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "name": name},
		bson.M{"$set": bson.M{"last_connected_at": at, "connected": true}})
	return err
}

func (s *MongoStore) LogConnectionAttempt(ctx context.Context, userID string, attempt ConnectionAttempt) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, connectionLogDocument{
		UserID: userID, Name: attempt.Name, Success: attempt.Success,
		Message: attempt.Message, Timestamp: attempt.Timestamp,
	})
	return err
}

// collection narrows the driver's *mongo.Collection to the operations this
// store needs, so tests can substitute a fake without a live server.
type collection interface {
	InsertOne(ctx context.Context, document any) (*mongodriver.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error)
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...*options.ReplaceOptions) (*mongodriver.UpdateResult, error)
	UpdateOne(ctx context.Context, filter, update any) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel) (string, error)
}

type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) InsertOne(ctx context.Context, document any) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, document)
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c mongoCollection) ReplaceOne(ctx context.Context, filter, replacement any, opts ...*options.ReplaceOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.ReplaceOne(ctx, filter, replacement, opts...)
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter, update any) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update)
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel) (string, error) {
	return v.view.CreateOne(ctx, model)
}
