// Package mongo 将会话凭据保存在 MongoDB 的 settings 集合中。
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/errors"
)

// Config MongoDB 配置
type Config struct {
	URI         string        `json:"uri" mapstructure:"uri" default:"mongodb://127.0.0.1:27017"`
	Database    string        `json:"database" mapstructure:"database" default:"cardiac"`
	Collection  string        `json:"collection" mapstructure:"collection" default:"settings"`
	Namespace   string        `json:"namespace" mapstructure:"namespace" default:"default"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout" default:"5s"`
	MaxPoolSize uint64        `json:"max_pool_size" mapstructure:"max_pool_size" default:"4"`
}

type setting struct {
	Namespace string    `bson:"namespace"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	cfg    Config
}

// New 连接 MongoDB 并确保 (namespace, key) 唯一索引存在
func New(ctx context.Context, cfg Config) (*Mongo, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, 503, "connect mongo")
	}
	m := &Mongo{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		cfg:    cfg,
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = m.Close()
		return nil, errors.Wrap(err, 503, "ping mongo")
	}

	_, err = m.coll.Indexes().CreateOne(pctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "namespace", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = m.Close()
		return nil, errors.Wrap(err, 500, "create settings index")
	}
	return m, nil
}

func (m *Mongo) filter(key string) bson.D {
	return bson.D{{Key: "namespace", Value: m.cfg.Namespace}, {Key: "key", Value: key}}
}

func (m *Mongo) Get(ctx context.Context, key string) (string, error) {
	var s setting
	err := m.coll.FindOne(ctx, m.filter(key)).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", errors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, 503, "find setting")
	}
	return s.Value, nil
}

func (m *Mongo) Set(ctx context.Context, key, value string) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "value", Value: value},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	_, err := m.coll.UpdateOne(ctx, m.filter(key), update, options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, 503, "upsert setting")
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	if _, err := m.coll.DeleteOne(ctx, m.filter(key)); err != nil {
		return errors.Wrap(err, 503, "delete setting")
	}
	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
