package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/logger"
)

// Collection is the subset of *mongo.Collection used by Source.
type Collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
}

// stateDocument is the stored form of a feature state.
type stateDocument struct {
	Name       string            `bson:"_id"`
	Enabled    bool              `bson:"enabled"`
	StrategyID string            `bson:"strategy,omitempty"`
	Parameters map[string]string `bson:"parameters,omitempty"`
	UpdatedAt  time.Time         `bson:"updated_at"`
}

func toDocument(s *feature.State, now time.Time) stateDocument {
	params := s.Parameters()
	if len(params) == 0 {
		params = nil
	}
	return stateDocument{
		Name:       s.Feature().Name(),
		Enabled:    s.Enabled(),
		StrategyID: s.StrategyID(),
		Parameters: params,
		UpdatedAt:  now.UTC(),
	}
}

func (d stateDocument) state() *feature.State {
	s := feature.NewState(feature.Feature(d.Name)).
		SetEnabled(d.Enabled).
		SetStrategyID(d.StrategyID)
	for name, value := range d.Parameters {
		s.SetParameter(name, value)
	}
	return s
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for the updated_at field.
func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

// Source stores one document per feature, keyed by the feature name:
//
//	{_id: "NEW_CHECKOUT", enabled: true, strategy: "gradual",
//	 parameters: {percentage: "25"}, updated_at: ISODate(...)}
//
// Writes replace the whole document, which MongoDB applies atomically.
type Source struct {
	coll   Collection
	logger *slog.Logger
	now    func() time.Time
}

// NewSource creates a feature source on coll.
// Panics if coll is nil.
func NewSource(coll Collection, opts ...SourceOption) *Source {
	if coll == nil {
		panic("mongo: collection cannot be nil")
	}

	s := &Source{
		coll:   coll,
		logger: logger.Noop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSourceFromConfig connects with cfg and returns a source on cfg.Collection
// together with the client, which the caller must disconnect.
func NewSourceFromConfig(ctx context.Context, cfg Config, opts ...SourceOption) (*Source, *mongo.Client, error) {
	client, err := New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	return NewSource(coll, opts...), client, nil
}

// Read returns the stored state of f, or nil if there is none.
func (s *Source) Read(ctx context.Context, f feature.Feature) (*feature.State, error) {
	var doc stateDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: f.Name()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, feature.Unavailable("mongo find", err)
	}
	return doc.state(), nil
}

// Write replaces the stored state of st.Feature(), inserting it if needed.
func (s *Source) Write(ctx context.Context, st *feature.State) error {
	if err := feature.ValidateState(st); err != nil {
		return err
	}

	doc := toDocument(st, s.now())
	_, err := s.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: doc.Name}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return feature.Unavailable("mongo replace", err)
	}

	s.logger.DebugContext(ctx, "feature state stored",
		logger.Feature(doc.Name),
		logger.Backend("mongo"),
	)
	return nil
}

// Delete removes the stored state of f.
func (s *Source) Delete(ctx context.Context, f feature.Feature) error {
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: f.Name()}}); err != nil {
		return feature.Unavailable("mongo delete", err)
	}
	return nil
}

// Features lists stored features sorted by name.
func (s *Source) Features(ctx context.Context) ([]feature.Feature, error) {
	cursor, err := s.coll.Find(ctx, bson.D{},
		options.Find().
			SetProjection(bson.D{{Key: "_id", Value: 1}}).
			SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, feature.Unavailable("mongo find", err)
	}

	var docs []struct {
		Name string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, feature.Unavailable("mongo cursor", err)
	}

	features := make([]feature.Feature, 0, len(docs))
	for _, d := range docs {
		features = append(features, feature.Feature(d.Name))
	}
	return features, nil
}
