package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/planejafacil/api/internal/util"
)

// Mongo implementa Store em uma coleção única "documents", com _id igual
// ao caminho do documento. Commit exige replica set (transações).
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var _ Store = (*Mongo)(nil)

type mongoDocument struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	Parent     string    `bson:"parent"`
	DocID      string    `bson:"docId"`
	Data       bson.M    `bson:"data"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// NewMongo conecta ao servidor e prepara os índices.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	coll := client.Database(database).Collection("documents")
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "parent", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo índices: %w", err)
	}
	return &Mongo{client: client, coll: coll, now: time.Now}, nil
}

func (m *Mongo) Get(ctx context.Context, path string) (*Document, error) {
	if !IsDocumentPath(path) {
		return nil, ErrInvalidPath
	}
	var raw mongoDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw.document(), nil
}

func (m *Mongo) Set(ctx context.Context, path string, data map[string]any) error {
	return m.set(ctx, path, data)
}

func (m *Mongo) set(ctx context.Context, path string, data map[string]any) error {
	coll, id, err := Split(path)
	if err != nil {
		return err
	}
	now := m.now().UTC()
	_, err = m.coll.UpdateOne(ctx, bson.M{"_id": path}, bson.M{
		"$set": bson.M{
			"collection": coll,
			"parent":     ParentDocument(coll),
			"docId":      id,
			"data":       ResolveTimestamps(data, now),
			"updatedAt":  now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}, options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) Update(ctx context.Context, path string, data map[string]any) error {
	if !IsDocumentPath(path) {
		return ErrInvalidPath
	}
	return m.merge(ctx, path, data)
}

func (m *Mongo) merge(ctx context.Context, path string, data map[string]any) error {
	now := m.now().UTC()
	set := bson.M{"updatedAt": now}
	for k, v := range ResolveTimestamps(data, now) {
		set["data."+k] = v
	}
	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": path}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if !IsCollectionPath(collection) {
		return "", ErrInvalidPath
	}
	id := util.NewID()
	if err := m.set(ctx, Join(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Mongo) Delete(ctx context.Context, path string) error {
	if !IsDocumentPath(path) {
		return ErrInvalidPath
	}
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": path})
	return err
}

func (m *Mongo) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if !IsCollectionPath(collection) {
		return nil, ErrInvalidPath
	}
	filter := bson.M{"collection": collection}
	for _, f := range filters {
		filter["data."+f.Field] = f.Value
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var raws []mongoDocument
	if err := cur.All(ctx, &raws); err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(raws))
	for i := range raws {
		out = append(out, *raws[i].document())
	}
	return out, nil
}

// ListDocumentPaths deriva os ids a partir do prefixo dos caminhos, para
// incluir pais sem dados próprios.
func (m *Mongo) ListDocumentPaths(ctx context.Context, collection string, limit int) ([]string, error) {
	if !IsCollectionPath(collection) {
		return nil, ErrInvalidPath
	}
	prefix := collection + "/"
	filter := bson.M{"_id": prefixPattern(prefix)}
	cur, err := m.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	seen := make(map[string]struct{})
	var out []string
	for (limit <= 0 || len(out) < limit) && cur.Next(ctx) {
		var row struct {
			Path string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		id, _, _ := strings.Cut(strings.TrimPrefix(row.Path, prefix), "/")
		docPath := prefix + id
		if _, ok := seen[docPath]; ok {
			continue
		}
		seen[docPath] = struct{}{}
		out = append(out, docPath)
	}
	return out, cur.Err()
}

func (m *Mongo) Collections(ctx context.Context, docPath string) ([]string, error) {
	if !IsDocumentPath(docPath) {
		return nil, ErrInvalidPath
	}
	prefix := docPath + "/"
	values, err := m.coll.Distinct(ctx, "collection",
		bson.M{"collection": prefixPattern(prefix)})
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, v := range values {
		coll, ok := v.(string)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(coll, prefix), "/")
		set[prefix+name] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Mongo) Commit(ctx context.Context, batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	if batch.Len() > MaxBatchWrites {
		return ErrBatchTooLarge
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, w := range batch.Writes() {
			if !IsDocumentPath(w.Path) {
				return nil, ErrInvalidPath
			}
			switch w.Op {
			case OpDelete:
				if _, err := m.coll.DeleteOne(sc, bson.M{"_id": w.Path}); err != nil {
					return nil, err
				}
			case OpSet:
				if err := m.set(sc, w.Path, w.Data); err != nil {
					return nil, err
				}
			case OpUpdate:
				if err := m.merge(sc, w.Path, w.Data); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return err
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (d *mongoDocument) document() *Document {
	data, _ := normalizeBSON(d.Data).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return &Document{ID: d.DocID, Path: d.Path, Data: data}
}

// normalizeBSON converte tipos primitivos do driver nos tipos Go usados
// pelos demais adaptadores.
func normalizeBSON(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeBSON(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeBSON(item)
		}
		return out
	case primitive.DateTime:
		return val.Time().UTC()
	case int32:
		return int64(val)
	default:
		return v
	}
}

// prefixPattern casa valores que começam literalmente com prefix.
func prefixPattern(prefix string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}
}
