package docstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore implementa Store sobre o Cloud Firestore.
type Firestore struct {
	client *firestore.Client
}

var _ Store = (*Firestore)(nil)

// NewFirestore abre o cliente do projeto informado. credentialsFile vazio
// usa as credenciais padrão do ambiente.
func NewFirestore(ctx context.Context, projectID, credentialsFile string) (*Firestore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: %w", err)
	}
	return &Firestore{client: client}, nil
}

// NewFirestoreFromClient reaproveita um cliente já criado.
func NewFirestoreFromClient(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) Get(ctx context.Context, path string) (*Document, error) {
	if !IsDocumentPath(path) {
		return nil, ErrInvalidPath
	}
	snap, err := f.client.Doc(path).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromSnapshot(path, snap), nil
}

func (f *Firestore) Set(ctx context.Context, path string, data map[string]any) error {
	if !IsDocumentPath(path) {
		return ErrInvalidPath
	}
	_, err := f.client.Doc(path).Set(ctx, withFirestoreTimestamps(data))
	return err
}

func (f *Firestore) Update(ctx context.Context, path string, data map[string]any) error {
	if !IsDocumentPath(path) {
		return ErrInvalidPath
	}
	if len(data) == 0 {
		return nil
	}
	_, err := f.client.Doc(path).Update(ctx, firestoreUpdates(data))
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (f *Firestore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if !IsCollectionPath(collection) {
		return "", ErrInvalidPath
	}
	ref, _, err := f.client.Collection(collection).Add(ctx, withFirestoreTimestamps(data))
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (f *Firestore) Delete(ctx context.Context, path string) error {
	if !IsDocumentPath(path) {
		return ErrInvalidPath
	}
	_, err := f.client.Doc(path).Delete(ctx)
	return err
}

func (f *Firestore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if !IsCollectionPath(collection) {
		return nil, ErrInvalidPath
	}
	q := f.client.Collection(collection).Query
	for _, flt := range filters {
		q = q.Where(flt.Field, "==", flt.Value)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	sortByCreateTime(snaps)
	out := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, *fromSnapshot(Join(collection, snap.Ref.ID), snap))
	}
	return out, nil
}

// ListDocumentPaths usa DocumentRefs para incluir documentos ausentes que
// ainda possuem subcoleções.
func (f *Firestore) ListDocumentPaths(ctx context.Context, collection string, limit int) ([]string, error) {
	if !IsCollectionPath(collection) {
		return nil, ErrInvalidPath
	}
	it := f.client.Collection(collection).DocumentRefs(ctx)
	var out []string
	for limit <= 0 || len(out) < limit {
		ref, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Join(collection, ref.ID))
	}
	return out, nil
}

func (f *Firestore) Collections(ctx context.Context, docPath string) ([]string, error) {
	if !IsDocumentPath(docPath) {
		return nil, ErrInvalidPath
	}
	it := f.client.Doc(docPath).Collections(ctx)
	var out []string
	for {
		coll, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Join(docPath, coll.ID))
	}
	return out, nil
}

// Commit usa uma transação para que o lote seja tudo ou nada.
func (f *Firestore) Commit(ctx context.Context, batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	if batch.Len() > MaxBatchWrites {
		return ErrBatchTooLarge
	}
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, w := range batch.Writes() {
			if !IsDocumentPath(w.Path) {
				return ErrInvalidPath
			}
			ref := f.client.Doc(w.Path)
			var err error
			switch w.Op {
			case OpDelete:
				err = tx.Delete(ref)
			case OpSet:
				err = tx.Set(ref, withFirestoreTimestamps(w.Data))
			case OpUpdate:
				err = tx.Update(ref, firestoreUpdates(w.Data))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (f *Firestore) Ping(ctx context.Context) error {
	_, err := f.client.Collection("users").Limit(1).Documents(ctx).GetAll()
	return err
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func fromSnapshot(path string, snap *firestore.DocumentSnapshot) *Document {
	return &Document{ID: snap.Ref.ID, Path: path, Data: snap.Data()}
}

// sortByCreateTime coloca os documentos em ordem de criação. O Firestore
// devolve em ordem de id; CreateTime existe em todo documento e não exige
// índice composto como um OrderBy sobre createdAt.
func sortByCreateTime(snaps []*firestore.DocumentSnapshot) {
	slices.SortStableFunc(snaps, func(a, b *firestore.DocumentSnapshot) int {
		return a.CreateTime.Compare(b.CreateTime)
	})
}

func firestoreUpdates(data map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range withFirestoreTimestamps(data) {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	return updates
}

func withFirestoreTimestamps(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if IsServerTimestamp(v) {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}
