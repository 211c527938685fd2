package op

import (
	"context"

	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/tenant"
)

// Repository acessa users/{main}/ops.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Get(ctx context.Context, mainUID, id string) (*Op, error) {
	doc, err := tenant.ValidateOwned(ctx, r.store, tenant.Ref{
		Path:     tenant.OpPath(mainUID, id),
		NotFound: "Operação não encontrada",
	}, mainUID)
	if err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

func (r *Repository) ListByTemplate(ctx context.Context, mainUID, templateID string) ([]Op, error) {
	docs, err := r.store.Query(ctx, tenant.Ops(mainUID),
		docstore.Eq(tenant.FieldMainUserID, mainUID),
		docstore.Eq("templateId", templateID),
	)
	if err != nil {
		return nil, err
	}
	out := make([]Op, 0, len(docs))
	for i := range docs {
		o, err := fromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, mainUID string, fields map[string]any) (string, error) {
	fields[tenant.FieldMainUserID] = mainUID
	return r.store.Add(ctx, tenant.Ops(mainUID), fields)
}

func (r *Repository) Update(ctx context.Context, mainUID, id string, fields map[string]any) error {
	fields["updatedAt"] = docstore.ServerTimestamp
	return r.store.Update(ctx, tenant.OpPath(mainUID, id), fields)
}

func (r *Repository) Delete(ctx context.Context, mainUID, id string) error {
	return r.store.Delete(ctx, tenant.OpPath(mainUID, id))
}

func fromDocument(doc *docstore.Document) (*Op, error) {
	var o Op
	if err := docstore.Decode(doc.Data, &o); err != nil {
		return nil, err
	}
	o.ID = doc.ID
	return &o, nil
}
