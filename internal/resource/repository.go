package resource

import (
	"context"
	"errors"

	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/tenant"
)

// Repository acessa users/{main}/resources e users/{main}/resourcesTypes.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) ref(mainUID, id string) tenant.Ref {
	return tenant.Ref{Path: tenant.ResourcePath(mainUID, id), NotFound: "Recurso não encontrado"}
}

// Get valida a posse e devolve o recurso.
func (r *Repository) Get(ctx context.Context, mainUID, id string) (*Resource, error) {
	doc, err := tenant.ValidateOwned(ctx, r.store, r.ref(mainUID, id), mainUID)
	if err != nil {
		return nil, err
	}
	return resourceFromDocument(doc)
}

// Lookup busca o recurso sem erro de ausência; usado para montar detalhes
// de fases, onde referências órfãs são toleradas.
func (r *Repository) Lookup(ctx context.Context, mainUID, id string) (*Resource, bool, error) {
	if !docstore.IsDocumentPath(tenant.ResourcePath(mainUID, id)) {
		return nil, false, nil
	}
	doc, err := r.store.Get(ctx, tenant.ResourcePath(mainUID, id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	res, err := resourceFromDocument(doc)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (r *Repository) ListByTemplate(ctx context.Context, mainUID, templateID string) ([]Resource, error) {
	docs, err := r.store.Query(ctx, tenant.Resources(mainUID),
		docstore.Eq(tenant.FieldMainUserID, mainUID),
		docstore.Eq("templateId", templateID),
	)
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(docs))
	for i := range docs {
		res, err := resourceFromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, mainUID string, fields map[string]any) (string, error) {
	fields[tenant.FieldMainUserID] = mainUID
	fields["createdAt"] = docstore.ServerTimestamp
	return r.store.Add(ctx, tenant.Resources(mainUID), fields)
}

func (r *Repository) Update(ctx context.Context, mainUID, id string, fields map[string]any) error {
	fields["updatedAt"] = docstore.ServerTimestamp
	return r.store.Update(ctx, tenant.ResourcePath(mainUID, id), fields)
}

func (r *Repository) Delete(ctx context.Context, mainUID, id string) error {
	return r.store.Delete(ctx, tenant.ResourcePath(mainUID, id))
}

// CountReferencing conta recursos que apontam para o tipo, pelo id ou pelo
// nome gravado em type.
func (r *Repository) CountReferencing(ctx context.Context, mainUID string, t *Type) (int, error) {
	byID, err := r.store.Query(ctx, tenant.Resources(mainUID), docstore.Eq("typeId", t.ID))
	if err != nil {
		return 0, err
	}
	if len(byID) > 0 {
		return len(byID), nil
	}
	byName, err := r.store.Query(ctx, tenant.Resources(mainUID), docstore.Eq("type", t.Name))
	if err != nil {
		return 0, err
	}
	return len(byName), nil
}

func (r *Repository) GetType(ctx context.Context, mainUID, id string) (*Type, error) {
	path := tenant.ResourceTypePath(mainUID, id)
	if !docstore.IsDocumentPath(path) {
		return nil, docstore.ErrNotFound
	}
	doc, err := r.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return typeFromDocument(doc)
}

func (r *Repository) ListTypes(ctx context.Context, mainUID string, filters ...docstore.Filter) ([]Type, error) {
	docs, err := r.store.Query(ctx, tenant.ResourceTypes(mainUID), filters...)
	if err != nil {
		return nil, err
	}
	out := make([]Type, 0, len(docs))
	for i := range docs {
		t, err := typeFromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *Repository) CreateType(ctx context.Context, mainUID, name string, isDefault bool) (string, error) {
	return r.store.Add(ctx, tenant.ResourceTypes(mainUID), map[string]any{
		"name":                 name,
		"isDefault":            isDefault,
		tenant.FieldMainUserID: mainUID,
		"createdAt":            docstore.ServerTimestamp,
	})
}

func (r *Repository) DeleteType(ctx context.Context, mainUID, id string) error {
	return r.store.Delete(ctx, tenant.ResourceTypePath(mainUID, id))
}

func resourceFromDocument(doc *docstore.Document) (*Resource, error) {
	var res Resource
	if err := docstore.Decode(doc.Data, &res); err != nil {
		return nil, err
	}
	res.ID = doc.ID
	return &res, nil
}

func typeFromDocument(doc *docstore.Document) (*Type, error) {
	var t Type
	if err := docstore.Decode(doc.Data, &t); err != nil {
		return nil, err
	}
	t.ID = doc.ID
	return &t, nil
}
