package block

import (
	"context"

	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/tenant"
)

// Repository acessa users/{main}/blocks e a subcoleção phases de cada bloco.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) GetBlock(ctx context.Context, mainUID, id string) (*Block, error) {
	doc, err := tenant.ValidateOwned(ctx, r.store, tenant.Ref{
		Path:     tenant.BlockPath(mainUID, id),
		NotFound: "Bloco não encontrado",
	}, mainUID)
	if err != nil {
		return nil, err
	}
	return blockFromDocument(doc)
}

func (r *Repository) ListBlocks(ctx context.Context, mainUID, templateID string) ([]Block, error) {
	docs, err := r.store.Query(ctx, tenant.Blocks(mainUID),
		docstore.Eq(tenant.FieldMainUserID, mainUID),
		docstore.Eq("templateId", templateID),
	)
	if err != nil {
		return nil, err
	}
	out := make([]Block, 0, len(docs))
	for i := range docs {
		b, err := blockFromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *Repository) CreateBlock(ctx context.Context, mainUID string, fields map[string]any) (string, error) {
	fields[tenant.FieldMainUserID] = mainUID
	fields["createdAt"] = docstore.ServerTimestamp
	return r.store.Add(ctx, tenant.Blocks(mainUID), fields)
}

func (r *Repository) UpdateBlock(ctx context.Context, mainUID, id string, fields map[string]any) error {
	fields["updatedAt"] = docstore.ServerTimestamp
	return r.store.Update(ctx, tenant.BlockPath(mainUID, id), fields)
}

// MoveBlock grava os campos do bloco e replica o novo templateId em todas
// as fases no mesmo commit.
func (r *Repository) MoveBlock(ctx context.Context, mainUID, id, templateID string, fields map[string]any) (int, error) {
	phases, err := r.store.Query(ctx, tenant.Phases(mainUID, id))
	if err != nil {
		return 0, err
	}
	fields["templateId"] = templateID
	fields["updatedAt"] = docstore.ServerTimestamp
	batch := docstore.NewBatch().Update(tenant.BlockPath(mainUID, id), fields)
	for _, p := range phases {
		batch.Update(p.Path, map[string]any{"templateId": templateID, "updatedAt": docstore.ServerTimestamp})
	}
	if err := r.store.Commit(ctx, batch); err != nil {
		return 0, err
	}
	return len(phases), nil
}

func (r *Repository) CountPhases(ctx context.Context, mainUID, blockID string) (int, error) {
	docs, err := r.store.Query(ctx, tenant.Phases(mainUID, blockID))
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// DeleteBlock remove o bloco e todas as suas fases num único commit.
func (r *Repository) DeleteBlock(ctx context.Context, mainUID, id string) (int, error) {
	phases, err := r.store.Query(ctx, tenant.Phases(mainUID, id))
	if err != nil {
		return 0, err
	}
	batch := docstore.NewBatch()
	for _, p := range phases {
		batch.Delete(p.Path)
	}
	batch.Delete(tenant.BlockPath(mainUID, id))
	if err := r.store.Commit(ctx, batch); err != nil {
		return 0, err
	}
	return len(phases), nil
}

func (r *Repository) GetPhase(ctx context.Context, mainUID, blockID, id string) (*Phase, error) {
	doc, err := tenant.ValidateOwned(ctx, r.store, tenant.Ref{
		Path:     tenant.PhasePath(mainUID, blockID, id),
		NotFound: "Fase não encontrada",
	}, mainUID)
	if err != nil {
		return nil, err
	}
	return phaseFromDocument(doc, blockID)
}

func (r *Repository) ListPhases(ctx context.Context, mainUID, blockID string) ([]Phase, error) {
	docs, err := r.store.Query(ctx, tenant.Phases(mainUID, blockID))
	if err != nil {
		return nil, err
	}
	out := make([]Phase, 0, len(docs))
	for i := range docs {
		p, err := phaseFromDocument(&docs[i], blockID)
		if err != nil {
			return nil, err
		}
		if p.MainUserID != "" && p.MainUserID != mainUID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *Repository) CreatePhase(ctx context.Context, mainUID, blockID string, fields map[string]any) (string, error) {
	fields[tenant.FieldMainUserID] = mainUID
	fields["blockId"] = blockID
	fields["createdAt"] = docstore.ServerTimestamp
	return r.store.Add(ctx, tenant.Phases(mainUID, blockID), fields)
}

func (r *Repository) UpdatePhase(ctx context.Context, mainUID, blockID, id string, fields map[string]any) error {
	fields["updatedAt"] = docstore.ServerTimestamp
	return r.store.Update(ctx, tenant.PhasePath(mainUID, blockID, id), fields)
}

func (r *Repository) DeletePhase(ctx context.Context, mainUID, blockID, id string) error {
	return r.store.Delete(ctx, tenant.PhasePath(mainUID, blockID, id))
}

func blockFromDocument(doc *docstore.Document) (*Block, error) {
	var b Block
	if err := docstore.Decode(doc.Data, &b); err != nil {
		return nil, err
	}
	b.ID = doc.ID
	return &b, nil
}

func phaseFromDocument(doc *docstore.Document, blockID string) (*Phase, error) {
	var p Phase
	if err := docstore.Decode(doc.Data, &p); err != nil {
		return nil, err
	}
	p.ID = doc.ID
	if p.BlockID == "" {
		p.BlockID = blockID
	}
	if p.Resources == nil {
		p.Resources = []string{}
	}
	return &p, nil
}
