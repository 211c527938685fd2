package template

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/tenant"
)

// ownerFields aceita o campo atual e o nome usado nos primeiros cadastros.
var ownerFields = []string{"userId", "user_id"}

// Repository persiste templates em users/{main}/templates.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) ref(mainUID, id string) tenant.Ref {
	return tenant.Ref{Path: tenant.TemplatePath(mainUID, id), NotFound: "Template não encontrado", OwnerFields: ownerFields}
}

// Get valida a posse e devolve o template.
func (r *Repository) Get(ctx context.Context, mainUID, id string) (*Template, error) {
	doc, err := tenant.ValidateOwned(ctx, r.store, r.ref(mainUID, id), mainUID)
	if err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

func (r *Repository) List(ctx context.Context, mainUID string) ([]Template, error) {
	docs, err := r.store.Query(ctx, tenant.Templates(mainUID))
	if err != nil {
		return nil, err
	}
	out := make([]Template, 0, len(docs))
	for i := range docs {
		tpl, err := fromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		if tpl.UserID != mainUID {
			continue
		}
		out = append(out, *tpl)
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, mainUID string, fields map[string]any) (string, error) {
	fields["userId"] = mainUID
	fields["createdAt"] = docstore.ServerTimestamp
	return r.store.Add(ctx, tenant.Templates(mainUID), fields)
}

func (r *Repository) Update(ctx context.Context, mainUID, id string, fields map[string]any) error {
	fields["updatedAt"] = docstore.ServerTimestamp
	return r.store.Update(ctx, tenant.TemplatePath(mainUID, id), fields)
}

func (r *Repository) Delete(ctx context.Context, mainUID, id string) error {
	return r.store.Delete(ctx, tenant.TemplatePath(mainUID, id))
}

// Select grava o template ativo no documento do usuário principal.
func (r *Repository) Select(ctx context.Context, mainUID, id string) error {
	return r.store.Update(ctx, tenant.UserPath(mainUID), map[string]any{
		"selectedTemplateId": id,
		"updatedAt":          docstore.ServerTimestamp,
	})
}

func fromDocument(doc *docstore.Document) (*Template, error) {
	data := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		data[k] = v
	}
	// primeiros cadastros guardavam {"holidays": {"holidays": [...]}}
	if wrapped, ok := data["holidays"].(map[string]any); ok {
		data["holidays"] = wrapped["holidays"]
	}

	var tpl Template
	if err := docstore.Decode(data, &tpl); err != nil {
		return nil, err
	}
	tpl.ID = doc.ID
	if tpl.UserID == "" {
		tpl.UserID, _ = data["user_id"].(string)
	}
	base := weekBaseOf(data)
	tpl.WeekStart = normalizeWeekday(tpl.WeekStart, base)
	tpl.WeekEnd = normalizeWeekday(tpl.WeekEnd, base)
	for i := range tpl.Holidays {
		tpl.Holidays[i].Date = normalizeDate(tpl.Holidays[i].Date)
	}
	if tpl.Holidays == nil {
		tpl.Holidays = []Holiday{}
	}
	if tpl.Shifts == nil {
		tpl.Shifts = []Shift{}
	}
	return &tpl, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// parseDate aceita os formatos usados pelos clientes e devolve 2006-01-02.
func parseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", errors.New("data inválida")
}

func normalizeDate(raw string) string {
	if d, err := parseDate(raw); err == nil {
		return d
	}
	return raw
}
