package tenant

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/docstore"
)

// FieldMainUserID é a chave de tenant gravada nas entidades.
const FieldMainUserID = "mainUserId"

// Ref identifica uma entidade a validar.
type Ref struct {
	Path string
	// NotFound é o detalhe devolvido quando o documento não existe.
	NotFound string
	// OwnerFields lista os campos aceitos como dono; padrão mainUserId.
	OwnerFields []string
}

// ValidateOwned busca a entidade e confirma que pertence ao tenant.
// Ausente vira NotFound; dono divergente vira Forbidden.
func ValidateOwned(ctx context.Context, store docstore.Store, ref Ref, mainUserID string) (*docstore.Document, error) {
	doc, err := store.Get(ctx, ref.Path)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
			return nil, apperr.NotFound(ref.NotFound)
		}
		return nil, apperr.Internal("Erro ao consultar "+ref.Path, err)
	}

	fields := ref.OwnerFields
	if len(fields) == 0 {
		fields = []string{FieldMainUserID}
	}
	for _, f := range fields {
		if owner, ok := doc.Data[f].(string); ok && owner != "" {
			if owner != mainUserID {
				log.Warn().Str("path", ref.Path).Str("mainUserId", mainUserID).Msg("acesso a entidade de outro tenant")
				return nil, apperr.Forbidden("Acesso negado")
			}
			return doc, nil
		}
	}
	log.Warn().Str("path", ref.Path).Msg("entidade sem dono registrado")
	return nil, apperr.Forbidden("Acesso negado")
}

// SelectedTemplate devolve o template ativo do tenant; "" se nenhum.
func SelectedTemplate(ctx context.Context, store docstore.Store, mainUID string) (string, error) {
	doc, err := store.Get(ctx, UserPath(mainUID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", apperr.NotFound("Usuário não encontrado")
		}
		return "", apperr.Internal("Erro ao consultar usuário", err)
	}
	if id, ok := doc.Data["selectedTemplateId"].(string); ok && id != "" {
		return id, nil
	}
	// documentos gravados antes da troca do nome do campo
	id, _ := doc.Data["selectedTemplate"].(string)
	return id, nil
}
