package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/identity"
)

// PurgeReport resume uma remoção de tenant.
type PurgeReport struct {
	Documents        int      `json:"documents"`
	ChildIdentities  int      `json:"childIdentities"`
	FailedIdentities []string `json:"failedIdentities,omitempty"`
}

// Purger remove tenants inteiros. A remoção não é transacional: uma falha
// no meio da varredura deixa o tenant parcialmente removido e pode ser
// retomada chamando PurgeTenant de novo enquanto o documento do usuário
// existir.
type Purger struct {
	store    docstore.Store
	provider identity.Provider
	pageSize int
}

func NewPurger(store docstore.Store, provider identity.Provider) *Purger {
	return &Purger{store: store, provider: provider, pageSize: docstore.DefaultPageSize}
}

// PurgeTenant apaga o documento do usuário principal, todos os
// descendentes, as identidades dos usuários filhos (melhor esforço) e por
// último a identidade principal.
func (p *Purger) PurgeTenant(ctx context.Context, mainUID string) (*PurgeReport, error) {
	logger := log.With().Str("mainUserId", mainUID).Logger()

	if _, err := p.store.Get(ctx, UserPath(mainUID)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
			return nil, apperr.NotFound("Usuário não encontrado")
		}
		return nil, apperr.Internal("Erro ao consultar usuário", err)
	}

	children, err := p.store.ListDocumentPaths(ctx, ChildUsers(mainUID), 0)
	if err != nil {
		return nil, apperr.Internal("Erro ao listar usuários filhos", err)
	}

	report := &PurgeReport{}
	deleted, err := p.DeleteTree(ctx, UserPath(mainUID))
	report.Documents = deleted
	if err != nil {
		logger.Error().Err(err).Int("documents", deleted).Msg("remoção de tenant interrompida")
		return nil, apperr.Internal("Erro ao remover dados do usuário", err)
	}

	for _, childPath := range children {
		_, childUID, _ := docstore.Split(childPath)
		if err := p.provider.DeleteUser(ctx, childUID); err != nil && !errors.Is(err, identity.ErrUserNotFound) {
			logger.Warn().Err(err).Str("childUid", childUID).Msg("falha ao remover identidade de usuário filho")
			report.FailedIdentities = append(report.FailedIdentities, childUID)
			continue
		}
		report.ChildIdentities++
	}

	if err := p.provider.DeleteUser(ctx, mainUID); err != nil {
		if !errors.Is(err, identity.ErrUserNotFound) {
			logger.Error().Err(err).Msg("falha ao remover identidade principal")
			return nil, apperr.Internal("Erro ao remover identidade do usuário", err)
		}
		logger.Warn().Msg("identidade principal já inexistente")
	}

	logger.Info().Int("documents", report.Documents).Int("childIdentities", report.ChildIdentities).
		Int("failedIdentities", len(report.FailedIdentities)).Msg("tenant removido")
	return report, nil
}

type frameKind int

const (
	expandDoc frameKind = iota
	drainCollection
	deleteDoc
)

type frame struct {
	kind frameKind
	path string
}

// DeleteTree remove o documento e todas as subcoleções abaixo dele em
// profundidade, usando uma pilha explícita. Cada coleção é consumida em
// páginas de pageSize documentos; um documento só é apagado depois das
// suas subcoleções.
func (p *Purger) DeleteTree(ctx context.Context, docPath string) (int, error) {
	deleted := 0
	stack := []frame{{kind: expandDoc, path: docPath}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch f.kind {
		case expandDoc:
			colls, err := p.store.Collections(ctx, f.path)
			if err != nil {
				return deleted, fmt.Errorf("subcoleções de %s: %w", f.path, err)
			}
			stack = append(stack, frame{kind: deleteDoc, path: f.path})
			for _, c := range colls {
				stack = append(stack, frame{kind: drainCollection, path: c})
			}

		case drainCollection:
			page, err := p.store.ListDocumentPaths(ctx, f.path, p.pageSize)
			if err != nil {
				return deleted, fmt.Errorf("listar %s: %w", f.path, err)
			}
			if len(page) == 0 {
				continue
			}
			// revisita a coleção depois que esta página for apagada
			stack = append(stack, frame{kind: drainCollection, path: f.path})
			for _, doc := range page {
				stack = append(stack, frame{kind: expandDoc, path: doc})
			}

		case deleteDoc:
			if err := p.store.Delete(ctx, f.path); err != nil {
				return deleted, fmt.Errorf("apagar %s: %w", f.path, err)
			}
			deleted++
		}
	}
	return deleted, nil
}

// CollectionCount é a quantidade de documentos de uma coleção.
type CollectionCount struct {
	Path      string `json:"path"`
	Documents int    `json:"documents"`
}

// Inventory percorre a árvore abaixo do documento sem alterar nada.
func (p *Purger) Inventory(ctx context.Context, docPath string) ([]CollectionCount, error) {
	var out []CollectionCount
	stack := []string{docPath}

	for len(stack) > 0 {
		doc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		colls, err := p.store.Collections(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("subcoleções de %s: %w", doc, err)
		}
		for _, c := range colls {
			docs, err := p.store.ListDocumentPaths(ctx, c, 0)
			if err != nil {
				return nil, fmt.Errorf("listar %s: %w", c, err)
			}
			out = append(out, CollectionCount{Path: c, Documents: len(docs)})
			stack = append(stack, docs...)
		}
	}
	return out, nil
}
