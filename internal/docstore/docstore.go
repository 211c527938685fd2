// Package docstore abstrai o banco de documentos hierárquico usado pela API.
//
// Documentos são endereçados por caminhos alternando coleção e id
// ("users/{uid}/templates/{id}"). Os adaptadores (Firestore, Postgres, Mongo
// e memstore) garantem consistência de leitura após escrita por documento e
// commit atômico de lotes.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound é retornado quando o documento não existe.
	ErrNotFound = errors.New("documento não encontrado")
	// ErrInvalidPath indica caminho com número de segmentos incompatível.
	ErrInvalidPath = errors.New("caminho de documento inválido")
	// ErrBatchTooLarge indica lote acima de MaxBatchWrites.
	ErrBatchTooLarge = errors.New("lote excede o limite de escritas")
)

// MaxBatchWrites é o limite de escritas de um commit atômico no Firestore,
// aplicado igualmente por todos os adaptadores.
const MaxBatchWrites = 500

// DefaultPageSize limita páginas de listagem usadas em varreduras.
const DefaultPageSize = 100

// Document é um documento lido do armazenamento.
type Document struct {
	ID   string
	Path string
	Data map[string]any
}

// Filter é um filtro de igualdade sobre um campo de primeiro nível.
type Filter struct {
	Field string
	Value any
}

// Eq cria filtro de igualdade.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Store é o contrato consumido pelos serviços de domínio.
type Store interface {
	// Get lê um documento; ErrNotFound se ausente.
	Get(ctx context.Context, path string) (*Document, error)
	// Set cria ou sobrescreve um documento.
	Set(ctx context.Context, path string, data map[string]any) error
	// Update mescla campos de primeiro nível; ErrNotFound se ausente.
	Update(ctx context.Context, path string, data map[string]any) error
	// Add cria um documento com id gerado na coleção informada.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Delete remove um documento. Remover documento ausente não é erro.
	Delete(ctx context.Context, path string) error
	// Query lista documentos da coleção que satisfazem todos os filtros,
	// em ordem de criação.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// ListDocumentPaths devolve até limit caminhos de documentos da coleção
	// (limit <= 0 lista todos), incluindo documentos que existem apenas como
	// pais de subcoleções.
	ListDocumentPaths(ctx context.Context, collection string, limit int) ([]string, error)
	// Collections devolve os caminhos das subcoleções de um documento.
	Collections(ctx context.Context, docPath string) ([]string, error)
	// Commit aplica o lote de forma atômica.
	Commit(ctx context.Context, batch *Batch) error
	Ping(ctx context.Context) error
	Close() error
}

// WriteOp identifica o tipo de escrita em lote.
type WriteOp int

const (
	OpSet WriteOp = iota
	OpDelete
	// OpUpdate mescla campos; o commit falha inteiro se o documento não
	// existir.
	OpUpdate
)

// Write é uma escrita pendente de um lote.
type Write struct {
	Op   WriteOp
	Path string
	Data map[string]any
}

// Batch acumula escritas aplicadas em conjunto por Store.Commit.
type Batch struct {
	writes []Write
}

// NewBatch cria lote vazio.
func NewBatch() *Batch { return &Batch{} }

func (b *Batch) Set(path string, data map[string]any) *Batch {
	b.writes = append(b.writes, Write{Op: OpSet, Path: path, Data: data})
	return b
}

func (b *Batch) Update(path string, data map[string]any) *Batch {
	b.writes = append(b.writes, Write{Op: OpUpdate, Path: path, Data: data})
	return b
}

func (b *Batch) Delete(path string) *Batch {
	b.writes = append(b.writes, Write{Op: OpDelete, Path: path})
	return b
}

func (b *Batch) Writes() []Write { return b.writes }

func (b *Batch) Len() int { return len(b.writes) }

type serverTimestamp struct{}

// ServerTimestamp é substituído pelo horário do servidor ao gravar.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp informa se v é o marcador de horário do servidor.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveTimestamps devolve uma cópia rasa de data com os marcadores
// substituídos por now.
func ResolveTimestamps(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if IsServerTimestamp(v) {
			out[k] = now.UTC()
			continue
		}
		out[k] = v
	}
	return out
}

// Join monta um caminho a partir de segmentos.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func segments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// IsDocumentPath informa se o caminho aponta para um documento.
func IsDocumentPath(path string) bool {
	segs := segments(path)
	if len(segs)%2 != 0 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

// IsCollectionPath informa se o caminho aponta para uma coleção.
func IsCollectionPath(path string) bool {
	segs := segments(path)
	if len(segs)%2 != 1 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

// Split separa caminho de documento em coleção e id.
func Split(docPath string) (collection, id string, err error) {
	if !IsDocumentPath(docPath) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, docPath)
	}
	trimmed := strings.Trim(docPath, "/")
	idx := strings.LastIndex(trimmed, "/")
	return trimmed[:idx], trimmed[idx+1:], nil
}

// ParentDocument devolve o documento dono da coleção, ou "" para coleções
// de raiz.
func ParentDocument(collection string) string {
	trimmed := strings.Trim(collection, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	return trimmed[:idx]
}
