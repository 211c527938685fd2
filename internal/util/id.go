package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID gera um identificador de documento sem hífens, seguro para uso como
// segmento de caminho.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
