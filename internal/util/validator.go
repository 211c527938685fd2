package util

import (
	"errors"
	"strings"

	"github.com/planejafacil/api/internal/apperr"
)

// MinPasswordLength é o tamanho mínimo aceito pelo provedor de identidade.
const MinPasswordLength = 6

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("senha deve ter pelo menos 6 caracteres")
	}
	return nil
}

// ValidSegment informa se o valor pode ser usado como id em um caminho de
// documento.
func ValidSegment(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != "." && id != ".." && !strings.Contains(id, "/")
}

// CheckIDs rejeita com BadRequest ids vindos do corpo ou da query que não
// caibam em um único segmento de caminho. Vazios são ignorados: a
// obrigatoriedade fica com as tags validate.
func CheckIDs(ids ...string) error {
	for _, id := range ids {
		if id != "" && !ValidSegment(id) {
			return apperr.BadRequest("Identificador inválido: " + id)
		}
	}
	return nil
}
