package auth

import (
	"sync"

	"github.com/alexedwards/argon2id"
)

var params = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// Hash gera um hash Argon2id com os parâmetros embutidos.
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, params)
}

// Verify compara a senha com o hash Argon2id.
func Verify(password, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}

// VerifyMissing consome o mesmo custo de Verify quando o e-mail não existe,
// para que o login não revele contas cadastradas pelo tempo de resposta.
func VerifyMissing(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = Hash("planejafacil-dummy")
	})
	_, _ = Verify(password, dummyHash)
}
