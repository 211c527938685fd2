// Package apperr define a taxonomia fechada de erros expostos pela API.
// Toda falha que chega à borda HTTP é classificada em um Kind e serializada
// como {"detail": "..."}; a causa original fica apenas nos logs.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifica um erro de domínio.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// Status devolve o código HTTP correspondente.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error é o erro classificado. Detail é a mensagem segura para o cliente.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// Envelope é o corpo padrão das respostas 4xx/5xx.
type Envelope struct {
	Detail string `json:"detail"`
}

func Unauthorized(detail string) *Error { return &Error{Kind: KindUnauthorized, Detail: detail} }
func Forbidden(detail string) *Error    { return &Error{Kind: KindForbidden, Detail: detail} }
func NotFound(detail string) *Error     { return &Error{Kind: KindNotFound, Detail: detail} }
func BadRequest(detail string) *Error   { return &Error{Kind: KindBadRequest, Detail: detail} }

// Internal embrulha uma falha inesperada de um colaborador externo.
func Internal(detail string, err error) *Error {
	return &Error{Kind: KindInternal, Detail: detail, Err: err}
}

// As extrai o *Error da cadeia; erros não classificados viram Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Erro interno", err)
}

// KindOf retorna a classificação de err.
func KindOf(err error) Kind {
	return As(err).Kind
}

// Is informa se err pertence à classe k.
func Is(err error, k Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == k
}
