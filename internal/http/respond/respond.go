// Package respond concentra a escrita de respostas JSON e a leitura de
// corpos validados.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/apperr"
)

var validate = validator.New()

// maxBodyBytes limita o corpo das requisições.
const maxBodyBytes = 1 << 20

// JSON escreve o payload com o status informado.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Message escreve {"message": msg} acrescido dos campos extras.
func Message(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	body := map[string]any{"message": msg}
	for k, v := range extra {
		body[k] = v
	}
	JSON(w, status, body)
}

// Error classifica err e escreve {"detail": ...}. Falhas internas são
// registradas com a causa; o cliente recebe apenas a mensagem classificada.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	if appErr.Kind == apperr.KindInternal {
		event := log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path)
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			event = event.Str("request_id", reqID)
		}
		event.Msg("erro interno")
	}
	JSON(w, appErr.Kind.Status(), apperr.Envelope{Detail: appErr.Detail})
}

// Decode lê o corpo JSON em dst e aplica as tags validate.
func Decode(r *http.Request, dst any) error {
	return decode(r, dst, false)
}

// DecodeStrict rejeita campos não declarados em dst.
func DecodeStrict(r *http.Request, dst any) error {
	return decode(r, dst, true)
}

func decode(r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("Corpo da requisição vazio")
		}
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return apperr.BadRequest("Campo não permitido: " + strings.Trim(field, `"`))
		}
		return apperr.BadRequest("JSON inválido")
	}
	return Validate(dst)
}

// Validate aplica as tags validate de v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.BadRequest("Dados inválidos")
	}
	fe := verrs[0]
	return apperr.BadRequest(fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s é obrigatório", field)
	case "notblank":
		return fmt.Sprintf("%s não pode ser vazio", field)
	case "min":
		return fmt.Sprintf("%s deve ter no mínimo %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s deve ter no máximo %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s inválido", field)
	case "oneof":
		return fmt.Sprintf("%s deve ser um de: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s inválido", field)
	}
}

func jsonName(fe validator.FieldError) string {
	if name := fe.Field(); name != "" {
		return name
	}
	return "campo"
}

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}
