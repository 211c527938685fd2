package docstore

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Decode converte os dados de um documento na struct apontada por out,
// usando as tags json dos campos. Horários gravados como texto RFC 3339
// (Postgres) são convertidos para time.Time.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timePointerHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}

var timeType = reflect.TypeOf(time.Time{})

// timePointerHook aceita *time.Time vindo de adaptadores que devolvem
// ponteiros.
func timePointerHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	if t, ok := data.(*time.Time); ok && t != nil {
		return *t, nil
	}
	return data, nil
}
