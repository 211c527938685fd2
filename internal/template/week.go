package template

// Marcador gravado junto com weekStart/weekEnd. Documentos sem o campo são
// tratados como base 0; documentos com weekBase 1 vieram da convenção
// antiga (segunda = 1) e são convertidos na leitura.
const (
	fieldWeekBase = "weekBase"
	weekBaseZero  = 0
	weekBaseOne   = 1
)

// normalizeWeekday converte um dia gravado na base informada para a base 0.
func normalizeWeekday(v, base int) int {
	if base != weekBaseOne {
		return ((v % 7) + 7) % 7
	}
	return (((v - 1) % 7) + 7) % 7
}

func weekBaseOf(data map[string]any) int {
	switch v := data[fieldWeekBase].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return weekBaseZero
	}
}
