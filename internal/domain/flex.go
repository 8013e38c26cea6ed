package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ============================================================
// Tipos tolerantes ao JSON heterogêneo do backend
// ============================================================
//
// O backend do provedor mistura números e strings no mesmo campo
// ("id": 12 em um endpoint, "id": "12" em outro; "valor": "89,90").
// Esses tipos absorvem as variações na borda para que o resto do
// código trabalhe com valores estáveis.

// FlexString accepts a JSON string, number, bool or null and keeps its text.
// Numbers keep their literal form, so 12 and "12" compare equal.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*f = ""
		return nil
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) String() string { return string(f) }

// Amount is a monetary value decoded from a number or a "89,90"/"89.90" string.
// Unparseable input decodes to zero.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw FlexString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = Amount(ParseAmount(string(raw)))
	return nil
}

// ParseAmount reads a decimal written either in pt-BR ("1.234,56") or plain ("1234.56") form.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if s == "" {
		return 0
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
