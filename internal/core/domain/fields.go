package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type FieldName string

const (
	FieldNPWPPenjual   FieldName = "npwpPenjual"
	FieldNamaPenjual   FieldName = "namaPenjual"
	FieldNPWPPembeli   FieldName = "npwpPembeli"
	FieldNamaPembeli   FieldName = "namaPembeli"
	FieldNomorFaktur   FieldName = "nomorFaktur"
	FieldTanggalFaktur FieldName = "tanggalFaktur"
	FieldJumlahDPP     FieldName = "jumlahDpp"
	FieldJumlahPPN     FieldName = "jumlahPpn"
)

// FieldOrder is the iteration order used for reconciliation and encoding.
var FieldOrder = []FieldName{
	FieldNPWPPenjual,
	FieldNamaPenjual,
	FieldNPWPPembeli,
	FieldNamaPembeli,
	FieldNomorFaktur,
	FieldTanggalFaktur,
	FieldJumlahDPP,
	FieldJumlahPPN,
}

func IsKnownField(name FieldName) bool {
	for _, f := range FieldOrder {
		if f == name {
			return true
		}
	}
	return false
}

// Fields maps every invoice field to an optional value. A nil value means the
// field is absent, which is distinct from a present empty string.
type Fields map[FieldName]*string

// NewFields returns a value with all known fields explicitly absent.
func NewFields() Fields {
	f := make(Fields, len(FieldOrder))
	for _, name := range FieldOrder {
		f[name] = nil
	}
	return f
}

func (f Fields) Get(name FieldName) (string, bool) {
	v := f[name]
	if v == nil {
		return "", false
	}
	return *v, true
}

func (f Fields) Set(name FieldName, value string) {
	v := value
	f[name] = &v
}

func (f Fields) Clear(name FieldName) {
	f[name] = nil
}

// Clone returns a deep copy so callers cannot mutate a produced value.
func (f Fields) Clone() Fields {
	out := NewFields()
	for name, v := range f {
		if v == nil {
			out[name] = nil
			continue
		}
		out.Set(name, *v)
	}
	return out
}

// MarshalJSON writes the known fields in FieldOrder, absent ones as null.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range FieldOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(name))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f[name])
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[FieldName]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := NewFields()
	for name, v := range raw {
		if !IsKnownField(name) {
			continue
		}
		out[name] = v
	}
	*f = out
	return nil
}

// ReferenceRecord is the authoritative record an invoice is checked against.
type ReferenceRecord struct {
	Fields         Fields `json:"fields"`
	ApprovalStatus string `json:"approval_status,omitempty"`
	InvoiceStatus  string `json:"invoice_status,omitempty"`
}
