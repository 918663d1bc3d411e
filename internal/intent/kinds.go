package intent

import (
	"encoding/json"
	"fmt"
)

// ParamKind identifies the typed extraction strategy for a parameter.
type ParamKind int

const (
	KindString ParamKind = iota
	KindNumber
	KindBoolean
	KindDate
	KindEmail
	KindPhone
)

var kindNames = map[ParamKind]string{
	KindString:  "string",
	KindNumber:  "number",
	KindBoolean: "boolean",
	KindDate:    "date",
	KindEmail:   "email",
	KindPhone:   "phone",
}

var kindValues = map[string]ParamKind{
	"string":  KindString,
	"number":  KindNumber,
	"boolean": KindBoolean,
	"date":    KindDate,
	"email":   KindEmail,
	"phone":   KindPhone,
}

func (k ParamKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ParamKind(%d)", int(k))
}

// MarshalJSON encodes the kind as its config name.
func (k ParamKind) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("intent: unknown parameter kind %d", int(k))
	}
	return json.Marshal(name)
}

// UnmarshalJSON rejects unknown kinds at load time rather than falling
// through at runtime.
func (k *ParamKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("intent: parameter kind must be a string: %w", err)
	}
	kind, ok := kindValues[name]
	if !ok {
		return fmt.Errorf("intent: unknown parameter kind %q", name)
	}
	*k = kind
	return nil
}
