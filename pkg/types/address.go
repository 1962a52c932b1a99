package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ShippingAddress uses the Chilean region/provincia/comuna hierarchy. The
// administrative fields are only lookup keys for shipping rates.
type ShippingAddress struct {
	Recipient string `json:"destinatario,omitempty"`
	Street    string `json:"direccion,omitempty"`
	Region    string `json:"region"`
	Provincia string `json:"provincia,omitempty"`
	Comuna    string `json:"comuna,omitempty"`
	Phone     string `json:"telefono,omitempty"`
}

// IsResolved reports whether enough of the address is known to quote shipping.
func (a *ShippingAddress) IsResolved() bool {
	return a != nil && strings.TrimSpace(a.Region) != ""
}

// Value serializes the address to JSON.
func (a *ShippingAddress) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan decodes a JSON column into the address.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", value)
	}
}
