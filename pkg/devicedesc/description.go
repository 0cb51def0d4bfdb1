// Package devicedesc defines the device description record and the pattern
// matching semantics used to pair control templates with concrete devices.
package devicedesc

import "strings"

// Description captures the identity a backend reports for an input device.
// Every field is optional: the empty string means the field is absent, and
// callers must treat "unset" and "set to empty" as the same state. Values are
// never mutated after construction, so a Description may be shared freely
// across goroutines.
type Description struct {
	InterfaceName string
	DeviceClass   string
	Manufacturer  string
	Product       string
	Serial        string
	Version       string
	Capabilities  string
}

// IsEmpty reports whether no field carries a value.
func (d *Description) IsEmpty() bool {
	if d == nil {
		return true
	}

	return d.InterfaceName == "" &&
		d.DeviceClass == "" &&
		d.Manufacturer == "" &&
		d.Product == "" &&
		d.Serial == "" &&
		d.Version == "" &&
		d.Capabilities == ""
}

// DisplayName produces a best-effort human-readable identifier. Manufacturer
// and product together win, then product alone, then the device class. A
// manufacturer without a product is never surfaced on its own.
func (d *Description) DisplayName() string {
	if d == nil {
		return ""
	}

	switch {
	case d.Manufacturer != "" && d.Product != "":
		return d.Manufacturer + " " + d.Product
	case d.Product != "":
		return d.Product
	case d.DeviceClass != "":
		return d.DeviceClass
	default:
		return ""
	}
}

// Clone creates a defensive copy of the Description.
func (d *Description) Clone() *Description {
	if d == nil {
		return nil
	}

	clone := *d

	return &clone
}

// Equal reports whether two Descriptions carry the same field values.
func Equal(a, b *Description) bool {
	if a == nil {
		a = &Description{}
	}

	if b == nil {
		b = &Description{}
	}

	return *a == *b
}

// String implements fmt.Stringer for log output. It favors DisplayName and
// falls back to whichever identifying fields are present.
func (d *Description) String() string {
	if name := d.DisplayName(); name != "" {
		return name
	}

	if d == nil {
		return ""
	}

	parts := make([]string, 0, 2)
	if d.InterfaceName != "" {
		parts = append(parts, d.InterfaceName)
	}

	if d.Serial != "" {
		parts = append(parts, d.Serial)
	}

	return strings.Join(parts, " ")
}
