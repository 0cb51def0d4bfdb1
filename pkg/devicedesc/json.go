package devicedesc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrParse indicates serialized input that is not a flat object of string
// fields. It is always wrapped with decoder context.
var ErrParse = errors.New("malformed device description")

// serializedForm is the wire representation of a Description. The external
// names differ from the struct fields for the interface and class fields;
// this mapping is the canonical one for every producer and consumer of the
// encoding. Absent fields are omitted so a round trip preserves absence.
type serializedForm struct {
	InterfaceName string `json:"interface,omitempty"`
	DeviceClass   string `json:"type,omitempty"`
	Manufacturer  string `json:"manufacturer,omitempty"`
	Product       string `json:"product,omitempty"`
	Serial        string `json:"serial,omitempty"`
	Version       string `json:"version,omitempty"`
	Capabilities  string `json:"capabilities,omitempty"`
}

// MarshalJSON implements json.Marshaler using the canonical field mapping.
func (d Description) MarshalJSON() ([]byte, error) {
	return json.Marshal(serializedForm(d))
}

// UnmarshalJSON implements json.Unmarshaler using the canonical field mapping.
func (d *Description) UnmarshalJSON(data []byte) error {
	var form serializedForm
	if err := json.Unmarshal(data, &form); err != nil {
		return err
	}

	*d = Description(form)

	return nil
}

// MarshalDescription encodes the description as its canonical JSON form.
func MarshalDescription(d *Description) ([]byte, error) {
	if d == nil {
		d = &Description{}
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal device description: %w", err)
	}

	return data, nil
}

// UnmarshalDescription decodes the canonical JSON form back into a
// Description. Malformed input yields an error wrapping ErrParse.
func UnmarshalDescription(data []byte) (*Description, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return &d, nil
}
