package api

import (
	"github.com/carverauto/devicematch/pkg/devicedesc"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// MatchRequest carries the two descriptions of a match query: the template's
// declared pattern and the concrete device's description.
type MatchRequest struct {
	Pattern   *devicedesc.Description `json:"pattern"`
	Candidate *devicedesc.Description `json:"candidate"`
}

// MatchResponse reports the outcome of a match query.
type MatchResponse struct {
	Matched bool `json:"matched"`
}

// RegisterTemplateRequest is the body for template registration.
type RegisterTemplateRequest struct {
	Name    string                  `json:"name"`
	Pattern *devicedesc.Description `json:"pattern"`
	Source  string                  `json:"source,omitempty"`
}

// AddDeviceRequest is the body for reporting a device to the inventory.
type AddDeviceRequest struct {
	Description *devicedesc.Description `json:"description"`
}

// DeviceTemplatesResponse lists the template names matching a stored device.
type DeviceTemplatesResponse struct {
	DeviceID  string   `json:"device_id"`
	Templates []string `json:"templates"`
}
