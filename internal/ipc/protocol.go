// Package ipc provides communication between the imeswitchd daemon and
// the imeswitchctl client over a local socket.
//
// The protocol is one JSON object per line in each direction: the client
// writes a Request, the daemon answers with a Response. Connections are
// short-lived; a client may issue several requests on one connection but
// nothing is streamed.
package ipc

import "encoding/json"

// Operations.
const (
	OpStatus   = "status"    // report switching state and active source
	OpList     = "list"      // list installed selectable sources
	OpRefresh  = "refresh"   // re-enumerate installed sources
	OpSetLatin = "set-latin" // change the configured Latin source
	OpSetLast  = "set-last"  // override the remembered non-Latin source
	OpTap      = "tap"       // enable or disable the tap gesture
)

// Request is one client command.
type Request struct {
	Op string `json:"op"`

	// ID is the source id for set-latin and set-last.
	ID string `json:"id,omitempty"`

	// Enabled is the flag for tap.
	Enabled *bool `json:"enabled,omitempty"`
}

// Response is the daemon's answer.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	// Status is set for the status op.
	Status json.RawMessage `json:"status,omitempty"`

	// Sources is set for the list op.
	Sources []SourceInfo `json:"sources,omitempty"`
}

// SourceInfo describes one installed input source.
type SourceInfo struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	CJKV        bool     `json:"cjkv"`
	Active      bool     `json:"active,omitempty"`
}

func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}
