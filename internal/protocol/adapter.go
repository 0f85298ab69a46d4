// ABOUTME: Adapter contract translating one wire convention to and from
// ABOUTME: the canonical call model. Three implementations, one interface.

package protocol

import (
	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/catalog"
)

// Adapter translates one calling convention to and from canonical calls.
// Each adapter owns its own failure vocabulary: the same semantic code is
// rendered differently per convention.
type Adapter interface {
	// Name identifies the transport this adapter serves.
	Name() string

	// ParseRequest validates the wire envelope and produces a canonical
	// call. A malformed envelope yields a CodeMalformedRequest error.
	ParseRequest(raw []byte) (call.Call, *call.Error)

	// Definitions projects the shared catalogue into this convention's
	// schema dialect. Names and required/optional flags round-trip
	// across adapters; only the wire shape differs.
	Definitions(defs []catalog.Definition) any

	// Describe projects a single tool definition into the convention's
	// per-tool shape.
	Describe(def catalog.Definition) any

	// FormatResponse wraps a canonical result in the convention's
	// response envelope, echoing the correlation id where the
	// convention has one.
	FormatResponse(res call.Result, callID string) any

	// FormatError produces the convention's error envelope for gateway
	// failures that occur before a canonical call exists.
	FormatError(err *call.Error) any
}
