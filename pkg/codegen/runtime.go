package codegen

import _ "embed"

//go:embed runtime/esmlink.js
var runtimeSource []byte

// DefaultRuntimeID is the module id the linkage runtime is registered under.
const DefaultRuntimeID = "esmlink.runtime"

// RuntimeSource returns the linkage runtime unit. Every generated unit
// obtains it once per host global through System.getModule.
func RuntimeSource() []byte {
	out := make([]byte, len(runtimeSource))
	copy(out, runtimeSource)

	return out
}
