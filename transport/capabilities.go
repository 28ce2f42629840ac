package transport

// Capabilities describes the features supported by an engine.
type Capabilities struct {
	// Name is the human-readable name of the engine.
	Name string

	// SupportsStreaming indicates stream bodies are sent without buffering.
	SupportsStreaming bool

	// SupportsProxy indicates ProxyURL is honoured.
	SupportsProxy bool

	// SupportsTimeout indicates RequestTimeout is honoured.
	SupportsTimeout bool

	// UsesNetwork is false for engines that dispatch in process.
	UsesNetwork bool
}

// RequiresBufferedBody returns true if stream bodies must be read into
// memory before they are sent.
func (c Capabilities) RequiresBufferedBody() bool {
	return !c.SupportsStreaming
}

// Predefined capability sets for the built-in engines.
var (
	HTTPCapabilities = Capabilities{
		Name:              "http",
		SupportsStreaming: true,
		SupportsProxy:     true,
		SupportsTimeout:   true,
		UsesNetwork:       true,
	}

	InProcessCapabilities = Capabilities{
		Name:              "inprocess",
		SupportsStreaming: false,
		SupportsProxy:     false,
		SupportsTimeout:   true,
		UsesNetwork:       false,
	}
)
