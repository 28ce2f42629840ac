// Package transports imports the built-in engines for auto-registration.
// Import this package to have them registered with the default registry.
package transports

import (
	// Import engines for side-effect registration.
	_ "github.com/drblury/opflow/transport/http"
)
