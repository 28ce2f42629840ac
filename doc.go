// Package opflow runs modeled service operations over HTTP. A Client holds
// what every call shares (configuration, transport engine, auth, endpoint
// resolution, retry quota, metrics and monitoring) and Invoke runs one typed
// Operation through a five-step middleware stack: Initialize, Serialize,
// Build, Finalize and Deserialize.
//
// A minimal setup fills Config, creates a Client with NewClient and calls
// Invoke with an Operation describing the method, the URL path and the body
// codec. Errors come back classified (serialization, transport, auth,
// service, throttling or cancellation) so callers can branch with Classify,
// IsRetryable and IsThrottling.
//
// # Transports
//
// Engines are registered by name and selected through Config.TransportEngine:
//   - http: net/http client with proxy and per-attempt timeout support
//   - inprocess: serves requests with an http.Handler, for tests and local development
//
// # Middleware
//
// The standard stack handles idempotency tokens, URL paths, serialization,
// auth scheme selection, endpoint resolution, flexible checksums, retries
// with a token bucket quota, signing and error mapping. The default
// registrations add OpenTelemetry tracing, Prometheus metrics, monitoring
// events on a Watermill publisher, invocation id headers, the User-Agent and
// response logging. Custom middleware can be added via
// ClientDependencies.Middlewares, or per operation with Operation.Customize.
//
// # Call Hooks
//
// HooksMiddleware provides OnAttemptStart, OnAttemptDone and OnAttemptError
// callbacks around every transmitted attempt.
//
// # Waiters
//
// NewWaiter polls an operation until an acceptor reports success or failure,
// spacing attempts with the same backoff as retries.
package opflow
