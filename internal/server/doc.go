// Package server provides the worker's operational HTTP surface: health and metrics.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order so the first added runs outermost, following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns internally.
//
// # Endpoints
//
//   - GET /healthz : runs every [HealthCheck] (Redis and SQLite pings in the worker) and answers 200 or 503
//   - GET /metrics : Prometheus exposition of the worker's registry
//
// This is not a client gateway; conversion requests and status reads go through Redis.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
