// Package backend provides the Treehole notification API server.

// This module contains the notification fan-out core and its HTTP surface.
// The code is organized into subpackages:

// - cmd/server: API server entry point
// - cmd/seed: development database seeder
// - cmd/notify: ops CLI for posting announcements
// - internal/notify: fan-out orchestrator, mention resolution, notification store
// - internal/directory: display-name resolution and broadcast recipient selection
// - internal/websocket: real-time delivery channel
// - internal/handlers: HTTP request handlers
// - internal/auth: authentication and token services
// - internal/models: data models and database schemas
// - internal/database: Postgres and MongoDB connections
// - internal/cache: Redis unread-badge cache
// - internal/middleware: HTTP middleware (auth, rate limiting, metrics)

// See the individual package documentation for detailed reference.
package backend
