// Package api hosts the HTTP server, middleware, and handlers used by the
// browser extension and the canvas UI. Routes:
//   - GET /api/canvas, POST /api/canvas, PUT /api/canvas/{id} for the board.
//   - POST /api/space/save to add a web page to the board.
//   - GET /uploads/* for downloaded images when stored locally.
//   - GET /healthz, /readyz, /metrics for health checks and Prometheus.
//
// Every /api response is wrapped in an envelope: {success, data, error, timestamp}.
package api
