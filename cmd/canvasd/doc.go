// Package main hosts the canvas service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the canvas read/create/update routes, POST /api/space/save,
//     health checks, and /metrics. Bodies are validated at the boundary; every /api response is wrapped in
//     the {success, data, error, timestamp} envelope.
//   - Save pipeline: internal/space fetches page metadata through the Colly fetcher (optionally re-rendered
//     with chromedp when the heuristic detector flags an unrendered SPA), downloads the preview image and
//     icon into the configured blob store, and appends a url node to the first canvas in one transaction.
//   - Persistence: the canvas table lives in SQLite by default, or Postgres/memory. Images go to a local
//     uploads directory (served at /uploads), GCS, or memory.
//   - Events: successful saves are optionally published to Pub/Sub or an in-memory recorder.
//
// Quick checklist:
//   - Configure env vars: CANVAS_SERVER_PORT, CANVAS_STORE_DRIVER, CANVAS_STORE_SQLITE_PATH or
//     CANVAS_STORE_DSN, CANVAS_UPLOADS_DIR, CANVAS_FETCH_TIMEOUT, CANVAS_HEADLESS_ENABLED, CANVAS_EVENTS_*.
//   - Run locally: go run ./cmd/canvasd -config config.yaml (or rely solely on env overrides).
//   - The process drains in-flight requests and closes the store on SIGINT/SIGTERM.
package main
