// Package wattwatch is a client and sync daemon for the Wattwatchers energy
// monitoring API.
//
// # Architecture
//
// The module is structured into several key packages:
//   - api: Paced, retrying HTTP transport with rate-limit accounting
//   - ratelimit: Parsing of the API's per-second and per-day quota headers
//   - window: Splitting of long ranges into endpoint-sized query windows
//   - client: Typed API operations (devices, short/long energy, modbus)
//   - device: Lazily loaded device objects with batched edits
//   - models: Wire types, enums and signal classification
//   - database: TimescaleDB storage for synced readings
//   - scheduler: Cron-driven long-energy sync
//   - grpc: Bucketed queries over the stored readings
//
// Key Features
//
//   - Windowed Queries:
//     Ranges longer than an endpoint allows are split into windows that are
//     fetched in order (or with bounded concurrency) and concatenated.
//
//   - Throttling:
//     429 responses are retried after the advertised reset while the daily
//     quota lasts.
//
//   - Device Edits:
//     Setters record pending changes without fetching; Commit sends one
//     partial update containing only what changed.
//
// Example Usage
//
//	c, err := client.New(cfg.API)
//	series, err := c.LongEnergy(ctx, "D123", start, end, client.LongEnergyOptions{
//	    Granularity: models.GranularityHourly,
//	})
//
// For more information about specific packages, see their respective
// documentation.
package wattwatch
