// Package central coordinates the BLE central role on top of a platform BLE provider.
//
// The package covers the thin layer between the operating system's BLE stack and
// application code:
//   - Adapter acquisition behind one Manager/Adapter interface (first adapter wins)
//   - Scan start/stop with idempotent stop
//   - A relay that turns platform callbacks into ordered queue entries without blocking
//   - A consumer loop that dispatches queued events to application handlers
//   - A Session tying the above together with graceful shutdown
//
// Platform specifics live in the bluez and goble sub-packages.
package central
