// Package platform describes what the host device can do for notification
// delivery and defines the narrow interfaces the pipeline drives.
//
// Capabilities are detected once at startup and injected into the delivery
// adapters and the push manager; nothing in the pipeline probes the platform
// lazily. A Headless platform reports every capability as unavailable, which
// makes all device-level channels no-ops while in-app toasts keep working.
//
// Permission follows the tri-state model of most notification APIs:
// PermissionDefault means the user has not decided yet.
package platform
