// Package device manages the registry of known RF devices.
//
// The bridge sees devices only as transmissions: a frame arrives, an
// identity is derived, and the registry decides whether that identity
// is already known, should be auto-added, or redirects to another
// device (remotes that transmit several addresses for one physical
// unit).
//
// Persistence is SQLite through the Repository interface; the Registry
// adds an in-memory cache, redirect resolution and auto-add policy on
// top. All Registry methods are safe for concurrent use.
package device
