// Package profiles implements the RF device profile registry.
//
// A profile bundles a match rule (which frames belong to this kind of
// device) with per-platform capability configurations (how to extract
// semantic values from those frames). Profiles are declared in YAML,
// loaded once at startup and immutable afterwards, so a registry can be
// shared across goroutines without locking.
//
// Matching is first-match-wins in registration order: profile sets
// contain overlapping generic rules and authors rely on earlier, more
// specific entries shadowing later ones.
package profiles
