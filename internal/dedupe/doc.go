// Package dedupe provides a time-bounded seen-set used to drop duplicate
// deliveries of the same transport event before they reach the relay engine.
package dedupe
