/*
Package probe provides a small open-addressed hash table mapping strings to
integer counts.

Collisions are resolved with linear probing and keys are placed with a
deterministic Horner's-rule polynomial hash, so the same keys inserted in the
same order always land in the same slots. The table grows by doubling whenever
half of its slots are occupied. Lookups for absent keys return a configurable
default value instead of failing.

Entries can be inserted and updated but never removed, and the table cannot be
iterated. The Table interface exposes exactly that surface.
*/
package probe
