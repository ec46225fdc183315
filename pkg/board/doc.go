// Package board defines the corkboard data model and the pure transforms
// over it. A Board is an immutable snapshot of window records organised into
// ordered columns; every operation returns a new snapshot and never mutates
// its input. The package has no dependencies on storage or replication -
// those layers consume snapshots produced here.
//
// Display order is derived, not stored: records carry a (column id, order)
// pair and columns carry their own order, so renderers sort on those. The
// transforms guarantee that after any operation completes, no two records in
// the same column share an order value.
package board
