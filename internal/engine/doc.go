// Package engine implements SCD Type 2 reconciliation runs.
//
// A run compares the source relation (current truth, one row per id) against
// the active versions of the target relation (history) and converges them:
//
//  1. Applier opens one immediate transaction on the backend
//  2. Source rows are decoded; malformed rows follow the InvalidRowPolicy
//  3. Reconcile classifies every id as New, Changed or Unchanged by
//     fingerprint alone
//  4. A run stamp T is issued by the Stamper, strictly after every stamp the
//     dimension has already used
//  5. Changed versions are closed at T, replacements and new ids are
//     inserted with valid_from = T, the run is recorded in the ledger
//  6. Commit, or roll back everything on the first failure
//
// A run that finds nothing to do writes nothing, not even a ledger entry.
//
// Ids present only in the target are counted as Untracked and never written;
// deletions are not tracked.
//
// CRITICAL PATTERNS:
//
// Run stamps come from Stamper.Next, never from time.Now at the call site.
// Back-to-back runs inside one clock tick still get distinct valid_from
// values because the stamp floor is read inside the run transaction.
//
// Plans are sorted by id so logs, summaries and write order are
// reproducible.
package engine
