// Package value defines the element model shared by every query, request and
// source in Pinq.
//
// Elements are plain Go values (any). This package contains the rules that
// give them meaning:
//   - Normalize maps Go numeric kinds onto int64 and float64
//   - Canonical and Key define equality (used by Unique, Contains and the set
//     operations)
//   - Compare defines the total order (used by OrderBy, Maximum, Minimum and
//     comparison predicates)
//   - Sum, ToFloat and Format back the numeric and string requests
//
// The total order mirrors SQLite storage classes (NULL < numeric < TEXT <
// BLOB, with bool slotted before numbers) so a SQL source answering a request
// directly returns what an in-memory evaluation would.
//
// value imports nothing internal. All other internal packages import it.
package value
