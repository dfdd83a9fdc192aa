// Package store provides SQLite-backed tables usable as query sources.
//
// A Table enumerates its rows in insertion (rowid) order and implements the
// evaluator's direct-evaluation hooks by compiling portable queries to SQL
// (see internal/querysql). Anything that cannot be compiled is declined and
// answered by materialization instead.
//
// # Storage Model
//
//   - Columns are declared without a type, so values keep their SQLite
//     storage class: NULL, INTEGER, REAL, TEXT or BLOB.
//   - Text is NFC-normalized on insert so SQL comparison agrees with
//     in-memory equality.
//   - Booleans are stored as INTEGER 0/1 and read back as integers.
//   - Nested values (lists, objects) are rejected.
//   - Table names are recorded in the pinq_tables catalog.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
