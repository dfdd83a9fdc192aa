// Package kvstore provides boltdb-backed buckets usable as query sources.
//
// Each bucket holds an ordered sequence of elements. Keys are the bucket's
// sequence numbers encoded with rsc.io/ordered, so cursor order is append
// order. Values are encoded with msgpack.
//
// A Bucket answers Count, Exists, First and Last directly (bucket stats and
// cursor positions) for queries without operations. Everything else is
// declined and answered by materialization.
package kvstore
