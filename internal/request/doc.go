// Package request defines terminal requests and the dispatch protocol.
//
// A Request is an immutable tagged variant describing one result-producing
// step (count, first, sum, ...). Constructing a Request never runs user code.
// A Dispatcher has one method per variant; Dispatch routes a Request to
// exactly the method that matches it.
//
// Sealed Interface Pattern:
//
// Request uses a marker method to restrict implementations to this package,
// so a type switch over the variants is exhaustive:
//
//	switch r := req.(type) {
//	case request.Count:
//	    // ...
//	case request.Sum:
//	    // ...
//	}
package request
