// Package types holds the value-level building blocks shared by the store
// and repository layers: fetch requests, predicates, sort terms, attribute
// kinds, enums and the error taxonomy.
package types
