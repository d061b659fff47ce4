// Package repository provides typed and untyped repositories over a
// datakit working context: CRUD, filtered and paged queries, truncate and
// autocommit or explicit commit semantics for one entity kind.
package repository
