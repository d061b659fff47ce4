// Package database implements the datakit store: connection management,
// the entity model and schema preparation, durable record ids, and working
// contexts that cache records, stage changes and save them atomically.
package database
