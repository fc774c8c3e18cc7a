// Package store holds the latest evaluated sensor list in memory.
//
// The store is a single slot: Put replaces it wholesale, so readers never
// observe a partial update. When ingestion fails nothing is written and the
// previous list stays visible; Stale() flags it once it is older than the
// configured threshold, without clearing it.
package store
