// Package contentservice implements the notes and posts services on top of
// a store and a read-through cache.
//
// # Overview
//
// One generic Service is instantiated per content kind. Reads go through the
// cache; writes go to the store and then invalidate:
//
//	reads   FindAll, FindAllDeleted, FindOne
//	writes  Create, Update, Delete, Restore, IncrementViews
//
// # Cache Keys
//
//	{plural}:{skip}:{take}:{order}:{search}          live listing
//	{plural}:deleted:{skip}:{take}:{order}:{search}  deleted listing
//	{singular}:{id}                                  single record
//
// Every write deletes all keys matching {plural}:* and, except Create, the
// record key. View increments invalidate listings too since the popular
// order depends on views.
//
// # Lifecycle
//
// A record is live until Delete sets its deletion time and live again after
// Restore. Reads and writes other than Restore and FindAllDeleted report
// deleted records as not found.
//
// # Consistency
//
// A read that misses can write back a value loaded before a concurrent
// invalidation. Such entries live for at most one TTL. Concurrent updates
// and deletes of one record are not serialised; the store keeps the last
// write.
package contentservice
