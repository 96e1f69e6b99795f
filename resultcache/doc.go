// Package resultcache stores encoded dispatch results for the caching
// behavior. MemoryStore serves a single process; RedisStore shares
// results between processes.
package resultcache
