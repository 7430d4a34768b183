// Package cache provides response caching for the fragment serving path.
//
// # Overview
//
// Viewport fragment queries are deterministic for a given decomposition, so
// identical requests can be answered from cache. The [Cache] interface has
// three backends:
//
//   - [NullCache]: caching disabled, the default
//   - [FileCache]: per-process file store for single-instance serving
//   - [RedisCache]: shared store when several serving processes answer for
//     the same decomposition
//
// Keys are built by a [Keyer] from the canonical request payload, hashed
// with SHA-256 so request parameters never leak into key strings.
// [ScopedKeyer] adds a namespace prefix when one backend serves several
// graphs.
package cache
