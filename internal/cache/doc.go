// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package cache holds the client-side projection of server state: streams keyed
by id and recordings keyed by filename.

The cache has one logical writer, the reconcile package, which mutates it
through Update or UpdateAt; everything else reads copies through Stream,
Streams and Recordings. Each entity reflects the most recently applied
observation; timestamps are recorded but never used to order writes.

# Generations

Reset clears the cache and advances its generation. Long-running work (an
API fetch started before a logout, for example) captures Generation() when it
starts and applies its result with UpdateAt, which refuses stale generations:

	gen := c.Generation()
	list, err := client.ListStreams(ctx, filter)
	...
	c.UpdateAt(gen, func(tx *cache.Tx) { ... })
*/
package cache
