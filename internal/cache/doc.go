// Package cache provides the client layer's process-local TTL cache.
//
// Entries live in memory only and are keyed by a canonical request
// signature built with Key. An entry is absent once its TTL has elapsed;
// expired entries are dropped lazily on read and by a periodic sweep.
//
//	c := cache.New[[]Product](cache.Config{Name: "products", DefaultTTL: 5 * time.Minute})
//	defer c.Close()
//
//	c.Set(ctx, cache.Key(url, params), products, 0)
//	products, ok := c.Get(ctx, cache.Key(url, params))
//
// All operations are safe for concurrent use.
package cache
