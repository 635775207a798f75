// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metercacher

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/cache"
)

var _ cache.Cacher[struct{}, struct{}] = (*Cache[struct{}, struct{}])(nil)

// Cache wraps a Cacher and reports hit/miss and fill metrics.
type Cache[K comparable, V any] struct {
	cache.Cacher[K, V]

	metrics *metrics
}

func New[K comparable, V any](
	namespace string,
	registerer prometheus.Registerer,
	cache cache.Cacher[K, V],
) (*Cache[K, V], error) {
	metrics, err := newMetrics(namespace, registerer)
	return &Cache[K, V]{
		Cacher:  cache,
		metrics: metrics,
	}, err
}

func (c *Cache[K, V]) Put(key K, value V) {
	c.Cacher.Put(key, value)
	c.metrics.len.Set(float64(c.Cacher.Len()))
	c.metrics.portionFilled.Set(c.Cacher.PortionFilled())
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	value, has := c.Cacher.Get(key)
	if has {
		c.metrics.hit.Inc()
	} else {
		c.metrics.miss.Inc()
	}
	return value, has
}

func (c *Cache[K, _]) Evict(key K) {
	c.Cacher.Evict(key)
	c.metrics.len.Set(float64(c.Cacher.Len()))
	c.metrics.portionFilled.Set(c.Cacher.PortionFilled())
}

func (c *Cache[_, _]) Flush() {
	c.Cacher.Flush()
	c.metrics.len.Set(float64(c.Cacher.Len()))
	c.metrics.portionFilled.Set(c.Cacher.PortionFilled())
}
