package avl

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when a non-positive size is requested.
const DefaultCacheSize = 256

// CoefficientCache remembers trimmed coefficients for repeated queries of
// the same aircraft at the same weight and flight condition. Safe for
// concurrent use.
type CoefficientCache struct {
	entries *lru.Cache[string, Coefficients]
}

// NewCoefficientCache creates a cache holding at most size entries.
func NewCoefficientCache(size int) (*CoefficientCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, Coefficients](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create coefficient cache: %w", err)
	}
	return &CoefficientCache{entries: c}, nil
}

func (c *CoefficientCache) get(key string) (Coefficients, bool) {
	if c == nil {
		return Coefficients{}, false
	}
	return c.entries.Get(key)
}

func (c *CoefficientCache) put(key string, v Coefficients) {
	if c == nil {
		return
	}
	c.entries.Add(key, v)
}

// Len reports the number of cached entries.
func (c *CoefficientCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func cacheKey(title string, weight, altitude, mach, cd0, cdw float64) string {
	return fmt.Sprintf("%s|%.4f|%.3f|%.6f|%.8f|%.8f", title, weight, altitude, mach, cd0, cdw)
}
