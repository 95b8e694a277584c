package config

import (
	"sync"
	"sync/atomic"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

// AdminPrefix is the runtime-mutable mount point of the maintenance console.
// Reads happen on every admin request and never take a lock; writes are rare
// and serialized.
type AdminPrefix struct {
	value   atomic.Value
	writeMu sync.Mutex
}

func NewAdminPrefix(initial string) (*AdminPrefix, error) {
	p := &AdminPrefix{}
	if err := p.Set(initial); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AdminPrefix) Get() string {
	return p.value.Load().(string)
}

// Set validates and swaps the prefix. The old prefix stops matching the
// moment this returns.
func (p *AdminPrefix) Set(prefix string) error {
	if err := ValidateAdminPrefix(prefix); err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.value.Store(prefix)
	return nil
}

// ValidateAdminPrefix accepts only alphanumerics, underscores and hyphens,
// so the prefix can be spliced into a URL path without escaping.
func ValidateAdminPrefix(prefix string) error {
	if prefix == "" {
		return domain.InvalidInput("admin prefix must not be empty")
	}
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return domain.InvalidInput("admin prefix may contain only letters, digits, underscores and hyphens")
		}
	}
	return nil
}
