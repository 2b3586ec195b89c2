package contacts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mvasconc/phonelink/internal/store"
)

// Resolver maps phone addresses to display names. Implementations return
// the address itself when no name is known.
type Resolver interface {
	Resolve(address string) string
}

// StoreResolver resolves names from the archived contacts table, caching
// lookups for the process lifetime. Contact churn is rare enough that a
// restart-scoped cache is acceptable.
type StoreResolver struct {
	db *store.DB

	mu    sync.Mutex
	names map[string]string
}

func NewStoreResolver(db *store.DB) *StoreResolver {
	return &StoreResolver{
		db:    db,
		names: make(map[string]string),
	}
}

func (r *StoreResolver) Resolve(address string) string {
	if address == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.names[address]; ok {
		return name
	}
	name := address
	if c, err := r.db.GetContact(address); err == nil && c != nil && c.Name != "" {
		name = c.Name
	}
	r.names[address] = name
	return name
}

// MapResolver is a fixed in-memory resolver, used in tests and as the
// fallback when no archive is available.
type MapResolver map[string]string

func (m MapResolver) Resolve(address string) string {
	if name, ok := m[address]; ok {
		return name
	}
	return address
}

// DisplayName formats a conversation title from its addresses: a single
// resolved name for one-to-one threads, a joined list capped at three
// names for group threads.
func DisplayName(r Resolver, addresses []string) string {
	switch len(addresses) {
	case 0:
		return "Unknown"
	case 1:
		return r.Resolve(addresses[0])
	}
	names := make([]string, 0, 3)
	for _, a := range addresses {
		if len(names) == 3 {
			return fmt.Sprintf("%s +%d others", strings.Join(names, ", "), len(addresses)-3)
		}
		names = append(names, r.Resolve(a))
	}
	return strings.Join(names, ", ")
}
