// Package members maintains the canonical registry of Oireachtas members and
// resolves free-form speaker names against it.
package members

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/namematch"
)

// SuggestFloor is the minimum similarity for a name to be offered as a
// suggestion when resolution fails.
const SuggestFloor = 0.55

// Registry holds the canonical member list. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	list   []domain.Member
	byNorm map[string]int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byNorm: make(map[string]int)}
}

// Default creates a registry seeded with the bundled member list.
func Default() *Registry {
	r := New()
	for _, m := range defaultMembers {
		r.Add(m)
	}
	return r
}

// Add inserts or replaces a member, keyed by normalized name.
func (r *Registry) Add(m domain.Member) {
	key := namematch.Normalize(m.Name)
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byNorm[key]; ok {
		r.list[i] = m
		return
	}
	r.byNorm[key] = len(r.list)
	r.list = append(r.list, m)
}

// LoadFile merges members from path into the registry. JSON files hold an
// array of member records; anything else is read as one name per line, the
// speakers.txt export format.
func (r *Registry) LoadFile(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("members: read %s: %w", path, err)
		}
		var ms []domain.Member
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("members: parse %s: %w", path, err)
		}
		for _, m := range ms {
			r.Add(m)
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("members: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		r.Add(domain.Member{Name: name})
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("members: scan %s: %w", path, err)
	}
	return nil
}

// Len reports how many members are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.list)
}

// All returns the members sorted by name.
func (r *Registry) All() []domain.Member {
	r.mu.RLock()
	out := make([]domain.Member, len(r.list))
	copy(out, r.list)
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a member by exact normalized name.
func (r *Registry) Lookup(name string) (domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.byNorm[namematch.Normalize(name)]; ok {
		return r.list[i], true
	}
	return domain.Member{}, false
}

func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.list))
	for i, m := range r.list {
		out[i] = m.Name
	}
	return out
}

// Resolve matches a free-form speaker name against the registry and returns
// the canonical member with its match score. Names scoring below
// namematch.DefaultThreshold resolve to domain.ErrUnknownSpeaker.
func (r *Registry) Resolve(name string) (domain.Member, float64, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Member{}, 0, domain.ErrEmptySpeaker
	}
	best, ok := namematch.Best(name, r.names(), namematch.DefaultThreshold)
	if !ok {
		return domain.Member{}, 0, fmt.Errorf("members: resolve %q: %w", name, domain.ErrUnknownSpeaker)
	}
	m, _ := r.Lookup(best.Name)
	return m, best.Score, nil
}

// Suggest returns up to n member names ranked by similarity to name, for
// "did you mean" responses. Matches below SuggestFloor are dropped.
func (r *Registry) Suggest(name string, n int) []string {
	var out []string
	for _, m := range namematch.Rank(name, r.names(), n) {
		if m.Score < SuggestFloor {
			continue
		}
		out = append(out, m.Name)
	}
	return out
}
