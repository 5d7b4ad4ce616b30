package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spigell/roommate-matcher/internal/matcherr"
	"github.com/spigell/roommate-matcher/internal/profile"
)

// Memory keeps profiles and blocks in process. It backs the CLI and tests.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]*profile.Profile
	order    []string
	banned   map[string]struct{}
	// blocks[by][target]
	blocks map[string]map[string]struct{}
}

// Seed is the on-disk layout of a profile seed file.
type Seed struct {
	Profiles []*profile.Profile `yaml:"profiles"`
	Banned   []string           `yaml:"banned"`
	Blocks   []SeedBlock        `yaml:"blocks"`
}

// SeedBlock records that By has blocked Target.
type SeedBlock struct {
	By     string `yaml:"by"`
	Target string `yaml:"target"`
}

func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]*profile.Profile),
		banned:   make(map[string]struct{}),
		blocks:   make(map[string]map[string]struct{}),
	}
}

// ReadSeed parses a YAML seed file. Every profile must carry a userEmail.
func ReadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %q: %w", path, err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file %q: %w", path, err)
	}

	for idx, p := range seed.Profiles {
		if p == nil || strings.TrimSpace(p.UserEmail) == "" {
			return nil, fmt.Errorf("seed profile #%d has no userEmail", idx)
		}
	}
	return &seed, nil
}

// LoadFile reads a YAML seed file into a new Memory store.
func LoadFile(path string) (*Memory, error) {
	seed, err := ReadSeed(path)
	if err != nil {
		return nil, err
	}

	store := NewMemory()
	for _, p := range seed.Profiles {
		store.Put(p)
	}
	for _, id := range seed.Banned {
		store.Ban(id)
	}
	for _, block := range seed.Blocks {
		store.Block(block.Target, block.By)
	}

	return store, nil
}

// Put stores a normalized copy of p, replacing any profile with the same id.
func (m *Memory) Put(p *profile.Profile) {
	stored := cloneProfile(p)
	profile.Normalize(stored)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[stored.UserEmail]; !exists {
		m.order = append(m.order, stored.UserEmail)
	}
	m.profiles[stored.UserEmail] = stored
}

// Ban hides id system-wide.
func (m *Memory) Ban(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banned[key(id)] = struct{}{}
}

// Block records that by has blocked target.
func (m *Memory) Block(target, by string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.blocks[key(by)]
	if !ok {
		set = make(map[string]struct{})
		m.blocks[key(by)] = set
	}
	set[key(target)] = struct{}{}
}

func (m *Memory) GetProfile(_ context.Context, id string) (*profile.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[key(id)]
	if !ok {
		return nil, matcherr.ProfileNotFound(id)
	}
	return cloneProfile(p), nil
}

func (m *Memory) ListEligibleProfiles(_ context.Context, filter ListFilter) ([]*profile.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*profile.Profile, 0, len(m.order))
	for _, id := range m.order {
		p := m.profiles[id]
		if !matchesFilter(p, filter) {
			continue
		}
		result = append(result, cloneProfile(p))
	}
	return result, nil
}

func (m *Memory) IsBlocked(_ context.Context, target, by string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if strings.TrimSpace(by) == "" {
		_, banned := m.banned[key(target)]
		return banned, nil
	}
	_, blocked := m.blocks[key(by)][key(target)]
	return blocked, nil
}

func key(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
