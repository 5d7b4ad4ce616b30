package profile

// Pool is an ordered set of candidate profiles.
type Pool struct {
	Items []*Profile
}

func NewPool(items ...*Profile) *Pool {
	return &Pool{Items: items}
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

func (p *Pool) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		ids = append(ids, item.UserEmail)
	}
	return ids
}

// Retain keeps the profiles accepted by keep, preserving order, and returns the ids it dropped.
func (p *Pool) Retain(keep func(*Profile) bool) []string {
	var dropped []string
	kept := p.Items[:0]
	for _, item := range p.Items {
		if keep(item) {
			kept = append(kept, item)
			continue
		}
		dropped = append(dropped, item.ID())
	}
	for idx := len(kept); idx < len(p.Items); idx++ {
		p.Items[idx] = nil
	}
	p.Items = kept
	return dropped
}

// Exclude removes profiles whose ids are in targets.
func (p *Pool) Exclude(targets []string) []string {
	if len(targets) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		set[normalizeEmail(target)] = struct{}{}
	}
	return p.Retain(func(item *Profile) bool {
		_, found := set[normalizeEmail(item.UserEmail)]
		return !found
	})
}
