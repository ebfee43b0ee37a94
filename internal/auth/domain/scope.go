package domain

// Scope is a named permission unit with a human-readable description for the
// consent screen.
type Scope struct {
	Name        string
	Description string
}

// ScopeRegistry is the server's global set of valid scopes. Clients may only
// register scopes that appear here.
type ScopeRegistry []Scope

// Contains reports whether name is a registered scope.
func (r ScopeRegistry) Contains(name string) bool {
	for _, s := range r {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Describe returns the descriptors for the given scope names, skipping
// unknown names.
func (r ScopeRegistry) Describe(names []string) []Scope {
	out := make([]Scope, 0, len(names))
	for _, name := range names {
		for _, s := range r {
			if s.Name == name {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Names returns all registered scope names in order.
func (r ScopeRegistry) Names() []string {
	out := make([]string, len(r))
	for i, s := range r {
		out[i] = s.Name
	}
	return out
}
