package llm

import (
	"fmt"
	"sort"
	"strings"
)

// Registry stores named clients and resolves a default one.
type Registry struct {
	clients       map[string]Client
	defaultClient string
}

func NewRegistry(defaultClient string) *Registry {
	normalizedDefault := normalizeClientName(defaultClient)
	if normalizedDefault == "" {
		normalizedDefault = ProviderOpenAI
	}
	return &Registry{
		clients:       make(map[string]Client),
		defaultClient: normalizedDefault,
	}
}

// Register adds one client under its Name.
func (r *Registry) Register(client Client) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if client == nil {
		return fmt.Errorf("client is nil")
	}
	name := normalizeClientName(client.Name())
	if name == "" {
		return fmt.Errorf("client name is required")
	}
	r.clients[name] = client
	return nil
}

// Client resolves a client by name. Empty names use the default.
func (r *Registry) Client(name string) (Client, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if len(r.clients) == 0 {
		return nil, fmt.Errorf("no language model clients are registered")
	}

	resolved := normalizeClientName(name)
	if resolved == "" {
		resolved = r.defaultClient
	}
	if client, ok := r.clients[resolved]; ok {
		return client, nil
	}
	return nil, fmt.Errorf("language model client %q is not registered (available: %s)", resolved, strings.Join(r.Names(), ", "))
}

func (r *Registry) Default() (Client, error) {
	return r.Client("")
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeClientName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
