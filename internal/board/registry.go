// Package board holds the table of supported development boards and the
// PlatformIO environment and pin assignments bound to each one.
package board

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtinYAML []byte

// ErrNotFound is returned by Lookup when no profile has the requested key.
var ErrNotFound = errors.New("profile not found")

// Pin assigns a GPIO number to a logical role on the board.
type Pin struct {
	Role   string
	Number int
}

// Profile describes one supported hardware target.
type Profile struct {
	Key         string
	Name        string
	Environment string // PlatformIO env, passed verbatim to `pio -e`
	Description string
	Pins        []Pin
}

// Pin returns the GPIO number assigned to role.
func (p Profile) Pin(role string) (int, bool) {
	for _, pin := range p.Pins {
		if pin.Role == role {
			return pin.Number, true
		}
	}
	return 0, false
}

func (p Profile) clone() Profile {
	p.Pins = append([]Pin(nil), p.Pins...)
	return p
}

// Registry is an immutable, ordered set of profiles.
type Registry struct {
	profiles []Profile
	byKey    map[string]int
	byEnv    map[string]int
}

// New validates profiles and builds a registry that keeps their order.
func New(profiles ...Profile) (*Registry, error) {
	r := &Registry{
		profiles: make([]Profile, 0, len(profiles)),
		byKey:    make(map[string]int, len(profiles)),
		byEnv:    make(map[string]int, len(profiles)),
	}
	for _, p := range profiles {
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := r.byKey[p.Key]; dup {
			return nil, fmt.Errorf("board: duplicate profile key %q", p.Key)
		}
		if i, dup := r.byEnv[p.Environment]; dup {
			return nil, fmt.Errorf("board: profiles %q and %q share environment %q",
				r.profiles[i].Key, p.Key, p.Environment)
		}

		p = p.clone()
		r.byKey[p.Key] = len(r.profiles)
		r.byEnv[p.Environment] = len(r.profiles)
		r.profiles = append(r.profiles, p)
	}
	return r, nil
}

func validate(p Profile) error {
	if p.Key == "" {
		return errors.New("board: profile with empty key")
	}
	if p.Environment == "" {
		return fmt.Errorf("board: profile %q has no environment", p.Key)
	}
	seen := make(map[string]bool, len(p.Pins))
	for _, pin := range p.Pins {
		if pin.Role == "" {
			return fmt.Errorf("board: profile %q has a pin with no role", p.Key)
		}
		if seen[pin.Role] {
			return fmt.Errorf("board: profile %q assigns %s more than once", p.Key, pin.Role)
		}
		if pin.Number < 0 {
			return fmt.Errorf("board: profile %q: %s has negative pin %d", p.Key, pin.Role, pin.Number)
		}
		seen[pin.Role] = true
	}
	return nil
}

// Lookup returns the profile registered under key.
func (r *Registry) Lookup(key string) (Profile, error) {
	i, ok := r.byKey[key]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return r.profiles[i].clone(), nil
}

// ByEnvironment returns the profile bound to a PlatformIO environment.
func (r *Registry) ByEnvironment(env string) (Profile, bool) {
	i, ok := r.byEnv[env]
	if !ok {
		return Profile{}, false
	}
	return r.profiles[i].clone(), true
}

// List returns all profiles in registration order.
func (r *Registry) List() []Profile {
	out := make([]Profile, len(r.profiles))
	for i, p := range r.profiles {
		out[i] = p.clone()
	}
	return out
}

// Keys returns all profile keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.profiles))
	for i, p := range r.profiles {
		keys[i] = p.Key
	}
	return keys
}

// Len reports the number of profiles.
func (r *Registry) Len() int { return len(r.profiles) }

var builtin = sync.OnceValues(func() (*Registry, error) {
	return Load(builtinYAML)
})

// Builtin returns the registry parsed from the embedded board table. It is
// built on first use and shared afterwards.
func Builtin() (*Registry, error) {
	return builtin()
}

type profileDoc struct {
	Key         string    `yaml:"key"`
	Name        string    `yaml:"name"`
	Env         string    `yaml:"env"`
	Description string    `yaml:"description"`
	Pins        yaml.Node `yaml:"pins"`
}

type tableDoc struct {
	Boards []profileDoc `yaml:"boards"`
}

// Load parses a YAML board table. Pins keep their document order.
func Load(data []byte) (*Registry, error) {
	var doc tableDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("board: parse table: %w", err)
	}

	profiles := make([]Profile, 0, len(doc.Boards))
	for _, b := range doc.Boards {
		pins, err := decodePins(&b.Pins)
		if err != nil {
			return nil, fmt.Errorf("board: profile %q: %w", b.Key, err)
		}
		profiles = append(profiles, Profile{
			Key:         b.Key,
			Name:        b.Name,
			Environment: b.Env,
			Description: b.Description,
			Pins:        pins,
		})
	}
	return New(profiles...)
}

func decodePins(n *yaml.Node) ([]Pin, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: pins must be a mapping", n.Line)
	}

	pins := make([]Pin, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		var num int
		if err := v.Decode(&num); err != nil {
			return nil, fmt.Errorf("line %d: pin %s: %w", v.Line, k.Value, err)
		}
		pins = append(pins, Pin{Role: k.Value, Number: num})
	}
	return pins, nil
}
