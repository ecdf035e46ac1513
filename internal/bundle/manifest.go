package bundle

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Manifest holds the attributes of an archive manifest: a main section
// followed by optional per-entry sections introduced by a Name attribute.
type Manifest struct {
	main     []Attribute
	sections map[string][]Attribute
	order    []string
}

// Attribute is one manifest key/value pair
type Attribute struct {
	Key   string
	Value string
}

// EmptyManifest returns a manifest with no attributes
func EmptyManifest() *Manifest {
	return &Manifest{sections: make(map[string][]Attribute)}
}

// ParseManifest parses manifest text. Continuation lines start with a
// single space; sections are separated by blank lines.
func ParseManifest(data []byte) (*Manifest, error) {
	m := EmptyManifest()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), len(data)+1)

	var current *[]Attribute = &m.main
	var section []Attribute
	inMain := true
	lineNo := 0

	flush := func() error {
		if inMain {
			return nil
		}
		if len(section) == 0 {
			return nil
		}
		if !strings.EqualFold(section[0].Key, "Name") {
			return fmt.Errorf("manifest section without Name attribute")
		}
		name := section[0].Value
		if _, exists := m.sections[name]; !exists {
			m.order = append(m.order, name)
		}
		m.sections[name] = section[1:]
		section = nil
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			inMain = false
			current = &section
			continue
		}

		if line[0] == ' ' {
			attrs := *current
			if len(attrs) == 0 {
				return nil, fmt.Errorf("manifest line %d: continuation without attribute", lineNo)
			}
			attrs[len(attrs)-1].Value += line[1:]
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" {
			return nil, fmt.Errorf("manifest line %d: invalid attribute %q", lineNo, line)
		}
		*current = append(*current, Attribute{Key: key, Value: strings.TrimPrefix(value, " ")})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return m, nil
}

// Get returns a main section attribute. Keys are case-insensitive.
func (m *Manifest) Get(key string) (string, bool) {
	return lookupAttribute(m.main, key)
}

// Value returns a main section attribute, empty when absent
func (m *Manifest) Value(key string) string {
	v, _ := m.Get(key)
	return v
}

// Attributes returns the main section in file order
func (m *Manifest) Attributes() []Attribute {
	out := make([]Attribute, len(m.main))
	copy(out, m.main)
	return out
}

// Section returns the attributes of a per-entry section
func (m *Manifest) Section(name string) ([]Attribute, bool) {
	attrs, ok := m.sections[name]
	return attrs, ok
}

// SectionNames returns per-entry section names in file order
func (m *Manifest) SectionNames() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of main section attributes
func (m *Manifest) Len() int {
	return len(m.main)
}

// MainClass returns the application entry point recorded by the packaging
// tool. The generic Main-Class key names the bootstrap dispatcher and is
// not consulted.
func (m *Manifest) MainClass() (string, bool) {
	v, ok := m.Get(LoaderMainClassKey)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func lookupAttribute(attrs []Attribute, key string) (string, bool) {
	for _, a := range attrs {
		if strings.EqualFold(a.Key, key) {
			return a.Value, true
		}
	}
	return "", false
}
