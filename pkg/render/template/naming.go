package template

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RenamingMap rewrites CSS class names or element IDs. Get returns "" when the
// key has no mapping.
type RenamingMap interface {
	Get(key string) string
}

// NamingMapProvider supplies the CSS and ID renaming maps. Either may be nil.
type NamingMapProvider interface {
	CSSRenamingMap() RenamingMap
	IDRenamingMap() RenamingMap
}

// MapRenaming is a RenamingMap backed by a plain map.
type MapRenaming map[string]string

// Get implements RenamingMap.
func (m MapRenaming) Get(key string) string {
	return m[key]
}

// Rename applies m to name. Unmapped names, and hyphenated names whose
// segments are not all mapped, are returned unchanged.
func Rename(m RenamingMap, name string) string {
	if m == nil || name == "" {
		return name
	}
	if renamed := m.Get(name); renamed != "" {
		return renamed
	}
	if !strings.Contains(name, "-") {
		return name
	}
	parts := strings.Split(name, "-")
	for i, part := range parts {
		renamed := m.Get(part)
		if renamed == "" {
			return name
		}
		parts[i] = renamed
	}
	return strings.Join(parts, "-")
}

// StaticNamingMaps is a NamingMapProvider loaded from a YAML document:
//
//	css:
//	  button: a
//	id:
//	  header: h1
type StaticNamingMaps struct {
	CSS MapRenaming `yaml:"css"`
	ID  MapRenaming `yaml:"id"`
}

var _ NamingMapProvider = (*StaticNamingMaps)(nil)

// CSSRenamingMap implements NamingMapProvider.
func (s *StaticNamingMaps) CSSRenamingMap() RenamingMap {
	if s == nil || len(s.CSS) == 0 {
		return nil
	}
	return s.CSS
}

// IDRenamingMap implements NamingMapProvider.
func (s *StaticNamingMaps) IDRenamingMap() RenamingMap {
	if s == nil || len(s.ID) == 0 {
		return nil
	}
	return s.ID
}

// ParseNamingMaps decodes a renaming document.
func ParseNamingMaps(data []byte) (*StaticNamingMaps, error) {
	maps := &StaticNamingMaps{}
	if err := yaml.Unmarshal(data, maps); err != nil {
		return nil, fmt.Errorf("template: parse naming maps: %w", err)
	}
	return maps, nil
}

// LoadNamingMaps reads a renaming document from disk.
func LoadNamingMaps(path string) (*StaticNamingMaps, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: read naming maps: %w", err)
	}
	return ParseNamingMaps(data)
}
