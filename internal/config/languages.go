package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Language is one entry of the language catalogue offered to snippet authors.
type Language struct {
	Name       string   `yaml:"name" json:"name"`
	ID         string   `yaml:"id" json:"id"` // syntax highlighter identifier
	Extensions []string `yaml:"extensions" json:"extensions,omitempty"`
}

// LanguagesFile is the on-disk form of the catalogue.
type LanguagesFile struct {
	Languages []Language `yaml:"languages"`
}

// Languages is an ordered catalogue with case-insensitive lookup by name,
// id or file extension.
type Languages struct {
	list  []Language
	index map[string]int
}

// NewLanguages builds a catalogue. Names and ids must be unique.
func NewLanguages(list []Language) (*Languages, error) {
	if len(list) == 0 {
		return nil, errors.New("language catalogue is empty")
	}
	l := &Languages{
		list:  make([]Language, 0, len(list)),
		index: make(map[string]int, len(list)*2),
	}
	for _, lang := range list {
		lang.Name = strings.TrimSpace(lang.Name)
		if lang.Name == "" {
			return nil, errors.New("language name cannot be empty")
		}
		if lang.ID == "" {
			lang.ID = strings.ToLower(lang.Name)
		}
		pos := len(l.list)
		for _, key := range []string{lang.Name, lang.ID} {
			key = strings.ToLower(key)
			if prev, ok := l.index[key]; ok && prev != pos {
				return nil, fmt.Errorf("duplicate language %q", key)
			}
			l.index[key] = pos
		}
		for _, ext := range lang.Extensions {
			key := "." + strings.TrimPrefix(strings.ToLower(ext), ".")
			if _, ok := l.index[key]; !ok {
				l.index[key] = pos
			}
		}
		l.list = append(l.list, lang)
	}
	return l, nil
}

// LoadLanguages loads the catalogue from a YAML file.
func LoadLanguages(path string) (*Languages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading languages file: %w", err)
	}

	var file LanguagesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing languages YAML: %w", err)
	}

	langs, err := NewLanguages(file.Languages)
	if err != nil {
		return nil, fmt.Errorf("languages file %s: %w", path, err)
	}
	return langs, nil
}

// LanguagesOrDefault loads path, falling back to DefaultLanguages when path
// is empty.
func LanguagesOrDefault(path string) (*Languages, error) {
	if path == "" {
		return DefaultLanguages(), nil
	}
	return LoadLanguages(path)
}

// DefaultLanguages returns the built-in catalogue.
func DefaultLanguages() *Languages {
	langs, err := NewLanguages([]Language{
		{Name: "JavaScript", ID: "javascript", Extensions: []string{".js", ".mjs", ".cjs", ".jsx"}},
		{Name: "TypeScript", ID: "typescript", Extensions: []string{".ts", ".tsx"}},
		{Name: "Python", ID: "python", Extensions: []string{".py"}},
		{Name: "Java", ID: "java", Extensions: []string{".java"}},
		{Name: "C", ID: "c", Extensions: []string{".c", ".h"}},
		{Name: "C++", ID: "cpp", Extensions: []string{".cpp", ".cc", ".cxx", ".hpp"}},
		{Name: "Go", ID: "go", Extensions: []string{".go"}},
		{Name: "Rust", ID: "rust", Extensions: []string{".rs"}},
		{Name: "PHP", ID: "php", Extensions: []string{".php"}},
		{Name: "Ruby", ID: "ruby", Extensions: []string{".rb"}},
		{Name: "Swift", ID: "swift", Extensions: []string{".swift"}},
		{Name: "Kotlin", ID: "kotlin", Extensions: []string{".kt", ".kts"}},
		{Name: "SQL", ID: "sql", Extensions: []string{".sql"}},
		{Name: "HTML", ID: "html", Extensions: []string{".html", ".htm"}},
		{Name: "CSS", ID: "css", Extensions: []string{".css"}},
	})
	if err != nil {
		panic(err)
	}
	return langs
}

// All returns the catalogue in declaration order.
func (l *Languages) All() []Language {
	out := make([]Language, len(l.list))
	copy(out, l.list)
	return out
}

// Names returns the display names sorted alphabetically.
func (l *Languages) Names() []string {
	names := make([]string, len(l.list))
	for i, lang := range l.list {
		names[i] = lang.Name
	}
	sort.Strings(names)
	return names
}

// Lookup finds a language by name, id or extension (".go").
func (l *Languages) Lookup(key string) (Language, bool) {
	i, ok := l.index[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Language{}, false
	}
	return l.list[i], true
}

// Canonical returns the display name for key, or false when the language is
// not in the catalogue.
func (l *Languages) Canonical(key string) (string, bool) {
	lang, ok := l.Lookup(key)
	return lang.Name, ok
}
