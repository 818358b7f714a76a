// Package catalog holds the configured feed groups and their channel titles.
package catalog

import (
	"fmt"
	"net/url"
	"os"
	"sort"

	"feedhub/internal/domain"

	"gopkg.in/yaml.v3"
)

// AllGroups selects the union of every group not excluded from it.
const AllGroups = "all"

// DefaultExcluded is left out of AllGroups unless configured otherwise.
var DefaultExcluded = []string{"real_estate"}

// DefaultTitles is the channel title of each known category.
var DefaultTitles = map[string]string{
	"dev":         "Korea Awesome Developers",
	"company":     "Korea Tech Companies Blogs",
	"insightful":  "Korea Insightful Blogs",
	AllGroups:     "Korea Awesome Blogs",
	"real_estate": "Korea Awesome Real Estate Blogs",
}

// file is the on-disk layout of the groups file.
type file struct {
	Titles map[string]string                     `yaml:"titles"`
	Groups map[string][]domain.SourceDescriptor `yaml:"groups"`
}

// Catalog resolves group selectors to sources and channel titles.
// It is immutable after construction.
type Catalog struct {
	groups  map[string][]domain.SourceDescriptor
	names   []string
	titles  map[string]string
	exclude map[string]struct{}
}

// New builds a catalog. Titles are merged over DefaultTitles.
func New(groups map[string][]domain.SourceDescriptor, titles map[string]string, excludeFromAll []string) *Catalog {
	c := &Catalog{
		groups:  make(map[string][]domain.SourceDescriptor, len(groups)),
		titles:  make(map[string]string, len(DefaultTitles)+len(titles)),
		exclude: make(map[string]struct{}, len(excludeFromAll)),
	}
	for k, v := range DefaultTitles {
		c.titles[k] = v
	}
	for k, v := range titles {
		c.titles[k] = v
	}
	for _, g := range excludeFromAll {
		c.exclude[g] = struct{}{}
	}
	for name, sources := range groups {
		copied := make([]domain.SourceDescriptor, len(sources))
		for i, s := range sources {
			s.Group = name
			copied[i] = s
		}
		c.groups[name] = copied
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

// Load reads a YAML groups file.
func Load(path string, excludeFromAll []string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file %s: %w", path, err)
	}
	c, err := Parse(data, excludeFromAll)
	if err != nil {
		return nil, fmt.Errorf("feeds file %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML groups document.
func Parse(data []byte, excludeFromAll []string) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	c := New(f.Groups, f.Titles, excludeFromAll)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	if len(c.groups) == 0 {
		return fmt.Errorf("no groups defined")
	}
	for _, name := range c.names {
		if name == AllGroups {
			return fmt.Errorf("group name %q is reserved", AllGroups)
		}
		if _, ok := c.titles[name]; !ok {
			return fmt.Errorf("%w: group %q has no channel title", domain.ErrUnknownCategory, name)
		}
		for _, s := range c.groups[name] {
			if _, err := url.ParseRequestURI(s.FeedURL); err != nil {
				return fmt.Errorf("invalid feed_url in group %s: %q", name, s.FeedURL)
			}
		}
	}
	return nil
}

// Sources returns the sources of selector, a group name or AllGroups.
func (c *Catalog) Sources(selector string) ([]domain.SourceDescriptor, error) {
	if selector == AllGroups {
		var all []domain.SourceDescriptor
		for _, name := range c.names {
			if _, skip := c.exclude[name]; skip {
				continue
			}
			all = append(all, c.groups[name]...)
		}
		return all, nil
	}
	sources, ok := c.groups[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownGroup, selector)
	}
	return append([]domain.SourceDescriptor(nil), sources...), nil
}

// Title returns the channel title of a category.
func (c *Catalog) Title(category string) (string, error) {
	title, ok := c.titles[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	return title, nil
}

// Groups returns the configured group names, sorted.
func (c *Catalog) Groups() []string {
	return append([]string(nil), c.names...)
}
