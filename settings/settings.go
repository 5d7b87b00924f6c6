// Package settings keeps the site-wide settings record in a TOML file.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"github.com/eringen/storyline/post"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Theme colors, as CSS hex values.
type Theme struct {
	Primary    string `toml:"primary" json:"primary"`
	Accent     string `toml:"accent" json:"accent"`
	Background string `toml:"background" json:"background"`
}

// Banner is an optional site-wide announcement.
type Banner struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Message string `toml:"message" json:"message"`
	Link    string `toml:"link" json:"link"`
}

// SocialLink is a profile link shown in the footer.
type SocialLink struct {
	Label string `toml:"label" json:"label"`
	URL   string `toml:"url" json:"url"`
}

// Settings is the singleton site settings record.
type Settings struct {
	Title   string       `toml:"title" json:"title"`
	Tagline string       `toml:"tagline" json:"tagline"`
	Theme   Theme        `toml:"theme" json:"theme"`
	Banner  Banner       `toml:"banner" json:"banner"`
	Social  []SocialLink `toml:"social" json:"social"`
}

// Defaults returns the settings used for anything the file leaves out.
func Defaults() Settings {
	return Settings{
		Title:   "Storyline",
		Tagline: "Stories worth reading",
		Theme: Theme{
			Primary:    "#1a8917",
			Accent:     "#242424",
			Background: "#ffffff",
		},
		Social: []SocialLink{},
	}
}

func (s *Settings) setDefaults() {
	d := Defaults()
	if strings.TrimSpace(s.Title) == "" {
		s.Title = d.Title
	}
	if strings.TrimSpace(s.Tagline) == "" {
		s.Tagline = d.Tagline
	}
	if s.Theme.Primary == "" {
		s.Theme.Primary = d.Theme.Primary
	}
	if s.Theme.Accent == "" {
		s.Theme.Accent = d.Theme.Accent
	}
	if s.Theme.Background == "" {
		s.Theme.Background = d.Theme.Background
	}
	if s.Social == nil {
		s.Social = []SocialLink{}
	}
}

// Validate checks colors and links.
func (s Settings) Validate() error {
	for field, v := range map[string]string{
		"theme.primary":    s.Theme.Primary,
		"theme.accent":     s.Theme.Accent,
		"theme.background": s.Theme.Background,
	} {
		if v != "" && !hexColor.MatchString(v) {
			return &post.ValidationError{Field: field, Message: "must be a hex color like #1a8917"}
		}
	}
	if s.Banner.Enabled && strings.TrimSpace(s.Banner.Message) == "" {
		return &post.ValidationError{Field: "banner.message", Message: "an enabled banner needs a message"}
	}
	for i, l := range s.Social {
		if strings.TrimSpace(l.Label) == "" || strings.TrimSpace(l.URL) == "" {
			return &post.ValidationError{Field: fmt.Sprintf("social[%d]", i), Message: "label and url are required"}
		}
	}
	return nil
}

// Store loads the settings file on first use and caches it.
type Store struct {
	path string

	mu     sync.RWMutex
	loaded bool
	cur    Settings
}

// NewStore returns a Store for the TOML file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get returns the current settings. A missing file yields the defaults.
func (s *Store) Get() (Settings, error) {
	s.mu.RLock()
	if s.loaded {
		cur := s.cur
		s.mu.RUnlock()
		return cur, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		cur, err := s.read()
		if err != nil {
			return Settings{}, err
		}
		s.cur = cur
		s.loaded = true
	}
	return s.cur, nil
}

func (s *Store) read() (Settings, error) {
	var cur Settings
	if _, err := toml.DecodeFile(s.path, &cur); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
		}
	}
	cur.setDefaults()
	return cur, nil
}

// Save validates next, fills defaults and writes it atomically.
func (s *Store) Save(next Settings) (Settings, error) {
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	next.setDefaults()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(next); err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Settings{}, fmt.Errorf("create settings dir: %w", err)
	}
	if err := atomic.WriteFile(s.path, &buf); err != nil {
		return Settings{}, fmt.Errorf("write settings %s: %w", s.path, err)
	}
	s.cur = next
	s.loaded = true
	return next, nil
}
