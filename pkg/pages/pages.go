package pages

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Package pages loads the registry of social pages to crawl (YAML/JSON).
// Pages are crawl parameters only and are never persisted.

// Page identifies one social-media page whose feed should be archived.
type Page struct {
	Name           string         `json:"name" yaml:"name"`
	DisplayName    string         `json:"display_name" yaml:"display_name"`
	RequestDelayMs int            `json:"request_delay_ms" yaml:"request_delay_ms"`
	Config         map[string]any `json:"config" yaml:"config"`
}

type registryFile struct {
	Pages []Page `json:"pages" yaml:"pages"`
}

var defaultRequestDelayMs = 500

// Registry materializes page definitions loaded from config files.
type Registry struct {
	mu    sync.RWMutex
	pages []Page
	idx   map[string]Page
}

// LoadRegistry loads the page registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("pages file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pages file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read pages file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Pages) == 0 {
		return nil, errors.New("pages file contains no pages entries")
	}

	reg := &Registry{
		pages: make([]Page, len(fileReg.Pages)),
		idx:   make(map[string]Page, len(fileReg.Pages)),
	}

	for i := range fileReg.Pages {
		p := sanitizePage(fileReg.Pages[i])
		if err := validatePage(p); err != nil {
			return nil, fmt.Errorf("pages[%d]: %w", i, err)
		}
		if _, exists := reg.idx[p.Name]; exists {
			return nil, fmt.Errorf("duplicate page name %q", p.Name)
		}
		reg.pages[i] = p
		reg.idx[p.Name] = p
	}

	return reg, nil
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registryFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("pages file format not recognized (expected YAML or JSON)")
}

func sanitizePage(p Page) Page {
	p.Name = strings.TrimSpace(p.Name)
	p.DisplayName = strings.TrimSpace(p.DisplayName)

	if p.DisplayName == "" {
		p.DisplayName = p.Name
	}
	if p.Config == nil {
		p.Config = map[string]any{}
	}
	if p.RequestDelayMs <= 0 {
		p.RequestDelayMs = defaultRequestDelayMs
	}

	return p
}

func validatePage(p Page) error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// All returns a copy of the loaded pages in file order.
func (r *Registry) All() []Page {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Page, len(r.pages))
	copy(out, r.pages)
	return out
}

// ByName returns the page entry for the given name, if loaded.
func (r *Registry) ByName(name string) (Page, bool) {
	if r == nil {
		return Page{}, false
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Page{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.idx[name]
	return p, ok
}

// RequestDelay returns the per-request throttle duration for the page.
func (p Page) RequestDelay() time.Duration {
	if p.RequestDelayMs <= 0 {
		return time.Duration(defaultRequestDelayMs) * time.Millisecond
	}
	return time.Duration(p.RequestDelayMs) * time.Millisecond
}

// ConfigString returns the trimmed string value for key from the page config or a fallback.
func (p Page) ConfigString(key, fallback string) string {
	if p.Config != nil {
		if raw, ok := p.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}
