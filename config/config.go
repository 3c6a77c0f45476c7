// Package config reads configuration from INI and XML files behind one
// typed-getter interface. Sections hold string keys; getters convert on
// the way out and fall back to the caller's default when a key is missing
// or malformed.
//
// The XML flavor maps elements to sections and attributes to keys; element
// text is exposed under the reserved "__data__" key.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

var (
	ErrConfig            = errors.New("config: load failed")
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
)

// DataKey is the section key holding an XML element's text content.
const DataKey = "__data__"

// Config is a loaded configuration file.
type Config struct {
	path    string
	iniFile *ini.File
	xmlRoot *xmlNode
}

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

// Open loads the file at path, dispatching on its extension. Supported
// formats are ".ini" and ".xml".
func Open(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini":
		f, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		return &Config{path: path, iniFile: f}, nil
	case ".xml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		var root xmlNode
		if err := xml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		return &Config{path: path, xmlRoot: &root}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string { return c.path }

// String returns the value at section/key, or def when absent.
func (c *Config) String(section, key, def string) string {
	if raw, ok := c.raw(section, key); ok {
		return raw
	}
	return def
}

// Int returns the value at section/key parsed as an integer, or def when
// absent or malformed.
func (c *Config) Int(section, key string, def int) int {
	raw, ok := c.raw(section, key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

// Float returns the value at section/key parsed as a float, or def when
// absent or malformed.
func (c *Config) Float(section, key string, def float64) float64 {
	raw, ok := c.raw(section, key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return def
	}
	return v
}

// Bool returns the value at section/key parsed as a boolean, or def when
// absent or malformed. Accepted spellings follow strconv.ParseBool plus
// yes/no.
func (c *Config) Bool(section, key string, def bool) bool {
	raw, ok := c.raw(section, key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes":
		return true
	case "no":
		return false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

// Value returns a section's text content. Only XML elements carry text;
// for INI files def is returned.
func (c *Config) Value(section, def string) string {
	if c.xmlRoot == nil {
		return def
	}
	node := c.xmlRoot.find(section)
	if node == nil {
		return def
	}
	if text := strings.TrimSpace(node.Text); text != "" {
		return text
	}
	return def
}

// Section returns every key of the named section as strings. XML sections
// include element text under DataKey. A missing section yields an empty
// map.
func (c *Config) Section(name string) map[string]string {
	out := map[string]string{}
	if c.iniFile != nil {
		sec, err := c.iniFile.GetSection(name)
		if err != nil {
			return out
		}
		for _, key := range sec.Keys() {
			out[key.Name()] = key.Value()
		}
		return out
	}
	node := c.xmlRoot.find(name)
	if node == nil {
		return out
	}
	for _, attr := range node.Attrs {
		out[attr.Name.Local] = attr.Value
	}
	if text := strings.TrimSpace(node.Text); text != "" {
		out[DataKey] = text
	}
	return out
}

// All returns every section.
func (c *Config) All() map[string]map[string]string {
	out := map[string]map[string]string{}
	if c.iniFile != nil {
		for _, sec := range c.iniFile.Sections() {
			if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
				continue
			}
			out[sec.Name()] = c.Section(sec.Name())
		}
		return out
	}
	for i := range c.xmlRoot.Nodes {
		name := c.xmlRoot.Nodes[i].XMLName.Local
		out[name] = c.Section(name)
	}
	return out
}

// raw fetches the string value at section/key from whichever backend is
// loaded.
func (c *Config) raw(section, key string) (string, bool) {
	if c.iniFile != nil {
		sec, err := c.iniFile.GetSection(section)
		if err != nil || !sec.HasKey(key) {
			return "", false
		}
		return sec.Key(key).Value(), true
	}
	node := c.xmlRoot.find(section)
	if node == nil {
		return "", false
	}
	for _, attr := range node.Attrs {
		if attr.Name.Local == key {
			return attr.Value, true
		}
	}
	return "", false
}

// find locates the first element with the given tag name, depth first.
func (n *xmlNode) find(name string) *xmlNode {
	if n == nil {
		return nil
	}
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
		if found := n.Nodes[i].find(name); found != nil {
			return found
		}
	}
	return nil
}
