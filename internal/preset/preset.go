// Package preset provides the built-in prompt templates a persona can start
// from. A preset fixes the framing fields (introduction, response type,
// annotation) and leaves {chatbot_name} and {introduction} placeholders for
// the persona's own identity.
package preset

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var defaultPresetsFS embed.FS

// CustomName is the preset that carries no built-in introduction. Loading it
// without an explicit introduction is an error.
const CustomName = "custom"

// Preset is a resolved prompt template, placeholders substituted.
type Preset struct {
	Introduction string `yaml:"introduction"`
	IsAI         bool   `yaml:"is_ai"`
	ResponseType string `yaml:"response_type"`
	Annotation   string `yaml:"annotation"`
}

// Library holds the available presets.
type Library struct {
	presets map[string]Preset
}

// NewLibrary loads the embedded presets.
func NewLibrary() (*Library, error) {
	subFS, err := fs.Sub(defaultPresetsFS, "presets")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded presets: %w", err)
	}
	return NewLibraryFromFS(subFS)
}

// NewLibraryFromFS loads presets from a given filesystem, one YAML file per
// preset, named after the file.
func NewLibraryFromFS(presetsFS fs.FS) (*Library, error) {
	l := &Library{presets: make(map[string]Preset)}

	entries, err := fs.ReadDir(presetsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read presets directory: %w", err)
	}

	for _, f := range entries {
		if f.IsDir() {
			continue
		}
		ext := filepath.Ext(f.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := f.Name()[:len(f.Name())-len(ext)]
		content, err := fs.ReadFile(presetsFS, f.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read preset file %s: %w", f.Name(), err)
		}
		var p Preset
		if err := yaml.Unmarshal(content, &p); err != nil {
			return nil, fmt.Errorf("failed to parse preset file %s: %w", f.Name(), err)
		}
		l.presets[name] = p
	}

	return l, nil
}

// Names lists the available preset names.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.presets))
	for name := range l.presets {
		names = append(names, name)
	}
	return names
}

// Resolve returns the named preset with placeholders substituted for the
// given persona. The custom preset requires an introduction; any other preset
// whose template carries an {introduction} placeholder does too.
func (l *Library) Resolve(name, chatbotName, introduction string) (Preset, error) {
	p, ok := l.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q", name)
	}

	if name == CustomName {
		if introduction == "" {
			return Preset{}, errors.New("the custom preset requires an introduction")
		}
		p.Introduction = introduction
	} else if strings.Contains(p.Introduction, "{introduction}") {
		if introduction == "" {
			return Preset{}, fmt.Errorf("preset %q requires an introduction", name)
		}
		p.Introduction = strings.ReplaceAll(p.Introduction, "{introduction}", introduction)
	}

	p.Introduction = strings.ReplaceAll(p.Introduction, "{chatbot_name}", chatbotName)
	p.ResponseType = strings.ReplaceAll(p.ResponseType, "{chatbot_name}", chatbotName)
	p.Annotation = strings.ReplaceAll(p.Annotation, "{chatbot_name}", chatbotName)
	return p, nil
}
