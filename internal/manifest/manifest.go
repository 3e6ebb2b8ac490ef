// Package manifest derives the deployment metadata that tells the
// hosting control plane how to run a bundle.
package manifest

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// FormatVersion is the manifest schema version the control plane
	// understands.
	FormatVersion = 1

	// ModuleFormat is fixed: the bundler always emits one ES module.
	ModuleFormat = "esm"

	// DefaultCompatibilityDate pins runtime behavior to a known snapshot.
	DefaultCompatibilityDate = "2024-09-23"
)

// DefaultCompatibilityFlags is the single conservative flag applied when
// the caller does not override compatibility settings.
var DefaultCompatibilityFlags = []string{"nodejs_compat"}

// Binding references a previously provisioned backing resource the
// bundled program expects to access, keyed by binding name in the
// manifest.
type Binding struct {
	Type string `json:"type"`
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Manifest is the metadata record uploaded next to a bundle.
type Manifest struct {
	FormatVersion      int                `json:"format_version"`
	MainModule         string             `json:"main_module"`
	CompatibilityDate  string             `json:"compatibility_date"`
	CompatibilityFlags []string           `json:"compatibility_flags"`
	ModuleFormat       string             `json:"module_format"`
	BuiltAt            time.Time          `json:"built_at"`
	Bindings           map[string]Binding `json:"bindings,omitempty"`
}

// Resource is a control-plane descriptor of an existing project resource.
type Resource struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	Binding string `json:"binding,omitempty"`
}

// Build assembles the manifest for a bundle whose entry module is
// mainModule. resources lists what the project already has; a brand-new
// project passes nil and gets no bindings. compatibilityFlags overrides
// the conservative default when non-empty.
func Build(mainModule string, resources []Resource, compatibilityFlags []string) Manifest {
	flags := compatibilityFlags
	if len(flags) == 0 {
		flags = DefaultCompatibilityFlags
	}

	m := Manifest{
		FormatVersion:      FormatVersion,
		MainModule:         mainModule,
		CompatibilityDate:  DefaultCompatibilityDate,
		CompatibilityFlags: flags,
		ModuleFormat:       ModuleFormat,
		BuiltAt:            time.Now().UTC(),
	}

	for _, res := range resources {
		name := res.Binding
		if name == "" {
			name = res.Name
		}
		if name == "" {
			log.Warn().Str("kind", res.Kind).Str("id", res.ID).Msg("Skipping resource with no binding name")
			continue
		}
		if m.Bindings == nil {
			m.Bindings = make(map[string]Binding)
		}
		m.Bindings[name] = Binding{Type: res.Kind, Name: res.Name, ID: res.ID}
	}

	return m
}
