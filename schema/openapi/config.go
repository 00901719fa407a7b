package openapi

import (
	"strings"
)

// Info is the document info block. Title and Version are required.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Operation is the single operation whose request body carries the
// property payload. An empty ID is derived as "<method>:<path>".
type Operation struct {
	Path    string
	Method  string
	ID      string
	Summary string
}

type generatorConfig struct {
	version     string
	info        Info
	operation   Operation
	contentType string
	responses   map[string]string
	component   string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		version:     "3.0.3",
		info:        Info{Title: "Property Schema", Version: "1.0.0"},
		operation:   Operation{Path: "/properties", Method: "put"},
		contentType: "application/json",
		responses:   map[string]string{"204": "OK"},
		component:   "Properties",
	}
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the OpenAPI version string (default: 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.version = version
		}
	}
}

// WithInfo merges the non-empty fields of info into the info block.
func WithInfo(info Info) GeneratorOption {
	return func(cfg *generatorConfig) {
		if info.Title != "" {
			cfg.info.Title = info.Title
		}
		if info.Version != "" {
			cfg.info.Version = info.Version
		}
		if info.Description != "" {
			cfg.info.Description = info.Description
		}
	}
}

// WithOperation merges the non-empty fields of op into the operation.
func WithOperation(op Operation) GeneratorOption {
	return func(cfg *generatorConfig) {
		if op.Path != "" {
			cfg.operation.Path = op.Path
		}
		if op.Method != "" {
			cfg.operation.Method = strings.ToLower(op.Method)
		}
		if op.ID != "" {
			cfg.operation.ID = op.ID
		}
		if op.Summary != "" {
			cfg.operation.Summary = op.Summary
		}
	}
}

// WithContentType sets the request body content type.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if contentType != "" {
			cfg.contentType = contentType
		}
	}
}

// WithResponse adds or replaces the response documented for status.
func WithResponse(status, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if status == "" {
			return
		}
		responses := make(map[string]string, len(cfg.responses)+1)
		for code, desc := range cfg.responses {
			responses[code] = desc
		}
		responses[status] = description
		cfg.responses = responses
	}
}

// WithComponent names the components.schemas entry holding the property
// object (default: Properties). The name is sanitized.
func WithComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if name = sanitizeComponentName(name); name != "" {
			cfg.component = name
		}
	}
}
