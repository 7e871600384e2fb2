// Package config defines the pipeline file that drives a migration run.
//
// Pipeline files are JSON or YAML, selected by extension (.yaml/.yml for
// YAML, anything else JSON). Example (YAML):
//
//	job: ventas
//	source:
//	  kind: bigquery
//	  project: acme-analytics
//	  query: SELECT * FROM ventas.base_entregar
//	docstore:
//	  kind: firestore
//	  project: acme-apps
//	  destination: VENTA
//	audit:
//	  kind: bigquery
//	  project: acme-analytics
//	  table: history.base_entregar_apiv7
//	runtime:
//	  chunk_size: 450
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"docmigrate/internal/source"

	"gopkg.in/yaml.v3"
)

// DefaultChunkSize is the number of rows between flushes when unset.
const DefaultChunkSize = 450

// Pipeline is the top-level object of a pipeline file.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" yaml:"job"`

	Source   Source        `json:"source" yaml:"source"`
	Docstore Docstore      `json:"docstore" yaml:"docstore"`
	Audit    Audit         `json:"audit" yaml:"audit"`
	Runtime  RuntimeConfig `json:"runtime" yaml:"runtime"`
	Pipeline Behavior      `json:"pipeline" yaml:"pipeline"`
	Metrics  Metrics       `json:"metrics" yaml:"metrics"`
}

// Source selects the analytical store to read and the query to run.
type Source struct {
	// Kind is one of bigquery, postgres, sqlite, mssql, mysql.
	Kind            string `json:"kind" yaml:"kind"`
	DSN             string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Project         string `json:"project,omitempty" yaml:"project,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
	Query           string `json:"query" yaml:"query"`

	// Mapping overrides result column names; unset fields keep the defaults.
	Mapping          source.Mapping `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	NormalizeUnicode bool           `json:"normalize_unicode,omitempty" yaml:"normalize_unicode,omitempty"`
}

// Docstore selects the document store and the base destination name.
type Docstore struct {
	// Kind is one of firestore, mongo, postgres, sqlite.
	Kind            string `json:"kind" yaml:"kind"`
	DSN             string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Project         string `json:"project,omitempty" yaml:"project,omitempty"`
	Database        string `json:"database,omitempty" yaml:"database,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`

	// Destination is the base name; a "_N" suffix is added while it is taken.
	Destination string `json:"destination" yaml:"destination"`

	// MaxProbes bounds destination probing. Zero means unbounded.
	MaxProbes int `json:"max_probes,omitempty" yaml:"max_probes,omitempty"`
}

// Audit selects where flushed records are reconciled.
type Audit struct {
	// Kind is one of bigquery, postgres, sqlite, mssql, mysql.
	Kind            string `json:"kind" yaml:"kind"`
	DSN             string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Project         string `json:"project,omitempty" yaml:"project,omitempty"`
	Dataset         string `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
	Table           string `json:"table" yaml:"table"`

	// Mode is "final" (default) or "per_batch".
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// AutoCreateTable defaults to true.
	AutoCreateTable *bool `json:"auto_create_table,omitempty" yaml:"auto_create_table,omitempty"`
}

// CreateTable reports whether the audit table should be created when missing.
func (a Audit) CreateTable() bool {
	return a.AutoCreateTable == nil || *a.AutoCreateTable
}

// RuntimeConfig controls batching.
type RuntimeConfig struct {
	// ChunkSize is the number of rows between flushes and the source page size.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
}

// Behavior holds pipeline policy switches.
type Behavior struct {
	// StrictKeys aborts the run when a flushed key reappears in a later batch.
	StrictKeys bool `json:"strict_keys,omitempty" yaml:"strict_keys,omitempty"`
}

// Metrics selects a metrics backend. Command-line flags take precedence.
type Metrics struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend        string `json:"backend,omitempty" yaml:"backend,omitempty"`
	PushgatewayURL string `json:"pushgateway_url,omitempty" yaml:"pushgateway_url,omitempty"`
	DatadogAddr    string `json:"datadog_addr,omitempty" yaml:"datadog_addr,omitempty"`
}

// Load reads a pipeline file, then applies environment overrides and
// defaults.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	p, err := Decode(b, FormatFor(path))
	if err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	ApplyEnv(&p)
	ApplyDefaults(&p)
	return p, nil
}

// Format is the encoding of a pipeline file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses b. Unknown fields are rejected so typos surface early.
func Decode(b []byte, f Format) (Pipeline, error) {
	var p Pipeline
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	}
	return p, nil
}

// ApplyEnv overlays environment variables:
//
//	DOCMIGRATE_CHUNK_SIZE  runtime.chunk_size
//	METRICS_BACKEND        metrics.backend (when unset in the file)
//	PUSHGATEWAY_URL        metrics.pushgateway_url (when unset in the file)
//	DATADOG_ADDR           metrics.datadog_addr (when unset in the file)
//	GOOGLE_CLOUD_PROJECT   project of bigquery/firestore sections that set none
func ApplyEnv(p *Pipeline) {
	p.Runtime.ChunkSize = getenvInt("DOCMIGRATE_CHUNK_SIZE", p.Runtime.ChunkSize)
	p.Metrics.Backend = pickString(p.Metrics.Backend, os.Getenv("METRICS_BACKEND"))
	p.Metrics.PushgatewayURL = pickString(p.Metrics.PushgatewayURL, os.Getenv("PUSHGATEWAY_URL"))
	p.Metrics.DatadogAddr = pickString(p.Metrics.DatadogAddr, os.Getenv("DATADOG_ADDR"))

	if gcp := os.Getenv("GOOGLE_CLOUD_PROJECT"); gcp != "" {
		if p.Source.Kind == "bigquery" {
			p.Source.Project = pickString(p.Source.Project, gcp)
		}
		if p.Docstore.Kind == "firestore" {
			p.Docstore.Project = pickString(p.Docstore.Project, gcp)
		}
		if p.Audit.Kind == "bigquery" {
			p.Audit.Project = pickString(p.Audit.Project, gcp)
		}
	}
}

// ApplyDefaults fills unset values.
func ApplyDefaults(p *Pipeline) {
	p.Runtime.ChunkSize = pickInt(p.Runtime.ChunkSize, DefaultChunkSize)
	if p.Job == "" {
		p.Job = strings.ToLower(p.Docstore.Destination)
	}
	if p.Audit.Mode == "" {
		p.Audit.Mode = "final"
	}
	p.Source.Mapping = p.Source.Mapping.WithDefaults()
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses a when positive, otherwise b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// pickString chooses a when non-blank, otherwise b.
func pickString(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
