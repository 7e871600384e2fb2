package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// pipeline file, e.g. "docstore.destination".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// FirestoreMaxBatch is the Firestore limit on writes per atomic batch.
const FirestoreMaxBatch = 500

var (
	sourceKinds   = []string{"bigquery", "postgres", "sqlite", "mssql", "mysql"}
	docstoreKinds = []string{"firestore", "mongo", "postgres", "sqlite"}
	auditKinds    = []string{"bigquery", "postgres", "sqlite", "mssql", "mysql"}
	metricsKinds  = []string{"", "none", "pushgateway", "datadog"}
)

// ValidatePipeline lints p and returns every issue found. It does not mutate
// p. Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		add(SeverityWarning, "job", "job is empty; metrics will use the default job name")
	}

	// source
	switch {
	case strings.TrimSpace(p.Source.Kind) == "":
		add(SeverityError, "source.kind", "source.kind must not be empty")
	case !oneOf(p.Source.Kind, sourceKinds):
		add(SeverityError, "source.kind", "unknown source kind %q (want one of %s)", p.Source.Kind, strings.Join(sourceKinds, ", "))
	}
	if strings.TrimSpace(p.Source.Query) == "" {
		add(SeverityError, "source.query", "source.query must not be empty")
	}
	issues = append(issues, connIssues("source", p.Source.Kind, p.Source.DSN, p.Source.Project)...)

	// docstore
	switch {
	case strings.TrimSpace(p.Docstore.Kind) == "":
		add(SeverityError, "docstore.kind", "docstore.kind must not be empty")
	case !oneOf(p.Docstore.Kind, docstoreKinds):
		add(SeverityError, "docstore.kind", "unknown docstore kind %q (want one of %s)", p.Docstore.Kind, strings.Join(docstoreKinds, ", "))
	}
	dest := strings.TrimSpace(p.Docstore.Destination)
	if dest == "" {
		add(SeverityError, "docstore.destination", "docstore.destination must not be empty")
	} else if strings.ContainsAny(dest, "/.") {
		add(SeverityError, "docstore.destination", "destination %q must not contain '/' or '.'", dest)
	}
	issues = append(issues, connIssues("docstore", p.Docstore.Kind, p.Docstore.DSN, p.Docstore.Project)...)
	if p.Docstore.Kind == "mongo" && strings.TrimSpace(p.Docstore.Database) == "" {
		add(SeverityError, "docstore.database", "mongo docstore requires a database")
	}
	if p.Docstore.MaxProbes < 0 {
		add(SeverityError, "docstore.max_probes", "max_probes must be >= 0")
	}

	// audit
	switch {
	case strings.TrimSpace(p.Audit.Kind) == "":
		add(SeverityError, "audit.kind", "audit.kind must not be empty")
	case !oneOf(p.Audit.Kind, auditKinds):
		add(SeverityError, "audit.kind", "unknown audit kind %q (want one of %s)", p.Audit.Kind, strings.Join(auditKinds, ", "))
	}
	if strings.TrimSpace(p.Audit.Table) == "" {
		add(SeverityError, "audit.table", "audit.table must not be empty")
	} else if p.Audit.Kind == "bigquery" && !strings.Contains(p.Audit.Table, ".") && p.Audit.Dataset == "" {
		add(SeverityError, "audit.table", "bigquery audit table %q needs a dataset (dataset.table or audit.dataset)", p.Audit.Table)
	}
	issues = append(issues, connIssues("audit", p.Audit.Kind, p.Audit.DSN, p.Audit.Project)...)
	switch strings.ToLower(p.Audit.Mode) {
	case "", "final":
	case "per_batch":
		add(SeverityWarning, "audit.mode", "per_batch appends after every flush; a failed run leaves a partial audit table")
	default:
		add(SeverityError, "audit.mode", "unknown audit mode %q (want final or per_batch)", p.Audit.Mode)
	}

	// runtime
	if p.Runtime.ChunkSize <= 0 {
		add(SeverityError, "runtime.chunk_size", "chunk_size must be > 0")
	}
	if p.Docstore.Kind == "firestore" && p.Runtime.ChunkSize > FirestoreMaxBatch {
		add(SeverityError, "runtime.chunk_size",
			"chunk_size %d exceeds the Firestore batch limit of %d documents", p.Runtime.ChunkSize, FirestoreMaxBatch)
	}

	// metrics
	if !oneOf(p.Metrics.Backend, metricsKinds) {
		add(SeverityWarning, "metrics.backend", "unknown metrics backend %q; metrics will be disabled", p.Metrics.Backend)
	}

	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// connIssues checks the connection fields required by kind.
func connIssues(section, kind, dsn, project string) []Issue {
	switch kind {
	case "bigquery", "firestore":
		if strings.TrimSpace(project) == "" {
			return []Issue{{SeverityError, section + ".project", kind + " requires a project (or GOOGLE_CLOUD_PROJECT)"}}
		}
	case "postgres", "sqlite", "mssql", "mysql", "mongo":
		if strings.TrimSpace(dsn) == "" {
			return []Issue{{SeverityError, section + ".dsn", kind + " requires a dsn"}}
		}
	}
	return nil
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
