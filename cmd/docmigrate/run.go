package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"docmigrate/internal/audit"
	"docmigrate/internal/config"
	"docmigrate/internal/docstore"
	"docmigrate/internal/metrics"
	"docmigrate/internal/naming"
	"docmigrate/internal/pipeline"
	"docmigrate/internal/source"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	// Register every backend; the config selects which one runs.
	_ "docmigrate/internal/audit/all"
	_ "docmigrate/internal/docstore/all"
	_ "docmigrate/internal/source/all"
)

// ErrConnect marks a failure to authenticate or connect to a collaborator.
var ErrConnect = errors.New("credential or connection failure")

// Collaborator constructors; tests replace them.
var (
	newSource   = source.New
	newStore    = docstore.New
	newAppender = audit.New
	newRunID    = uuid.NewString
)

// result describes a finished run.
type result struct {
	Destination string
	RunID       string
	Stats       pipeline.Stats
}

// collaborators are the three external stores of a run.
type collaborators struct {
	src   source.Source
	store docstore.Store
	app   audit.Appender
}

func (c *collaborators) Close() error {
	var errs *multierror.Error
	if c.src != nil {
		errs = multierror.Append(errs, wrapClose("source", c.src.Close()))
	}
	if c.store != nil {
		errs = multierror.Append(errs, wrapClose("docstore", c.store.Close()))
	}
	if c.app != nil {
		errs = multierror.Append(errs, wrapClose("audit", c.app.Close()))
	}
	return errs.ErrorOrNil()
}

func wrapClose(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", what, err)
}

// connect opens the three collaborators concurrently. On any failure the
// ones that did open are closed.
func connect(ctx context.Context, p config.Pipeline) (*collaborators, error) {
	c := &collaborators{}
	t0 := time.Now()

	// Clients may retain the context they were built with, so they get ctx
	// and not a group context that ends with Wait.
	var g errgroup.Group
	g.Go(func() error {
		s, err := newSource(ctx, source.Config{
			Kind:             p.Source.Kind,
			DSN:              p.Source.DSN,
			Project:          p.Source.Project,
			CredentialsFile:  p.Source.CredentialsFile,
			Mapping:          p.Source.Mapping,
			NormalizeUnicode: p.Source.NormalizeUnicode,
		})
		if err != nil {
			return fmt.Errorf("%w: source %s: %v", ErrConnect, p.Source.Kind, err)
		}
		c.src = s
		return nil
	})
	g.Go(func() error {
		s, err := newStore(ctx, docstore.Config{
			Kind:            p.Docstore.Kind,
			DSN:             p.Docstore.DSN,
			Project:         p.Docstore.Project,
			Database:        p.Docstore.Database,
			CredentialsFile: p.Docstore.CredentialsFile,
		})
		if err != nil {
			return fmt.Errorf("%w: docstore %s: %v", ErrConnect, p.Docstore.Kind, err)
		}
		c.store = s
		return nil
	})
	g.Go(func() error {
		a, err := newAppender(ctx, audit.Config{
			Kind:            p.Audit.Kind,
			DSN:             p.Audit.DSN,
			Project:         p.Audit.Project,
			Dataset:         p.Audit.Dataset,
			CredentialsFile: p.Audit.CredentialsFile,
			AutoCreateTable: p.Audit.CreateTable(),
		})
		if err != nil {
			return fmt.Errorf("%w: audit %s: %v", ErrConnect, p.Audit.Kind, err)
		}
		c.app = a
		return nil
	})

	err := g.Wait()
	metrics.RecordStep(p.Job, "connect", err, time.Since(t0))
	if err != nil {
		if cerr := c.Close(); cerr != nil {
			log.Printf("connect: cleanup: %v", cerr)
		}
		return nil, err
	}
	return c, nil
}

// runPipeline executes one migration run for p.
func runPipeline(ctx context.Context, p config.Pipeline) (result, error) {
	res := result{RunID: newRunID()}

	c, err := connect(ctx, p)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Printf("run: close: %v", err)
		}
	}()

	writer := docstore.NewWriter(c.store)

	t0 := time.Now()
	dest, err := naming.Resolver{Prober: writer, MaxProbes: p.Docstore.MaxProbes}.Resolve(ctx, p.Docstore.Destination)
	metrics.RecordStep(p.Job, "resolve", err, time.Since(t0))
	if err != nil {
		return res, err
	}
	res.Destination = dest
	log.Printf("run: job=%s run_id=%s destination=%s", p.Job, res.RunID, dest)

	mode, err := audit.ParseMode(p.Audit.Mode)
	if err != nil {
		return res, err
	}
	sink, err := audit.NewSink(c.app, audit.Options{
		Table:       p.Audit.Table,
		Mode:        mode,
		Destination: dest,
		RunID:       res.RunID,
	})
	if err != nil {
		return res, err
	}

	ctrl, err := pipeline.NewController(writer, sink, pipeline.Options{
		ChunkSize:   p.Runtime.ChunkSize,
		Destination: dest,
		StrictKeys:  p.Pipeline.StrictKeys,
		Job:         p.Job,
	})
	if err != nil {
		return res, err
	}

	it, err := c.src.Query(ctx, p.Source.Query, p.Runtime.ChunkSize)
	if err != nil {
		return res, err
	}
	defer it.Close()

	res.Stats, err = pipeline.Run(ctx, it, ctrl, sink)
	return res, err
}
