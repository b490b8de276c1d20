// Command xflow validates XFlow documents and optionally registers the clean ones.
//
//	xflow [-config file] [-register] [-json] files...
//
// The exit status is 1 when any document fails to load or validate.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/songzhibin97/gkit/generator"
	"github.com/songzhibin97/xflow/config"
	"github.com/songzhibin97/xflow/internal/xjson"
	"github.com/songzhibin97/xflow/loader"
	"github.com/songzhibin97/xflow/registry"
	"github.com/songzhibin97/xflow/validation"
)

const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

// fileResult is the -json output for one input file.
type fileResult struct {
	File       string          `json:"file"`
	ID         string          `json:"id,omitempty"`
	Valid      bool            `json:"valid"`
	Error      string          `json:"error,omitempty"`
	Revision   uint64          `json:"revision,omitempty"`
	Violations []violationJSON `json:"violations,omitempty"`
}

type violationJSON struct {
	Kind      string `json:"kind"`
	Invariant int    `json:"invariant,omitempty"`
	NodeID    int    `json:"node_id,omitempty"`
	Edge      []int  `json:"edge,omitempty"`
	Variable  string `json:"variable,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("xflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configFile = fs.String("config", "", "YAML configuration file")
		register   = fs.Bool("register", false, "Register documents that pass validation")
		jsonOut    = fs.Bool("json", false, "Print results as JSON lines")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: xflow [-config file] [-register] [-json] files...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(stderr, "xflow: %v\n", err)
			return exitUsage
		}
		cfg = *loaded
	}
	logger := cfg.NewLogger("xflow", stderr)

	validator := validation.New(cfg.ValidatorOptions(logger.Named("validation"))...)

	var reg *registry.Registry
	if *register {
		store, closeStore, err := cfg.OpenStorage()
		if err != nil {
			logger.Error("failed to open storage", "backend", cfg.Storage.Backend, "error", err)
			return exitUsage
		}
		defer closeStore()

		reg, err = registry.NewRegistry(
			generator.NewSnowflake(time.Now().Add(-1*time.Second), 1),
			store,
			registry.WithValidator(validator),
			registry.WithLogger(logger.Named("registry")),
		)
		if err != nil {
			logger.Error("failed to create registry", "error", err)
			return exitUsage
		}
		defer reg.Stop(context.Background())
	}

	status := exitOK
	for _, path := range fs.Args() {
		result := check(context.Background(), path, validator, reg, logger)
		if !result.Valid {
			status = exitInvalid
		}
		if err := printResult(stdout, result, *jsonOut); err != nil {
			logger.Error("failed to write result", "file", path, "error", err)
			return exitUsage
		}
	}
	return status
}

// check loads, validates and optionally registers one file.
func check(ctx context.Context, path string, validator *validation.Validator, reg *registry.Registry, logger hclog.Logger) fileResult {
	result := fileResult{File: path}

	doc, err := loader.FromFile(path)
	if err != nil {
		logger.Debug("load failed", "file", path, "error", err)
		result.Error = err.Error()
		return result
	}
	result.ID = doc.ID

	if reg == nil {
		report := validator.ValidateDocument(doc)
		result.Valid = report.Valid()
		result.Violations = toJSON(report)
		return result
	}

	rec, err := reg.Register(ctx, doc)
	var rejected *registry.RejectedError
	switch {
	case errors.As(err, &rejected):
		result.Violations = toJSON(rejected.Report)
	case err != nil:
		result.Error = err.Error()
	default:
		result.Valid = true
		result.ID = rec.Document.ID
		result.Revision = rec.Revision
	}
	return result
}

func toJSON(report *validation.Report) []violationJSON {
	out := make([]violationJSON, 0, len(report.Violations))
	for _, v := range report.Violations {
		vj := violationJSON{
			Kind:      string(v.Kind),
			Invariant: v.Invariant,
			NodeID:    v.NodeID,
			Variable:  v.Variable,
			Field:     v.Field,
			Message:   v.Error(),
		}
		if v.Edge != nil {
			vj.Edge = []int{v.Edge.From, v.Edge.To}
		}
		out = append(out, vj)
	}
	return out
}

func printResult(w io.Writer, result fileResult, asJSON bool) error {
	if asJSON {
		data, err := xjson.Marshal(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	switch {
	case result.Error != "":
		_, err := fmt.Fprintf(w, "%s: error: %s\n", result.File, result.Error)
		return err
	case result.Valid && result.Revision != 0:
		_, err := fmt.Fprintf(w, "%s: valid (registered %s revision %d)\n", result.File, result.ID, result.Revision)
		return err
	case result.Valid:
		_, err := fmt.Fprintf(w, "%s: valid\n", result.File)
		return err
	}

	if _, err := fmt.Fprintf(w, "%s: %d violation(s)\n", result.File, len(result.Violations)); err != nil {
		return err
	}
	for _, v := range result.Violations {
		if _, err := fmt.Fprintf(w, "  %s\n", v.Message); err != nil {
			return err
		}
	}
	return nil
}
