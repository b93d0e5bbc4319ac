// Package topology loads the deployment topology from CUE: which RFID
// readers exist, what kind each one is, and the sweep tuning for the
// deployment. The topology file is declarative configuration - readers can
// also be registered at runtime through the API, but a file keeps a branch
// installation reproducible.
package topology

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/shelftrack/internal/engine"
	"github.com/roach88/shelftrack/internal/tag"
)

// Topology is the parsed deployment description.
type Topology struct {
	Readers         []tag.Reader
	SweepInterval   time.Duration
	PresenceTimeout time.Duration
}

// ParseError is a topology validation error carrying the CUE source
// position when one is available.
type ParseError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and parses a topology CUE file.
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Parse(value)
}

// Parse extracts a Topology from a compiled CUE value. The value must hold
// a top-level "topology" struct:
//
//	topology: {
//		sweep: {interval: "1s", presence_timeout: "5s"}
//		readers: {
//			"192.168.1.101": {kind: "shelf", name: "Fiction A"}
//		}
//	}
//
// The sweep struct and both of its fields are optional; engine defaults
// apply where they are absent.
func Parse(v cue.Value) (*Topology, error) {
	root := v.LookupPath(cue.ParsePath("topology"))
	if !root.Exists() {
		return nil, &ParseError{
			Field:   "topology",
			Message: "topology struct is required",
			Pos:     v.Pos(),
		}
	}

	topo := &Topology{
		SweepInterval:   engine.DefaultSweepInterval,
		PresenceTimeout: engine.DefaultPresenceTimeout,
	}

	if err := parseSweep(root, topo); err != nil {
		return nil, err
	}
	if err := parseReaders(root, topo); err != nil {
		return nil, err
	}
	return topo, nil
}

func parseSweep(root cue.Value, topo *Topology) error {
	sweep := root.LookupPath(cue.ParsePath("sweep"))
	if !sweep.Exists() {
		return nil
	}

	if d, err := parseDuration(sweep, "interval"); err != nil {
		return err
	} else if d > 0 {
		topo.SweepInterval = d
	}
	if d, err := parseDuration(sweep, "presence_timeout"); err != nil {
		return err
	} else if d > 0 {
		topo.PresenceTimeout = d
	}
	return nil
}

// parseDuration reads an optional duration field expressed as a Go duration
// string ("1s", "500ms"). Returns 0 when the field is absent.
func parseDuration(v cue.Value, field string) (time.Duration, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	raw, err := fv.String()
	if err != nil {
		return 0, formatCUEError(err)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ParseError{
			Field:   "sweep." + field,
			Message: fmt.Sprintf("invalid duration %q", raw),
			Pos:     fv.Pos(),
		}
	}
	if d <= 0 {
		return 0, &ParseError{
			Field:   "sweep." + field,
			Message: fmt.Sprintf("duration must be positive, got %q", raw),
			Pos:     fv.Pos(),
		}
	}
	return d, nil
}

func parseReaders(root cue.Value, topo *Topology) error {
	readers := root.LookupPath(cue.ParsePath("readers"))
	if !readers.Exists() {
		return nil
	}

	iter, err := readers.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		identity := strings.TrimSpace(iter.Label())
		if identity == "" {
			return &ParseError{
				Field:   "readers",
				Message: "reader identity must not be empty",
				Pos:     iter.Value().Pos(),
			}
		}

		reader, err := parseReader(identity, iter.Value())
		if err != nil {
			return err
		}
		topo.Readers = append(topo.Readers, reader)
	}

	// Identities are map keys in CUE so duplicates cannot occur there, but
	// sorting keeps seeding order deterministic across loads.
	sort.Slice(topo.Readers, func(i, j int) bool {
		return topo.Readers[i].Identity < topo.Readers[j].Identity
	})
	return nil
}

func parseReader(identity string, v cue.Value) (tag.Reader, error) {
	field := "readers." + identity

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return tag.Reader{}, &ParseError{
			Field:   field,
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	rawKind, err := kindVal.String()
	if err != nil {
		return tag.Reader{}, formatCUEError(err)
	}
	kind := tag.ReaderKind(rawKind)
	if !kind.Valid() {
		return tag.Reader{}, &ParseError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unrecognized reader kind %q", rawKind),
			Pos:     kindVal.Pos(),
		}
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return tag.Reader{}, &ParseError{
			Field:   field,
			Message: "name is required",
			Pos:     v.Pos(),
		}
	}
	rawName, err := nameVal.String()
	if err != nil {
		return tag.Reader{}, formatCUEError(err)
	}
	name := tag.NormalizeName(rawName)
	if name == "" {
		return tag.Reader{}, &ParseError{
			Field:   field + ".name",
			Message: "name must not be empty",
			Pos:     nameVal.Pos(),
		}
	}

	return tag.Reader{Identity: identity, Kind: kind, Name: name}, nil
}

// Seeder is the registry write surface topology seeding needs.
type Seeder interface {
	UpsertReader(ctx context.Context, reader tag.Reader) error
}

// Seed writes every topology reader into the registry, overwriting kind and
// name for identities that already exist. The topology file is the source
// of truth for the readers it names.
func (t *Topology) Seed(ctx context.Context, registry Seeder) error {
	for _, r := range t.Readers {
		if err := registry.UpsertReader(ctx, r); err != nil {
			return fmt.Errorf("seeding reader %s: %w", r.Identity, err)
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &ParseError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
