package bundle

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/iter"
)

// UnitKind distinguishes loadable units
type UnitKind int

const (
	// UnitBundle is a bundle file loaded directly
	UnitBundle UnitKind = iota
	// UnitNested is a nested archive inside a bundle
	UnitNested
)

func (k UnitKind) String() string {
	switch k {
	case UnitBundle:
		return "bundle"
	case UnitNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Unit is one element of an assembled classpath
type Unit struct {
	Kind    UnitKind
	Address Address
	Stored  bool
}

// String returns the bundle file for direct units and the nested archive
// address otherwise.
func (u Unit) String() string {
	if u.Kind == UnitBundle {
		return u.Address.Bundle
	}
	return u.Address.String()
}

// SplitClasspath splits an OS path list and makes entries absolute
// against the working directory.
func SplitClasspath(classpath string) []string {
	var out []string
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	for _, elem := range filepath.SplitList(classpath) {
		if elem == "" {
			continue
		}
		if !filepath.IsAbs(elem) {
			elem = filepath.Join(wd, elem)
		}
		out = append(out, elem)
	}
	return out
}

// Assemble expands candidate bundles into loadable units: each bundle
// itself, followed by one unit per nested archive in directory order.
// Candidates without the nested suffix are ignored. A candidate that
// cannot be scanned is logged and skipped.
func Assemble(r *Resolver, candidates []string) []Unit {
	suffix := r.Suffix()

	expanded := iter.Map(candidates, func(candidate *string) []Unit {
		path := *candidate
		if !strings.HasSuffix(path, suffix) {
			return nil
		}

		idx, err := r.Scan(path)
		if err != nil {
			slog.Error("Unable to process classpath entry", "path", path, "error", err)
			return nil
		}

		units := []Unit{{Kind: UnitBundle, Address: Address{Bundle: filepath.Clean(path)}}}
		for _, nested := range idx.Declared() {
			units = append(units, Unit{
				Kind:    UnitNested,
				Address: NewAddress(path, nested.Name),
				Stored:  nested.Stored,
			})
		}

		slog.Debug("Classpath entry processed", "path", path, "nested", len(units)-1)
		return units
	})

	var out []Unit
	for _, units := range expanded {
		out = append(out, units...)
	}
	return out
}
