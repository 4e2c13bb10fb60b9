package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// ErrNoPatterns is returned when a CUE value declares no patterns.
var ErrNoPatterns = errors.New("no patterns found")

// LoadPatterns loads every .cue file of dir as one CUE instance and
// compiles each field of its "pattern" struct. It stops at the first error.
func LoadPatterns(dir string) ([]Compiled, error) {
	v, err := BuildDir(dir)
	if err != nil {
		return nil, err
	}
	compiled, errs := CompileAll(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return compiled, nil
}

// BuildDir loads and builds the CUE package in dir.
func BuildDir(dir string) (cue.Value, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return cue.Value{}, fmt.Errorf("patterns directory: %w", err)
	}
	if !info.IsDir() {
		return cue.Value{}, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, errors.New("no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// CompileAll compiles every pattern declared under "pattern" in v and
// collects all errors rather than stopping at the first.
func CompileAll(v cue.Value) ([]Compiled, []error) {
	patternsVal := v.LookupPath(cue.ParsePath("pattern"))
	if !patternsVal.Exists() {
		return nil, []error{ErrNoPatterns}
	}
	iter, err := patternsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		compiled []Compiled
		errs     []error
	)
	for iter.Next() {
		c, err := CompilePattern(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("pattern %s: %w", iter.Label(), err))
			continue
		}
		compiled = append(compiled, c)
	}
	if len(compiled) == 0 && len(errs) == 0 {
		errs = append(errs, ErrNoPatterns)
	}
	return compiled, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
