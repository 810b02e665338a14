package dimension

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/scd2/internal/record"
)

// DefaultName is the dimension used when none is selected.
const DefaultName = "sales"

// Load error codes.
const (
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeUnknown     = "E008" // Dimension name not defined
)

// LoadError represents an error that occurred while locating definitions.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Builtin returns the embedded dimension definitions.
func Builtin() ([]record.Schema, error) {
	ctx := cuecontext.New()
	c, err := NewCompiler(ctx)
	if err != nil {
		return nil, err
	}
	return c.CompileAll(ctx.CompileString(salesCUE, cue.Filename("sales.cue")))
}

// LoadDir loads every CUE file in dir as one instance and compiles its
// dimension definitions.
func LoadDir(dir string) ([]record.Schema, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("dimensions directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing dimensions directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	c, err := NewCompiler(ctx)
	if err != nil {
		return nil, err
	}
	return c.CompileAll(value)
}

// Resolve loads definitions from dir (or the built-ins when dir is empty)
// and returns the one called name (DefaultName when empty).
func Resolve(dir, name string) (record.Schema, error) {
	var (
		schemas []record.Schema
		err     error
	)
	if dir == "" {
		schemas, err = Builtin()
	} else {
		schemas, err = LoadDir(dir)
	}
	if err != nil {
		return record.Schema{}, err
	}

	if name == "" {
		name = DefaultName
	}
	return Lookup(schemas, name)
}

// Lookup finds a schema by dimension name.
func Lookup(schemas []record.Schema, name string) (record.Schema, error) {
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		if s.Name == name {
			return s, nil
		}
		names = append(names, s.Name)
	}
	return record.Schema{}, &LoadError{
		Code:    ErrCodeUnknown,
		Message: fmt.Sprintf("dimension %q not defined (have: %s)", name, strings.Join(names, ", ")),
	}
}

// findCUEFiles lists .cue files directly inside dir.
func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
