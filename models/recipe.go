package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmdatafocus/clearview_backend/transform"
	"github.com/mmdatafocus/clearview_backend/utils"
)

var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrInvalidRecipe  = errors.New("invalid recipe")
)

// Recipe is a named target schema: the output columns in order, the
// filters applied when a request brings none, and optionally a default
// field map.
type Recipe struct {
	Name           string             `json:"name,omitempty"`
	Version        string             `json:"version,omitempty"`
	Description    string             `json:"description,omitempty"`
	TargetColumns  []string           `json:"targetColumns" validate:"required,min=1,unique,dive,required"`
	DefaultFilters Filters            `json:"defaultFilters,omitempty"`
	FieldMap       transform.FieldMap `json:"fieldMap,omitempty"`
}

func (r *Recipe) Validate() error {
	if err := utils.ValidateStruct(r); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRecipe, r.Name, err)
	}
	if err := r.FieldMap.Validate(); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRecipe, r.Name, err)
	}
	return nil
}

// ValidateFieldMap checks a request- or recipe-supplied field map before any
// row is evaluated.
func ValidateFieldMap(fm transform.FieldMap) error {
	if err := fm.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
	}
	return nil
}

// ParseRecipe decodes and validates one recipe document.
func ParseRecipe(name string, data []byte) (*Recipe, error) {
	var r Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidRecipe, name, err)
	}
	if r.Name == "" {
		r.Name = name
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ParseFieldMapJSON decodes a field map that arrived as a JSON string.
func ParseFieldMapJSON(raw string) (transform.FieldMap, error) {
	var fm transform.FieldMap
	if err := json.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, fmt.Errorf("%w: fieldMap: %v", ErrInvalidRecipe, err)
	}
	if err := ValidateFieldMap(fm); err != nil {
		return nil, err
	}
	return fm, nil
}

// ParseFiltersJSON decodes a filter object that arrived as a JSON string.
func ParseFiltersJSON(raw string) (Filters, error) {
	var f Filters
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("%w: filters: %v", ErrInvalidRecipe, err)
	}
	if f == nil {
		f = Filters{}
	}
	return f, nil
}

type RecipeStore interface {
	Load(ctx context.Context, name string) (*Recipe, error)
}

// FileRecipeStore reads <Dir>/<name>.json on every call.
type FileRecipeStore struct {
	Dir string
}

func NewFileRecipeStore(dir string) *FileRecipeStore {
	return &FileRecipeStore{Dir: dir}
}

func (s *FileRecipeStore) Load(ctx context.Context, name string) (*Recipe, error) {
	if !validRecipeName(name) {
		return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, name)
		}
		return nil, err
	}
	return ParseRecipe(name, data)
}

// List returns the names of every recipe file in Dir.
func (s *FileRecipeStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

func validRecipeName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}

// StaticRecipeStore serves recipes held in memory.
type StaticRecipeStore map[string]*Recipe

func (s StaticRecipeStore) Load(ctx context.Context, name string) (*Recipe, error) {
	r, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, name)
	}
	return r, nil
}
