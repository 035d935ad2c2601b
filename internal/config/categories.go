package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"budget/internal/core"
)

type categoriesFile struct {
	Categories []string `yaml:"categories"`
}

// LoadCategories returns the default set when path is empty, otherwise the
// categories listed in the YAML file at path.
func LoadCategories(path string) (core.CategorySet, error) {
	if path == "" {
		return core.NewCategorySet(core.DefaultCategories...), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.CategorySet{}, fmt.Errorf("read categories file: %w", err)
	}
	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return core.CategorySet{}, fmt.Errorf("parse categories file: %w", err)
	}
	names := make([]core.Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		names = append(names, core.Category(c))
	}
	set := core.NewCategorySet(names...)
	if set.Len() == 0 {
		return core.CategorySet{}, fmt.Errorf("categories file %s lists no categories", path)
	}
	return set, nil
}
