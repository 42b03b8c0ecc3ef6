package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"call-review/pkg/models"

	"gopkg.in/yaml.v3"
)

// FileChecklists loads checklist definitions from local YAML files, for dev
// and offline use. <dir>/<checklistID>.yaml holds one checklist.
type FileChecklists struct {
	dir string
}

func NewFileChecklists(dir string) *FileChecklists {
	return &FileChecklists{dir: dir}
}

type yamlCriterion struct {
	ID       string `yaml:"id"`
	Text     string `yaml:"text"`
	Required bool   `yaml:"required"`
}

type yamlCategory struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Criteria []yamlCriterion `yaml:"criteria"`
}

type yamlChecklist struct {
	Categories []yamlCategory `yaml:"categories"`
}

func (f *FileChecklists) Checklist(ctx context.Context, checklistID string) ([]models.Category, error) {
	path := filepath.Join(f.dir, checklistID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist %s: %w", checklistID, err)
	}

	var doc yamlChecklist
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse checklist %s: %w", checklistID, err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("checklist %s: no categories", checklistID)
	}

	categories := make([]models.Category, 0, len(doc.Categories))
	for _, yc := range doc.Categories {
		cat := models.Category{ID: yc.ID, Name: yc.Name}
		for _, crit := range yc.Criteria {
			cat.Criteria = append(cat.Criteria, models.Criterion{
				ID:         crit.ID,
				CategoryID: yc.ID,
				Text:       crit.Text,
				Required:   crit.Required,
			})
		}
		categories = append(categories, cat)
	}
	return categories, nil
}
