// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &c, nil
}

// Write encodes the catalog with workers ordered by task type.
func (c *Catalog) Write(w io.Writer) error {
	sort.Slice(c.Workers, func(i, j int) bool { return c.Workers[i].TaskType < c.Workers[j].TaskType })
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func (c *Catalog) Find(taskType string) (Worker, bool) {
	for _, w := range c.Workers {
		if w.TaskType == taskType {
			return w, true
		}
	}
	return Worker{}, false
}
