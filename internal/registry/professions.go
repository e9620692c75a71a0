package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Profession is one entry of the bookable-specialty catalog.
type Profession struct {
	ID         int
	Code       string
	Name       string
	ShowInHelp bool
}

// ProfessionCatalog holds the specialty list loaded at startup.
type ProfessionCatalog struct {
	professions []Profession
	byID        map[int]Profession
}

// LoadProfessionCatalog reads the catalog from a CSV file with the
// columns show_in_help,code,name,id.
func LoadProfessionCatalog(path string) (*ProfessionCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to open profession catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseProfessionCatalog(f)
}

// ParseProfessionCatalog decodes catalog CSV from a reader. The first
// row is a header and is skipped.
func ParseProfessionCatalog(r io.Reader) (*ProfessionCatalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("registry: failed to read profession catalog: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("registry: profession catalog is empty")
	}

	catalog := &ProfessionCatalog{byID: make(map[int]Profession)}
	for i, row := range rows[1:] {
		id, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("registry: profession catalog row %d: bad id %q", i+2, row[3])
		}
		p := Profession{
			ShowInHelp: strings.TrimSpace(row[0]) == "1",
			Code:       strings.TrimSpace(row[1]),
			Name:       strings.TrimSpace(row[2]),
			ID:         id,
		}
		catalog.professions = append(catalog.professions, p)
		catalog.byID[p.ID] = p
	}
	return catalog, nil
}

// All returns every profession in catalog order.
func (c *ProfessionCatalog) All() []Profession {
	return c.professions
}

// ByID looks a profession up by its registry id.
func (c *ProfessionCatalog) ByID(id int) (Profession, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// HelpNames returns the names advertised in the help prompt.
func (c *ProfessionCatalog) HelpNames() []string {
	var names []string
	for _, p := range c.professions {
		if p.ShowInHelp {
			names = append(names, p.Name)
		}
	}
	return names
}
