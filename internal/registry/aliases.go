package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// FacilityAliases maps facility OIDs to the short spoken names users
// actually say, e.g. "поликлиника имени Нигинского". The official
// registry names are too formal to match against voice input alone.
type FacilityAliases map[string]string

// LoadFacilityAliases reads the OID → alias table from a JSON file.
// A missing path yields an empty table rather than an error.
func LoadFacilityAliases(path string) (FacilityAliases, error) {
	if path == "" {
		return FacilityAliases{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FacilityAliases{}, nil
		}
		return nil, fmt.Errorf("registry: failed to read facility aliases: %w", err)
	}

	var aliases FacilityAliases
	if err := json.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("registry: failed to decode facility aliases: %w", err)
	}
	return aliases, nil
}

// For returns the alias for a facility OID, or "" when none is known.
func (a FacilityAliases) For(oid string) string {
	return a[oid]
}
