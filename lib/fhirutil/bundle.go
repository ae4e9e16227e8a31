package fhirutil

import (
	"encoding/json"
	"fmt"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// VisitBundleResources decodes each entry resource in the bundle as ResType and
// passes it to the visitor. Changes the visitor makes to the resource are
// written back to the entry. Entries without a resource are skipped.
func VisitBundleResources[ResType any](bundle *fhir.Bundle, visitor func(resource *ResType) error) error {
	for i, entry := range bundle.Entry {
		if entry.Resource == nil {
			continue
		}
		var res ResType
		if err := json.Unmarshal(entry.Resource, &res); err != nil {
			return fmt.Errorf("decode bundle entry as %T: %w", res, err)
		}
		if err := visitor(&res); err != nil {
			return fmt.Errorf("visit bundle entry %T: %w", res, err)
		}
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("re-encode bundle entry %T: %w", res, err)
		}
		entry.Resource = data
		bundle.Entry[i] = entry
	}
	return nil
}
