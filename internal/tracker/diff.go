package tracker

import (
	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"

	"project-service/internal/domain"
)

// Diff lists the fields of after whose value differs from before, in after's order.
// Fields missing from before are skipped. Pointers compare by pointee.
func Diff(before, after domain.Snapshot) domain.ChangedFields {
	old := lo.SliceToMap(before, func(f domain.FieldValue) (string, any) {
		return f.Name, f.Value
	})

	var changes domain.ChangedFields
	for _, f := range after {
		prev, ok := old[f.Name]
		if !ok {
			continue
		}
		if cmp.Equal(prev, f.Value) {
			continue
		}
		changes = append(changes, domain.FieldChange{Field: f.Name, Old: prev, New: f.Value})
	}
	return changes
}
