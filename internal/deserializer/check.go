package deserializer

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/objgraph/internal/revive"
)

// Check reports the problems of doc that deserialization would hit before
// loading any module: descriptors that are not objects, label and
// descriptor shapes that disagree, montage objects without a location,
// locations that are not module ids and values blocks that are not
// objects. Errors are *revive.Error, in label order.
func Check(doc map[string]any) []error {
	var errs []error
	for _, label := range sortedLabels(doc) {
		if err := checkDescriptor(label, doc[label]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func checkDescriptor(label string, raw any) error {
	desc, ok := raw.(map[string]any)
	if !ok {
		return &revive.Error{
			Code:    revive.ErrCodeInvalidDescriptor,
			Label:   label,
			Message: fmt.Sprintf("descriptor of %q must be an object, got %s", label, revive.Classify(raw)),
		}
	}

	_, isAlias := desc["alias"]
	if err := revive.CheckLabel(label, isAlias); err != nil {
		return err
	}

	_, isValue := desc["value"]
	switch {
	case isValue, isAlias, len(desc) == 0, revive.Classify(desc).IsTagged():
		return nil
	}

	loc := locationOf(desc)
	if loc == nil || loc == "" {
		data, _ := json.Marshal(desc)
		return &revive.Error{
			Code:  revive.ErrCodeMissingLocation,
			Label: label,
			Message: fmt.Sprintf("Error deserializing %s, might need \"prototype\" or \"object\" on label %q",
				data, label),
		}
	}
	if _, ok := loc.(string); !ok {
		return &revive.Error{
			Code:    revive.ErrCodeInvalidDescriptor,
			Label:   label,
			Message: fmt.Sprintf("Property 'object' of the object with the label '%s' must be a module id", label),
		}
	}

	for _, block := range []string{"values", "properties"} {
		if v, ok := desc[block]; ok && v != nil {
			if _, ok := v.(map[string]any); !ok {
				return &revive.Error{
					Code:    revive.ErrCodeInvalidDescriptor,
					Label:   label,
					Message: fmt.Sprintf("%s of %q must be an object", block, label),
				}
			}
		}
	}
	return nil
}
