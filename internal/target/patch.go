package target

import (
	"encoding/json"
	"fmt"
)

// Patch is a partial change to a target. Merge policy is fixed per
// field, declared here rather than inferred from value shapes:
//
//	url              replace
//	value            replace
//	maxAcceptsPerDay replace
//	accept           merge key-by-key (a patched attribute replaces
//	                 only that attribute's value set)
//
// Nil means the field is untouched. id is immutable and not patchable.
type Patch struct {
	URL              *string
	Value            *float64
	MaxAcceptsPerDay *int
	Accept           Accept
}

func (p *Patch) UnmarshalJSON(data []byte) error {
	var aux struct {
		URL              *string         `json:"url"`
		Value            json.RawMessage `json:"value"`
		MaxAcceptsPerDay json.RawMessage `json:"maxAcceptsPerDay"`
		Accept           Accept          `json:"accept"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.URL = aux.URL
	p.Accept = aux.Accept
	if len(aux.Value) > 0 {
		v, err := decodeFloat(aux.Value)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		p.Value = &v
	}
	if len(aux.MaxAcceptsPerDay) > 0 {
		n, err := decodeInt(aux.MaxAcceptsPerDay)
		if err != nil {
			return fmt.Errorf("maxAcceptsPerDay: %w", err)
		}
		p.MaxAcceptsPerDay = &n
	}
	return nil
}

// IsZero reports whether the patch touches nothing.
func (p Patch) IsZero() bool {
	return p.URL == nil && p.Value == nil && p.MaxAcceptsPerDay == nil && p.Accept == nil
}

// Apply merges the patch into t per the policy above and reports which
// of the index-relevant fields changed.
func (p Patch) Apply(t *Target) (acceptTouched, valueTouched bool) {
	if p.URL != nil {
		t.URL = *p.URL
	}
	if p.Value != nil {
		valueTouched = t.Value != *p.Value
		t.Value = *p.Value
	}
	if p.MaxAcceptsPerDay != nil {
		t.MaxAcceptsPerDay = *p.MaxAcceptsPerDay
	}
	if p.Accept != nil {
		acceptTouched = true
		merged := make(Accept, len(t.Accept)+len(p.Accept))
		for attr, vs := range t.Accept {
			merged[attr] = vs
		}
		for attr, vs := range p.Accept {
			merged[attr] = vs
		}
		t.Accept = merged
	}
	return acceptTouched, valueTouched
}
