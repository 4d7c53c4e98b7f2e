package target

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Target is the unit of routable inventory: a destination URL with a
// bid value, an accept predicate, and a daily acceptance cap.
type Target struct {
	ID               string  `json:"id"`
	URL              string  `json:"url"`
	Value            float64 `json:"value"`
	MaxAcceptsPerDay int     `json:"maxAcceptsPerDay"`
	Accept           Accept  `json:"accept"`
}

// Accept is a conjunction over named attributes; a request matches iff
// its value for every named attribute lies in that attribute's set.
type Accept map[string]ValueSet

// Values flattens the predicate into attribute -> allowed values. The
// result is a deep copy safe to hold across mutations.
func (a Accept) Values() map[string][]string {
	if len(a) == 0 {
		return nil
	}
	out := make(map[string][]string, len(a))
	for attr, vs := range a {
		out[attr] = append([]string(nil), vs.In...)
	}
	return out
}

// ValueSet is the enumerated set of acceptable values for one
// attribute, wire-encoded as {"$in": [...]}.
type ValueSet struct {
	In []string `json:"$in"`
}

// UnmarshalJSON accepts both strings and bare numbers inside $in;
// stored records carry either shape.
func (v *ValueSet) UnmarshalJSON(data []byte) error {
	var aux struct {
		In []any `json:"$in"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	v.In = make([]string, 0, len(aux.In))
	for _, e := range aux.In {
		switch x := e.(type) {
		case string:
			v.In = append(v.In, x)
		case json.Number:
			v.In = append(v.In, x.String())
		default:
			return fmt.Errorf("$in entry %v: expected string or number", e)
		}
	}
	return nil
}

// UnmarshalJSON tolerates the loose field shapes found in stored
// records and client payloads: id as string or number, value and
// maxAcceptsPerDay as number or numeric string.
func (t *Target) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID               json.RawMessage `json:"id"`
		URL              string          `json:"url"`
		Value            json.RawMessage `json:"value"`
		MaxAcceptsPerDay json.RawMessage `json:"maxAcceptsPerDay"`
		Accept           Accept          `json:"accept"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if len(aux.ID) > 0 {
		if t.ID, err = decodeString(aux.ID); err != nil {
			return fmt.Errorf("id: %w", err)
		}
	}
	t.URL = aux.URL
	if len(aux.Value) > 0 {
		if t.Value, err = decodeFloat(aux.Value); err != nil {
			return fmt.Errorf("value: %w", err)
		}
	}
	if len(aux.MaxAcceptsPerDay) > 0 {
		if t.MaxAcceptsPerDay, err = decodeInt(aux.MaxAcceptsPerDay); err != nil {
			return fmt.Errorf("maxAcceptsPerDay: %w", err)
		}
	}
	t.Accept = aux.Accept
	return nil
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%s: expected string or number", raw)
}

func decodeFloat(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return 0, fmt.Errorf("%s: expected number or numeric string", raw)
}

func decodeInt(raw json.RawMessage) (int, error) {
	f, err := decodeFloat(raw)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
