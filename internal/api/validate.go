package api

import (
	"errors"
	"fmt"
	"net/url"

	"ad-routing-service/internal/engine"
	"ad-routing-service/internal/target"
)

// Field validation lives at the HTTP edge; the core trusts its input.

func validateTarget(t *target.Target) error {
	if t.ID == "" {
		return errors.New("invalid target id")
	}
	if err := validateURL(t.URL); err != nil {
		return err
	}
	if t.Value < 0 {
		return errors.New("invalid target value")
	}
	if t.MaxAcceptsPerDay < 0 {
		return errors.New("invalid target maxAcceptsPerDay")
	}
	if t.Accept == nil {
		return errors.New("invalid target accept")
	}
	for _, attr := range []string{engine.AttrGeoState, engine.AttrHour} {
		if _, ok := t.Accept[attr]; !ok {
			return fmt.Errorf("invalid target accept: missing %s", attr)
		}
	}
	return nil
}

func validatePatch(p *target.Patch) error {
	if p.IsZero() {
		return errors.New("empty body")
	}
	if p.URL != nil {
		if err := validateURL(*p.URL); err != nil {
			return err
		}
	}
	if p.Value != nil && *p.Value < 0 {
		return errors.New("invalid target value")
	}
	if p.MaxAcceptsPerDay != nil && *p.MaxAcceptsPerDay < 0 {
		return errors.New("invalid target maxAcceptsPerDay")
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("invalid target url")
	}
	return nil
}
