package domain

import (
	"fmt"
	"strings"
)

// Wildcard is the CPE "ANY" token.
const Wildcard = "*"

const (
	cpe23Prefix     = "cpe:2.3:"
	cpe23FieldCount = 13
	shortFieldCount = 10
)

// ProductFields is the decomposition of a CPE name used for matching.
// Vendor and ProductName identify the product family; the remaining eight
// fields are the versioned attributes, each a literal token or Wildcard.
type ProductFields struct {
	Vendor      string `json:"vendor"`
	ProductName string `json:"product_name"`
	Version     string `json:"version"`
	Update      string `json:"update"`
	Edition     string `json:"edition"`
	Language    string `json:"language"`
	SWEdition   string `json:"sw_edition"`
	TargetSW    string `json:"target_sw"`
	TargetHW    string `json:"target_hw"`
	Other       string `json:"other"`
}

// Versioned returns the eight versioned fields in CPE order.
func (f ProductFields) Versioned() [8]string {
	return [8]string{
		f.Version, f.Update, f.Edition, f.Language,
		f.SWEdition, f.TargetSW, f.TargetHW, f.Other,
	}
}

// AnyVersion returns a copy of f with every versioned field set to Wildcard.
func (f ProductFields) AnyVersion() ProductFields {
	return ProductFields{
		Vendor:      f.Vendor,
		ProductName: f.ProductName,
		Version:     Wildcard,
		Update:      Wildcard,
		Edition:     Wildcard,
		Language:    Wildcard,
		SWEdition:   Wildcard,
		TargetSW:    Wildcard,
		TargetHW:    Wildcard,
		Other:       Wildcard,
	}
}

// ParseCPE decomposes a CPE name. Both the formatted string binding
// (cpe:2.3:part:vendor:product:version:...) and the short form
// (vendor:product:version:update:edition:language:sw_edition:target_sw:target_hw:other)
// are accepted. Escaped colons ("\:") stay inside their field.
func ParseCPE(name string) (ProductFields, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ProductFields{}, fmt.Errorf("%w: empty name", ErrMalformedCPE)
	}

	parts := splitCPE(name)

	var fields []string
	switch {
	case strings.HasPrefix(strings.ToLower(name), cpe23Prefix):
		if len(parts) != cpe23FieldCount {
			return ProductFields{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedCPE, name, len(parts))
		}
		fields = parts[3:]
	case len(parts) == shortFieldCount:
		fields = parts
	default:
		return ProductFields{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedCPE, name, len(parts))
	}

	for i, f := range fields {
		if f == "" {
			return ProductFields{}, fmt.Errorf("%w: %q has an empty field at position %d", ErrMalformedCPE, name, i)
		}
	}

	return ProductFields{
		Vendor:      strings.ToLower(fields[0]),
		ProductName: fields[1],
		Version:     fields[2],
		Update:      fields[3],
		Edition:     fields[4],
		Language:    fields[5],
		SWEdition:   fields[6],
		TargetSW:    fields[7],
		TargetHW:    fields[8],
		Other:       fields[9],
	}, nil
}

// VendorOfCPE returns the lower-cased vendor segment of a CPE name, or ""
// when the name cannot be parsed.
func VendorOfCPE(name string) string {
	f, err := ParseCPE(name)
	if err != nil {
		return ""
	}
	return f.Vendor
}

func splitCPE(name string) []string {
	var (
		parts []string
		cur   strings.Builder
	)
	escaped := false
	for _, r := range name {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			cur.WriteRune(r)
			escaped = true
		case r == ':':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())
	return parts
}
