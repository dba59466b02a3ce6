// Package documents holds the durable, ordered collection of uploaded
// reference documents.
package documents

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies a document's role in a proposal.
type Category string

const (
	BusinessCapability Category = "BusinessCapability"
	ProposalTemplate   Category = "ProposalTemplate"
	RfiRfp             Category = "RfiRfp"
)

// Categories lists every valid category in display order.
var Categories = []Category{BusinessCapability, ProposalTemplate, RfiRfp}

var categoryLabels = map[Category]string{
	BusinessCapability: "Business Capability",
	ProposalTemplate:   "Proposal Template",
	RfiRfp:             "RFI/RFP",
}

// ErrInvalidCategory is returned when a category string matches neither an
// identifier nor a label.
var ErrInvalidCategory = errors.New("invalid document category")

// ErrInvalidRecord is returned when a record is missing its name or content.
var ErrInvalidRecord = errors.New("invalid document")

// Label returns the human-readable name, which is also the persisted form.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory accepts an identifier ("RfiRfp") or a label ("RFI/RFP").
// Matching is case-insensitive.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.Label()) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Record is one uploaded file. Records are never mutated after creation.
type Record struct {
	ID         int64
	Name       string
	Category   Category
	UploadedAt time.Time
	Data       string // codec encoding of the file bytes
}

// validate checks the record invariant.
func (r Record) validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	case !r.Category.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidCategory, r.Category)
	case r.Data == "":
		return fmt.Errorf("%w: content is required", ErrInvalidRecord)
	}
	return nil
}

// recordJSON is the persisted shape: {id, name, type, date, data}.
type recordJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Date string `json:"date"`
	Data string `json:"data"`
}

// legacyDateLayouts are accepted when reading dates written by older clients.
var legacyDateLayouts = []string{"1/2/2006", "2006-01-02"}

func (r Record) MarshalJSON() ([]byte, error) {
	date := ""
	if !r.UploadedAt.IsZero() {
		date = r.UploadedAt.Format(time.RFC3339)
	}
	return json.Marshal(recordJSON{
		ID:   r.ID,
		Name: r.Name,
		Type: r.Category.Label(),
		Date: date,
		Data: r.Data,
	})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	cat, err := ParseCategory(raw.Type)
	if err != nil {
		// Keep the raw value so validate reports it.
		cat = Category(raw.Type)
	}
	*r = Record{
		ID:         raw.ID,
		Name:       raw.Name,
		Category:   cat,
		UploadedAt: parseDate(raw.Date),
		Data:       raw.Data,
	}
	return nil
}

func parseDate(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
