// Package openalex normalizes raw OpenAlex API records into the compact
// shapes returned by the tool layer.
//
// OpenAlex returns the same conceptual entity in several envelope shapes
// depending on the endpoint: an institution may arrive nested inside an
// authorship affiliation, as a raw affiliation string with an ID list, or as
// a standalone record. The From* constructors in this package fold all of
// those into one flat representation with empty fields omitted on marshal.
package openalex

import "strings"

// Institution is a normalized institution reference.
type Institution struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Author is a normalized author with any affiliations that were present on
// the source record.
type Author struct {
	Name         string        `json:"name"`
	ID           string        `json:"id,omitempty"`
	Institutions []Institution `json:"institutions,omitempty"`
}

// Work is a normalized paper record.
//
// PreferredFulltextURL picks the most useful retrieval target in order:
// open-access PDF, open-access landing page, primary-location PDF,
// primary-location landing page. It is empty when the record carries none.
type Work struct {
	Title                string            `json:"title"`
	IDs                  map[string]string `json:"ids,omitempty"`
	CitedByCount         int               `json:"cited_by_count,omitempty"`
	Authors              []Author          `json:"authors,omitempty"`
	PublicationDate      string            `json:"publication_date,omitempty"`
	PreferredFulltextURL string            `json:"preferred_fulltext_url,omitempty"`
}

// namedRecord is the {id, display_name} pair OpenAlex nests inside
// authorships and affiliations.
type namedRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// institutionRecord covers the three envelope shapes an institution arrives
// in. The pointer fields distinguish "key absent" from "key empty" so the
// shape detection mirrors the API's envelopes.
type institutionRecord struct {
	Institution          *namedRecord `json:"institution"`
	RawAffiliationString *string      `json:"raw_affiliation_string"`
	InstitutionIDs       []string     `json:"institution_ids"`
	ID                   string       `json:"id"`
	DisplayName          string       `json:"display_name"`
}

func (r institutionRecord) normalize() Institution {
	switch {
	case r.Institution != nil:
		return Institution{Name: r.Institution.DisplayName, ID: r.Institution.ID}
	case r.RawAffiliationString != nil:
		inst := Institution{Name: *r.RawAffiliationString}
		if len(r.InstitutionIDs) > 0 {
			inst.ID = r.InstitutionIDs[0]
		}
		return inst
	default:
		return Institution{Name: r.DisplayName, ID: r.ID}
	}
}

// authorRecord covers both a standalone author record and an authorship
// entry nested in a work, where the identity sits under "author".
type authorRecord struct {
	Author       *namedRecord        `json:"author"`
	ID           string              `json:"id"`
	DisplayName  string              `json:"display_name"`
	Affiliations []institutionRecord `json:"affiliations"`
}

func (r authorRecord) normalize() Author {
	a := Author{Name: r.DisplayName, ID: r.ID}
	if r.Author != nil {
		if r.Author.ID != "" {
			a.ID = r.Author.ID
		}
		if r.Author.DisplayName != "" {
			a.Name = r.Author.DisplayName
		}
	}
	for _, aff := range r.Affiliations {
		a.Institutions = append(a.Institutions, aff.normalize())
	}
	return a
}

// location is one of a work's hosting locations.
type location struct {
	PDFURL         string `json:"pdf_url"`
	LandingPageURL string `json:"landing_page_url"`
}

type workRecord struct {
	Title           string            `json:"title"`
	DisplayName     string            `json:"display_name"`
	IDs             map[string]string `json:"ids"`
	CitedByCount    int               `json:"cited_by_count"`
	PublicationDate string            `json:"publication_date"`
	BestOALocation  *location         `json:"best_oa_location"`
	PrimaryLocation *location         `json:"primary_location"`
	Authorships     []authorRecord    `json:"authorships"`
}

func (r workRecord) normalize() Work {
	title := r.Title
	if title == "" {
		title = r.DisplayName
	}
	w := Work{
		Title:                title,
		IDs:                  r.IDs,
		CitedByCount:         r.CitedByCount,
		PublicationDate:      r.PublicationDate,
		PreferredFulltextURL: preferredFulltextURL(r.BestOALocation, r.PrimaryLocation),
	}
	for _, auth := range r.Authorships {
		w.Authors = append(w.Authors, auth.normalize())
	}
	return w
}

// preferredFulltextURL prefers the open-access location over the primary
// one, and a direct PDF over a landing page within each.
func preferredFulltextURL(best, primary *location) string {
	if best != nil {
		if best.PDFURL != "" {
			return best.PDFURL
		}
		if best.LandingPageURL != "" {
			return best.LandingPageURL
		}
	}
	if primary != nil {
		if primary.PDFURL != "" {
			return primary.PDFURL
		}
		if primary.LandingPageURL != "" {
			return primary.LandingPageURL
		}
	}
	return ""
}

// SanitizeSearchText removes commas and collapses runs of whitespace, since
// commas are separators in OpenAlex filter expressions and would split a
// search term into spurious filter clauses.
func SanitizeSearchText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, ",", " ")
	return strings.Join(strings.Fields(s), " ")
}
