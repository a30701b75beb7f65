package openalex

import (
	"encoding/json"
	"fmt"
)

// Page is one page of normalized search results plus pagination metadata.
// HasNext is true only when the reported total provably exceeds the records
// covered by this and all earlier pages.
type Page[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count,omitempty"`
	PerPage    int  `json:"per_page"`
	Page       int  `json:"page"`
	HasNext    bool `json:"has_next,omitempty"`
}

// NewPage assembles a [Page] and derives HasNext from the total.
func NewPage[T any](data []T, total, perPage, pageNum int) Page[T] {
	return Page[T]{
		Data:       data,
		TotalCount: total,
		PerPage:    perPage,
		Page:       pageNum,
		HasNext:    total > perPage*pageNum,
	}
}

// List is an unpaginated list of entity IDs, used for a work's citation
// graph edges.
type List struct {
	Data  []string `json:"data"`
	Count int      `json:"count"`
}

// paged is the common OpenAlex list envelope: a meta block with the total
// count and a results array.
type paged[R any] struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []R `json:"results"`
}

func parsePaged[R, T any](body []byte, normalize func(R) T) ([]T, int, error) {
	var env paged[R]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("openalex: decode result page: %w", err)
	}
	out := make([]T, 0, len(env.Results))
	for _, rec := range env.Results {
		out = append(out, normalize(rec))
	}
	return out, env.Meta.Count, nil
}

// ParseWorksPage decodes a /works list response into normalized [Work]
// records and the reported total count.
func ParseWorksPage(body []byte) ([]Work, int, error) {
	return parsePaged(body, workRecord.normalize)
}

// ParseAuthorsPage decodes an /authors list response.
func ParseAuthorsPage(body []byte) ([]Author, int, error) {
	return parsePaged(body, authorRecord.normalize)
}

// ParseInstitutionsPage decodes an /institutions list response.
func ParseInstitutionsPage(body []byte) ([]Institution, int, error) {
	return parsePaged(body, institutionRecord.normalize)
}

// WorkGraph holds the citation-graph edges of one work record.
type WorkGraph struct {
	ReferencedWorks []string `json:"referenced_works"`
	RelatedWorks    []string `json:"related_works"`
}

// ParseWorkGraph decodes a single /works/{id} response down to its citation
// edges.
func ParseWorkGraph(body []byte) (WorkGraph, error) {
	var g WorkGraph
	if err := json.Unmarshal(body, &g); err != nil {
		return WorkGraph{}, fmt.Errorf("openalex: decode work record: %w", err)
	}
	return g, nil
}
