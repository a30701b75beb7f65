package scholar

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scholarscope/scholarscope/internal/observe"
	"github.com/scholarscope/scholarscope/internal/openalex"
	"github.com/scholarscope/scholarscope/internal/requestapi"
)

// searchParams builds the common list-endpoint query for one page.
func (s *Server) searchParams(filter, sortBy string, page int) requestapi.Map {
	return requestapi.Map{
		"filter":   filter,
		"sort":     sortBy + ":desc",
		"page":     page,
		"per_page": s.cfg.OpenAlex.PerPage,
	}
}

// fetchPage runs one paged list request and hands the body to parse.
// A not-found sentinel is reported through emptyErr, same as an empty
// result set.
func fetchPage[T any](
	ctx context.Context,
	s *Server,
	path string,
	params requestapi.Map,
	parse func([]byte) ([]T, int, error),
	emptyErr error,
) (openalex.Page[T], error) {
	var zero openalex.Page[T]

	client, err := s.openAlexClient()
	if err != nil {
		return zero, err
	}
	defer client.Close()

	res, err := client.Get(ctx, path, params, nil)
	if err != nil {
		return zero, requestError(err)
	}
	if res.NotFound {
		return zero, emptyErr
	}

	records, total, err := parse(res.Body)
	if err != nil {
		return zero, err
	}
	if len(records) == 0 {
		return zero, emptyErr
	}

	page, _ := params["page"].(int)
	return openalex.NewPage(records, total, s.cfg.OpenAlex.PerPage, page), nil
}

type searchPapersInput struct {
	Query           string `json:"query" jsonschema:"the search term or keywords to look for in the papers"`
	SearchBy        string `json:"search_by,omitempty" jsonschema:"the field to search in: default, title, or title_and_abstract"`
	SortBy          string `json:"sort_by,omitempty" jsonschema:"the sorting criteria: relevance_score, cited_by_count, or publication_date"`
	InstitutionName string `json:"institution_name,omitempty" jsonschema:"an optional institution or affiliation name to filter search results"`
	AuthorID        string `json:"author_id,omitempty" jsonschema:"an optional OpenAlex Author ID to filter search results, e.g. https://openalex.org/A123456789"`
	Page            int    `json:"page,omitempty" jsonschema:"the page number of the results to retrieve (default 1)"`
}

func (s *Server) searchPapers(ctx context.Context, _ *mcp.CallToolRequest, in searchPapersInput) (*mcp.CallToolResult, openalex.Page[openalex.Work], error) {
	var zero openalex.Page[openalex.Work]

	searchBy, err := pickEnum("search_by", in.SearchBy, "default", "default", "title", "title_and_abstract")
	if err != nil {
		return nil, zero, err
	}
	sortBy, err := pickEnum("sort_by", in.SortBy, "relevance_score", "relevance_score", "cited_by_count", "publication_date")
	if err != nil {
		return nil, zero, err
	}
	page := max(1, in.Page)

	query := openalex.SanitizeSearchText(in.Query)
	institution := openalex.SanitizeSearchText(in.InstitutionName)

	filter := fmt.Sprintf("%s.search:%q", searchBy, query)
	if institution != "" {
		filter += fmt.Sprintf(",raw_affiliation_strings.search:%q", institution)
	}
	if in.AuthorID != "" {
		filter += ",authorships.author.id:" + in.AuthorID
	}

	observe.Logger(ctx).Info("searching for papers",
		"query", query, "search_by", searchBy, "sort_by", sortBy, "page", page)

	result, err := fetchPage(ctx, s, "/works", s.searchParams(filter, sortBy, page),
		openalex.ParseWorksPage, errors.New("no works found with the query"))
	return nil, result, err
}

type searchAuthorsInput struct {
	Query         string `json:"query" jsonschema:"the name to search authors by"`
	SortBy        string `json:"sort_by,omitempty" jsonschema:"the sorting criteria: relevance_score or cited_by_count"`
	InstitutionID string `json:"institution_id,omitempty" jsonschema:"an optional OpenAlex Institution ID to filter search results, e.g. https://openalex.org/I123456789"`
	Page          int    `json:"page,omitempty" jsonschema:"the page number of the results to retrieve (default 1)"`
}

func (s *Server) searchAuthors(ctx context.Context, _ *mcp.CallToolRequest, in searchAuthorsInput) (*mcp.CallToolResult, openalex.Page[openalex.Author], error) {
	var zero openalex.Page[openalex.Author]

	sortBy, err := pickEnum("sort_by", in.SortBy, "relevance_score", "relevance_score", "cited_by_count")
	if err != nil {
		return nil, zero, err
	}
	page := max(1, in.Page)

	query := openalex.SanitizeSearchText(in.Query)
	filter := fmt.Sprintf("default.search:%q", query)
	if in.InstitutionID != "" {
		filter += fmt.Sprintf(",affiliations.institution.id:%q", in.InstitutionID)
	}

	observe.Logger(ctx).Info("searching for authors",
		"query", query, "sort_by", sortBy, "page", page, "institution_id", in.InstitutionID)

	result, err := fetchPage(ctx, s, "/authors", s.searchParams(filter, sortBy, page),
		openalex.ParseAuthorsPage, errors.New("no authors found with the query"))
	return nil, result, err
}

type searchInstitutionsInput struct {
	Query  string `json:"query" jsonschema:"the name to search institutions by"`
	SortBy string `json:"sort_by,omitempty" jsonschema:"the sorting criteria: relevance_score or cited_by_count"`
	Page   int    `json:"page,omitempty" jsonschema:"the page number of the results to retrieve (default 1)"`
}

func (s *Server) searchInstitutions(ctx context.Context, _ *mcp.CallToolRequest, in searchInstitutionsInput) (*mcp.CallToolResult, openalex.Page[openalex.Institution], error) {
	var zero openalex.Page[openalex.Institution]

	sortBy, err := pickEnum("sort_by", in.SortBy, "relevance_score", "relevance_score", "cited_by_count")
	if err != nil {
		return nil, zero, err
	}
	page := max(1, in.Page)

	query := openalex.SanitizeSearchText(in.Query)
	filter := fmt.Sprintf("default.search:%q", query)

	observe.Logger(ctx).Info("searching for institutions",
		"query", query, "sort_by", sortBy, "page", page)

	result, err := fetchPage(ctx, s, "/institutions", s.searchParams(filter, sortBy, page),
		openalex.ParseInstitutionsPage, errors.New("no institutions found with the query"))
	return nil, result, err
}

type papersByAuthorInput struct {
	AuthorID string `json:"author_id" jsonschema:"the OpenAlex Author ID of the target author, e.g. https://openalex.org/A123456789"`
	SortBy   string `json:"sort_by,omitempty" jsonschema:"the sorting criteria: cited_by_count or publication_date"`
	Page     int    `json:"page,omitempty" jsonschema:"the page number of the results to retrieve (default 1)"`
}

func (s *Server) papersByAuthor(ctx context.Context, _ *mcp.CallToolRequest, in papersByAuthorInput) (*mcp.CallToolResult, openalex.Page[openalex.Work], error) {
	var zero openalex.Page[openalex.Work]

	sortBy, err := pickEnum("sort_by", in.SortBy, "cited_by_count", "cited_by_count", "publication_date")
	if err != nil {
		return nil, zero, err
	}
	page := max(1, in.Page)
	filter := "authorships.author.id:" + in.AuthorID

	observe.Logger(ctx).Info("searching for papers by author",
		"author_id", in.AuthorID, "sort_by", sortBy, "page", page)

	result, err := fetchPage(ctx, s, "/works", s.searchParams(filter, sortBy, page),
		openalex.ParseWorksPage, fmt.Errorf("no works found for author_id=%s", in.AuthorID))
	return nil, result, err
}

type worksCitingInput struct {
	PaperID string `json:"paper_id" jsonschema:"the OpenAlex Work ID of the target paper, e.g. https://openalex.org/W123456789"`
	SortBy  string `json:"sort_by,omitempty" jsonschema:"the sorting criteria: cited_by_count or publication_date"`
	Page    int    `json:"page,omitempty" jsonschema:"the page number of the results to retrieve (default 1)"`
}

func (s *Server) worksCiting(ctx context.Context, _ *mcp.CallToolRequest, in worksCitingInput) (*mcp.CallToolResult, openalex.Page[openalex.Work], error) {
	var zero openalex.Page[openalex.Work]

	sortBy, err := pickEnum("sort_by", in.SortBy, "cited_by_count", "cited_by_count", "publication_date")
	if err != nil {
		return nil, zero, err
	}
	page := max(1, in.Page)
	filter := "cites:" + in.PaperID

	observe.Logger(ctx).Info("searching for works citing paper",
		"paper_id", in.PaperID, "sort_by", sortBy, "page", page)

	result, err := fetchPage(ctx, s, "/works", s.searchParams(filter, sortBy, page),
		openalex.ParseWorksPage, fmt.Errorf("no cites found for paper_id=%s", in.PaperID))
	return nil, result, err
}
