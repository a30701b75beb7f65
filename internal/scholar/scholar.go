// Package scholar implements the ScholarScope MCP tool layer: academic
// search operations over the OpenAlex API plus full-text retrieval through
// a reader proxy.
//
// Every tool handler constructs a fresh [requestapi.Client] for its single
// invocation and closes it before returning. Clients are cheap to build, and
// per-call construction keeps the handlers stateless so any number of tool
// calls can run concurrently without shared mutable state.
package scholar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scholarscope/scholarscope/internal/config"
	"github.com/scholarscope/scholarscope/internal/observe"
	"github.com/scholarscope/scholarscope/internal/requestapi"
)

// serverInstructions is surfaced to the connecting MCP host.
const serverInstructions = `When retrieving paper content, always use the 'preferred_fulltext_url' field
and access it via the fetch_fulltext tool for full text retrieval.
Only use other links if 'preferred_fulltext_url' is missing, invalid, or fallback is required.`

// Server wires the ScholarScope tools onto an MCP server.
type Server struct {
	cfg     *config.Config
	metrics *observe.Metrics
	version string
}

// New returns a [Server] backed by cfg. Metrics may be nil, in which case
// the package-level default instruments are used.
func New(cfg *config.Config, metrics *observe.Metrics, version string) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{cfg: cfg, metrics: metrics, version: version}
}

// MCPServer builds the MCP server with all eight ScholarScope tools
// registered. The caller owns running it on a transport.
func (s *Server) MCPServer() *mcp.Server {
	srv := mcp.NewServer(
		&mcp.Implementation{Name: "scholarscope", Version: s.version},
		&mcp.ServerOptions{Instructions: serverInstructions},
	)

	addTool(s, srv, "search_papers",
		"Searches for academic papers using the OpenAlex API. Returns papers with their IDs, authors, citation counts and a preferred full-text URL.",
		s.searchPapers)
	addTool(s, srv, "search_authors",
		"Searches for authors using the OpenAlex API. Returns authors with their IDs and affiliations.",
		s.searchAuthors)
	addTool(s, srv, "search_institutions",
		"Searches for institutions using the OpenAlex API. Returns institutions with their IDs.",
		s.searchInstitutions)
	addTool(s, srv, "papers_by_author",
		"Searches for academic papers by a particular author using the OpenAlex API.",
		s.papersByAuthor)
	addTool(s, srv, "referenced_works_in_paper",
		"Gets referenced works used in the specified paper using the OpenAlex API. May return empty if the paper's full text is inaccessible.",
		s.referencedWorks)
	addTool(s, srv, "related_works_of_paper",
		"Gets works related to the specified paper using the OpenAlex API. May return empty if the paper's full text is inaccessible.",
		s.relatedWorks)
	addTool(s, srv, "works_citing_paper",
		"Retrieves works that cite a given paper from the OpenAlex API.",
		s.worksCiting)
	addTool(s, srv, "fetch_fulltext",
		"Retrieves the contents of a paper or work from its preferred full-text URL and returns the response body as plain text. Paywalled or restricted targets may yield partial content or an access notice.",
		s.fetchFulltext)

	return srv
}

// addTool registers a typed tool handler wrapped with per-call metrics.
func addTool[In, Out any](s *Server, srv *mcp.Server, name, description string, h mcp.ToolHandlerFor[In, Out]) {
	instrumented := func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		res, out, err := h(ctx, req, in)
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordToolCall(ctx, name, status, time.Since(start).Seconds())
		return res, out, err
	}
	mcp.AddTool(srv, &mcp.Tool{Name: name, Description: description}, instrumented)
}

// openAlexClient builds the per-invocation client for the OpenAlex API.
// NotFoundOK is set: a 404 from OpenAlex means "no such entity", which the
// handlers report as an empty result, not a failure.
func (s *Server) openAlexClient() (*requestapi.Client, error) {
	return requestapi.New(requestapi.Config{
		BaseURL:       s.cfg.OpenAlex.BaseURL,
		DefaultParams: requestapi.Map{"mailto": s.cfg.OpenAlex.Mailto},
		Timeout:       s.cfg.OpenAlex.Timeout.Std(),
		NotFoundOK:    true,
		MaxRetries:    s.cfg.OpenAlex.MaxRetries,
		JitterMax:     s.cfg.OpenAlex.JitterMax.Std(),
	})
}

// readerClient builds the per-invocation client for the full-text reader
// proxy.
func (s *Server) readerClient() (*requestapi.Client, error) {
	return requestapi.New(requestapi.Config{
		BaseURL:    s.cfg.Fulltext.ReaderBaseURL,
		Timeout:    s.cfg.Fulltext.Timeout.Std(),
		NotFoundOK: true,
		MaxRetries: s.cfg.OpenAlex.MaxRetries,
		JitterMax:  s.cfg.OpenAlex.JitterMax.Std(),
	})
}

// requestError renders a request-layer failure as the tool-facing message:
// the HTTP status when one was received, the network description otherwise.
func requestError(err error) error {
	var se *requestapi.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("request failed with status: %d", se.Status)
	}
	return fmt.Errorf("network error: %v", err)
}

// pickEnum validates an enum-like tool argument. Empty selects def; any
// value outside allowed is rejected with a message listing the choices.
func pickEnum(field, value, def string, allowed ...string) (string, error) {
	if value == "" {
		return def, nil
	}
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q; valid values: %v", field, value, allowed)
}
