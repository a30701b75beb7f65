package scholar

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scholarscope/scholarscope/internal/observe"
	"github.com/scholarscope/scholarscope/internal/openalex"
)

// fetchWorkGraph retrieves a single work record and returns its citation
// edges. The request runs through the non-blocking flavor so a canceled
// tool call abandons the wait immediately even mid-retry.
func (s *Server) fetchWorkGraph(ctx context.Context, paperID string) (openalex.WorkGraph, error) {
	var zero openalex.WorkGraph

	client, err := s.openAlexClient()
	if err != nil {
		return zero, err
	}
	defer client.Close()

	select {
	case ar := <-client.GetAsync(ctx, "/works/"+paperID, nil, nil):
		if ar.Err != nil {
			return zero, requestError(ar.Err)
		}
		if ar.Result.NotFound {
			return zero, fmt.Errorf("no work found for paper_id=%s", paperID)
		}
		return openalex.ParseWorkGraph(ar.Result.Body)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

type workGraphInput struct {
	PaperID string `json:"paper_id" jsonschema:"the OpenAlex Work ID of the target paper, e.g. https://openalex.org/W123456789"`
}

func (s *Server) referencedWorks(ctx context.Context, _ *mcp.CallToolRequest, in workGraphInput) (*mcp.CallToolResult, openalex.List, error) {
	observe.Logger(ctx).Info("fetching referenced works", "paper_id", in.PaperID)

	graph, err := s.fetchWorkGraph(ctx, in.PaperID)
	if err != nil {
		return nil, openalex.List{}, err
	}
	if len(graph.ReferencedWorks) == 0 {
		return nil, openalex.List{}, fmt.Errorf("no referenced works found for paper_id=%s", in.PaperID)
	}
	return nil, openalex.List{Data: graph.ReferencedWorks, Count: len(graph.ReferencedWorks)}, nil
}

func (s *Server) relatedWorks(ctx context.Context, _ *mcp.CallToolRequest, in workGraphInput) (*mcp.CallToolResult, openalex.List, error) {
	observe.Logger(ctx).Info("fetching related works", "paper_id", in.PaperID)

	graph, err := s.fetchWorkGraph(ctx, in.PaperID)
	if err != nil {
		return nil, openalex.List{}, err
	}
	if len(graph.RelatedWorks) == 0 {
		return nil, openalex.List{}, fmt.Errorf("no related works found for paper_id=%s", in.PaperID)
	}
	return nil, openalex.List{Data: graph.RelatedWorks, Count: len(graph.RelatedWorks)}, nil
}
