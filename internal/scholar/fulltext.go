package scholar

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scholarscope/scholarscope/internal/observe"
	"github.com/scholarscope/scholarscope/internal/urlcheck"
)

type fetchFulltextInput struct {
	PreferredFulltextURL string `json:"preferred_fulltext_url" jsonschema:"preferred full-text URL of the paper or work"`
}

type fetchFulltextOutput struct {
	Text string `json:"text" jsonschema:"plaintext representation of the retrieved content"`
}

// fetchFulltext retrieves a page or PDF through the reader proxy, which
// converts it to plain text. The target URL is validated before any network
// traffic: handing an attacker-chosen URL to the fetch path is the one spot
// where this server touches arbitrary hosts.
func (s *Server) fetchFulltext(ctx context.Context, _ *mcp.CallToolRequest, in fetchFulltextInput) (*mcp.CallToolResult, fetchFulltextOutput, error) {
	var zero fetchFulltextOutput
	log := observe.Logger(ctx)

	// Accept URLs already wrapped for the reader proxy.
	target := in.PreferredFulltextURL
	if prefix := strings.TrimSuffix(s.cfg.Fulltext.ReaderBaseURL, "/") + "/"; strings.HasPrefix(target, prefix) {
		target = strings.TrimPrefix(target, prefix)
		log.Debug("removed reader prefix", "url", target)
	}

	if !urlcheck.Validate(target) {
		err := fmt.Errorf("invalid or disallowed URL: %s", target)
		log.Error("rejected full-text target", "url", target)
		return nil, zero, err
	}

	client, err := s.readerClient()
	if err != nil {
		return nil, zero, err
	}
	defer client.Close()

	log.Info("fetching full text", "url", target)

	res, err := client.Get(ctx, "/"+target, nil, nil)
	if err != nil {
		return nil, zero, requestError(err)
	}
	if res.NotFound || len(res.Body) == 0 {
		return nil, zero, fmt.Errorf("response is empty content, try again later")
	}

	return nil, fetchFulltextOutput{Text: res.Text()}, nil
}
