package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourorg/apiprompt/internal/prompt"
	"github.com/yourorg/apiprompt/pkg/types"
)

// RenderMarkdown writes dir/prompts.md with one generated prompt per
// endpoint, in the order given.
func RenderMarkdown(ctx context.Context, g *prompt.Generator, project *types.Project, endpoints []*types.Endpoint, dir string) (string, error) {
	if project == nil {
		return "", fmt.Errorf("export: project is nil")
	}
	if g == nil {
		g = prompt.New()
	}
	prompts, err := g.GenerateAll(ctx, endpoints)
	if err != nil {
		return "", fmt.Errorf("export: render prompts: %w", err)
	}

	b := &strings.Builder{}
	fmt.Fprintf(b, "# %s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(b, "\n%s\n", project.Description)
	}
	for i, e := range endpoints {
		if e == nil {
			continue
		}
		fmt.Fprintf(b, "\n## %s\n\n`%s %s`\n\n", e.Title, e.Method, e.Path)
		fmt.Fprintf(b, "```markdown\n%s\n```\n", prompts[i])
	}
	return writeFile(dir, MarkdownFile, []byte(b.String()))
}
