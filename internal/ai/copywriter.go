package ai

import (
	"context"
	"fmt"
	"strings"

	"siteforge/pkg/models"
)

const defaultCopyModel = "anthropic/claude-3.5-sonnet"

// Copywriter produces short marketing copy for generated sites. All of its
// output is advisory: callers fall back to static copy when it fails.
type Copywriter struct {
	client Client
	model  string
}

func NewCopywriter(client Client, model string) *Copywriter {
	if model == "" {
		model = defaultCopyModel
	}
	return &Copywriter{client: client, model: model}
}

// Headline asks the model for a single hero headline for the project.
func (c *Copywriter) Headline(ctx context.Context, project *models.Project) (string, error) {
	prompt := fmt.Sprintf(
		"Write one short hero headline (under 10 words, no quotes) for a %s website named %q. The owner described it as: %s",
		project.WebsiteType, project.BusinessName, project.Prompt,
	)
	return c.complete(ctx, prompt)
}

// MetaDescription asks the model for an SEO meta description for the project.
func (c *Copywriter) MetaDescription(ctx context.Context, project *models.Project) (string, error) {
	prompt := fmt.Sprintf(
		"Write one SEO meta description (under 155 characters, no quotes) for a %s website named %q. The owner described it as: %s",
		project.WebsiteType, project.BusinessName, project.Prompt,
	)
	return c.complete(ctx, prompt)
}

func (c *Copywriter) complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.client.Chat(ctx, c.model, []Message{
		{Role: "system", Content: "You are a concise marketing copywriter. Reply with the copy only."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}
