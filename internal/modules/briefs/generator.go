package briefs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Generator turns manager snapshots into written briefs via the Gemini
// API and stores the result.
type Generator struct {
	client  *genai.Client
	model   string
	builder *SnapshotBuilder
	repo    *Repository
	log     zerolog.Logger
}

// NewGenerator creates a new brief generator. apiKey is required.
func NewGenerator(
	apiKey, model string,
	builder *SnapshotBuilder,
	repo *Repository,
	log zerolog.Logger,
) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Generator{
		client:  client,
		model:   model,
		builder: builder,
		repo:    repo,
		log:     log.With().Str("service", "brief_generator").Logger(),
	}, nil
}

// Generate builds the snapshot for (managerCIK, reportPeriod), writes a
// brief for it and stores the result. An existing brief for the pair is
// replaced. Returns the stored brief.
func (g *Generator) Generate(ctx context.Context, managerCIK, reportPeriod string) (*Brief, error) {
	snapshot, err := g.builder.Build(managerCIK, reportPeriod)
	if err != nil {
		return nil, err
	}
	if snapshot.Stats.PositionCount == 0 {
		return nil, fmt.Errorf("no positions for manager %s period %s", managerCIK, snapshot.ReportPeriod)
	}

	prompt, err := buildPrompt(snapshot)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("brief generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("model returned an empty brief")
	}

	brief := &Brief{
		ID:           uuid.NewString(),
		ManagerCIK:   managerCIK,
		ReportPeriod: snapshot.ReportPeriod,
		Model:        g.model,
		BriefMD:      text,
	}

	if err := g.repo.Store(brief); err != nil {
		return nil, err
	}

	g.log.Info().
		Str("cik", managerCIK).
		Str("report_period", snapshot.ReportPeriod).
		Int("chars", len(text)).
		Msg("Brief generated")
	return brief, nil
}

// buildPrompt renders the snapshot as the model input. The snapshot is
// passed as JSON; the instructions stay deliberately small.
func buildPrompt(snapshot *ManagerSnapshot) (string, error) {
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return fmt.Sprintf(`You are an analyst writing a quarterly 13F holdings brief for subscribers.
Using only the data below, write a concise markdown brief covering: portfolio size and
concentration, the most significant new and closed positions, and the largest increases
and decreases. Do not invent data that is not present.

%s`, payload), nil
}
