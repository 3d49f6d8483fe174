// Package summarizer turns a GitHub repository README into a structured
// analysis produced by a language model.
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"synergize/internal/github"
	"synergize/internal/llm"

	"github.com/go-playground/validator/v10"
)

const (
	StatusAIEnhanced = "ai_enhanced"
	StatusBasic      = "basic"

	previewLength = 300
	noReadmeText  = "No README.md found in this repository"
)

var ErrUnconfigured = errors.New("AI summarizer is not configured")

// Analysis is the four field narrative returned by the model.
type Analysis struct {
	RepositoryAnalysis       string `json:"repository_analysis" validate:"required,min=10"`
	CommitHistoryInsights    string `json:"commit_history_insights" validate:"required,min=10"`
	TechStackOverview        string `json:"tech_stack_overview" validate:"required,min=10"`
	ProjectStructureOverview string `json:"project_structure_overview" validate:"required,min=10"`
}

var (
	parseFallback = Analysis{
		RepositoryAnalysis:       "Analysis unavailable - unable to parse LLM response",
		CommitHistoryInsights:    "Commit history analysis requires further repository data",
		TechStackOverview:        "Technology stack information not available",
		ProjectStructureOverview: "Project structure overview requires repository scanning",
	}
	processingFallback = Analysis{
		RepositoryAnalysis:       "AI analysis unavailable due to processing error",
		CommitHistoryInsights:    "Commit history analysis requires repository access",
		TechStackOverview:        "Technology stack detection needs implementation",
		ProjectStructureOverview: "Project structure overview requires repository scanning",
	}
	basicAnalysis = Analysis{
		RepositoryAnalysis:       "Repository analysis limited - no README available",
		CommitHistoryInsights:    "Commit history analysis requires repository access",
		TechStackOverview:        "Technology stack detection needs repository scanning",
		ProjectStructureOverview: "Project structure overview requires repository access",
	}
)

// ReadmeInfo describes the README that was analysed.
type ReadmeInfo struct {
	Found          bool   `json:"found"`
	Path           string `json:"path,omitempty"`
	Size           int    `json:"size,omitempty"`
	ContentPreview string `json:"content_preview,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Summary is the result returned to callers.
type Summary struct {
	Repository string     `json:"repository"`
	ReadmeInfo ReadmeInfo `json:"readme_info"`
	AIAnalysis Analysis   `json:"ai_analysis"`
	Status     string     `json:"status"`
}

// ReadmeFetcher retrieves a repository README. A nil Readme with a nil error
// means the repository has none.
type ReadmeFetcher interface {
	FetchReadme(ctx context.Context, repo github.Repository) (*github.Readme, error)
}

// Pipeline runs parse, fetch, summarize and assemble for one repository.
type Pipeline struct {
	readmes  ReadmeFetcher
	model    llm.Completer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewPipeline creates a pipeline. model may be nil, in which case repositories
// with a README fail with ErrUnconfigured.
func NewPipeline(readmes ReadmeFetcher, model llm.Completer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		readmes:  readmes,
		model:    model,
		validate: validator.New(),
		logger:   logger.With("component", "summarizer"),
	}
}

// Configured reports whether a model is available.
func (p *Pipeline) Configured() bool {
	return p.model != nil
}

// Summarize builds the summary for gitURL. Model failures are folded into
// fallback narratives; only URL, README host and configuration errors are returned.
func (p *Pipeline) Summarize(ctx context.Context, gitURL string) (*Summary, error) {
	repo, err := github.ParseRepositoryURL(gitURL)
	if err != nil {
		return nil, err
	}

	readme, err := p.readmes.FetchReadme(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching README for %s/%s: %w", repo.Owner, repo.Name, err)
	}
	if readme == nil {
		p.logger.Info("No README found", "owner", repo.Owner, "repo", repo.Name)
		return &Summary{
			Repository: gitURL,
			ReadmeInfo: ReadmeInfo{Found: false, Message: noReadmeText},
			AIAnalysis: basicAnalysis,
			Status:     StatusBasic,
		}, nil
	}

	if p.model == nil {
		return nil, ErrUnconfigured
	}
	p.logger.Debug("README found", "owner", repo.Owner, "repo", repo.Name, "path", readme.Path, "size", readme.Size)

	return &Summary{
		Repository: gitURL,
		ReadmeInfo: ReadmeInfo{
			Found:          true,
			Path:           readme.Path,
			Size:           readme.Size,
			ContentPreview: preview(readme.Content),
		},
		AIAnalysis: p.analyze(ctx, readme.Content),
		Status:     StatusAIEnhanced,
	}, nil
}

func (p *Pipeline) analyze(ctx context.Context, readme string) Analysis {
	reply, err := p.model.Complete(ctx, buildPrompt(readme))
	if err != nil {
		p.logger.Error("LLM request failed", "error", err)
		return processingFallback
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(llm.StripCodeFences(reply)), &analysis); err != nil {
		p.logger.Warn("Failed to parse LLM response", "error", err)
		return parseFallback
	}
	if err := p.validate.Struct(analysis); err != nil {
		p.logger.Warn("LLM response failed validation", "error", err)
		return parseFallback
	}
	return analysis
}

// preview returns the first 300 characters of content followed by "...".
func preview(content string) string {
	runes := []rune(content)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes) + "..."
}

const promptTemplate = `You are an expert software developer and code analyst. Analyze the following GitHub repository README content and provide a comprehensive summary.

README Content:
%s

Based on the README content, provide a detailed analysis in the following JSON format:

{
  "repository_analysis": "A comprehensive overview of what this repository is about, its purpose, and main functionality",
  "commit_history_insights": "Insights about the development process, release patterns, and project maturity based on the README information",
  "tech_stack_overview": "Detailed analysis of technologies, frameworks, languages, and tools mentioned in the README",
  "project_structure_overview": "Overview of the project organization, architecture, and key components as described in the README"
}

Return ONLY a valid JSON object with these exact field names. No markdown, no code fences. Be thorough but concise in your analysis.`

func buildPrompt(readme string) string {
	if readme == "" {
		readme = "No README content available for analysis."
	}
	return fmt.Sprintf(promptTemplate, readme)
}
