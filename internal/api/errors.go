package api

import (
	"errors"
	"fmt"
	"net/http"

	"synergize/internal/apperr"
	"synergize/internal/auth"
	"synergize/internal/db"
	"synergize/internal/github"
	"synergize/internal/keymanager"
	"synergize/internal/summarizer"
)

var keyNotFoundSuggestions = []string{
	"Check if the API key is correct",
	"Ensure the API key hasn't been deleted",
	"Verify you're using the right environment (development/staging/production)",
}

// ErrNotConfigured is reported when no database is configured.
func ErrNotConfigured() *apperr.Error {
	return apperr.New(apperr.Configuration, "configuration_error", "Database not configured",
		"Please check your environment variables and ensure the database is properly configured.")
}

// ErrInvalidJSON is reported when a request body cannot be decoded.
func ErrInvalidJSON(err error) *apperr.Error {
	return apperr.New(apperr.Validation, "invalid_json", "Invalid request format",
		"The request body contains invalid JSON.").
		WithSuggestions("Check your request body format", "Ensure the JSON is properly formatted").
		Wrap(err)
}

// MapError converts a domain error into the error reported to callers.
func MapError(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, auth.ErrMissingKey):
		return apperr.New(apperr.Validation, "missing_api_key", "API key is required",
			"Please provide an API key.").Wrap(err)
	case errors.Is(err, auth.ErrInvalidFormat):
		return apperr.New(apperr.Validation, "invalid_format", "Invalid API key format",
			"API key must be a non-empty string.").Wrap(err)
	case errors.Is(err, auth.ErrKeyNotFound):
		return apperr.New(apperr.Authentication, "key_not_found", "API key not found",
			"The provided API key does not exist in our system.").
			WithSuggestions(keyNotFoundSuggestions...).Wrap(err)
	case errors.Is(err, auth.ErrKeyInactive):
		return apperr.New(apperr.Authentication, "key_inactive", "API key is inactive",
			"This API key exists but has been deactivated.").
			WithSuggestions("Contact your administrator to reactivate the key", "Generate a new API key if needed").
			Wrap(err)
	case errors.Is(err, auth.ErrUsageLimitExceeded):
		return apperr.New(apperr.Authentication, "usage_limit_exceeded", "API key usage limit exceeded",
			"This API key has used all of its allowed requests.").
			WithSuggestions("Ask your administrator to raise the usage limit", "Wait for the usage counter to be reset").
			WithStatus(http.StatusTooManyRequests).Wrap(err)

	case errors.Is(err, keymanager.ErrLabelRequired):
		return apperr.New(apperr.Validation, "missing_label", "Label is required",
			"Please provide a non-empty label for the API key.").Wrap(err)
	case errors.Is(err, keymanager.ErrInvalidUsageLimit):
		return apperr.New(apperr.Validation, "invalid_usage_limit", "Invalid usage limit",
			"The usage limit must be a non-negative integer.").Wrap(err)

	case errors.Is(err, github.ErrInvalidRepositoryURL):
		return apperr.New(apperr.Validation, "invalid_repository_url", "Invalid GitHub repository URL",
			"Unable to determine the repository owner and name from the provided URL.").
			WithExamples("https://github.com/username/repo", "https://github.com/username/repo.git").
			Wrap(err)
	case errors.Is(err, summarizer.ErrUnconfigured):
		return apperr.New(apperr.Configuration, "summarizer_unconfigured", "Git summary generation failed",
			"AI analysis service unavailable - check the LLM API configuration.").
			WithSuggestions(
				"Verify the llm.api_key setting or the OPENAI_API_KEY environment variable",
				"Check the provider API quota and billing",
				"Ensure the API key has proper permissions",
			).Wrap(err)
	}

	var hostErr *github.HostError
	if errors.As(err, &hostErr) {
		return apperr.New(apperr.Upstream, "github_api_error", "Git summary generation failed",
			"GitHub API access issue - the repository may be private or require authentication.").
			WithSuggestions("Ensure the repository is public", "Check if the repository exists", "Verify the URL format is correct").
			Wrap(err)
	}

	if mapped := mapStoreError(err); mapped != nil {
		if errors.Is(err, keymanager.ErrLoadFailed) {
			mapped.Message = "Failed to load API keys"
		}
		return mapped
	}
	return apperr.InternalError(err)
}

func mapStoreError(err error) *apperr.Error {
	var storeErr *db.StoreError
	if !errors.As(err, &storeErr) {
		return nil
	}
	switch storeErr.Kind {
	case db.ErrTableMissing:
		return apperr.New(apperr.Configuration, "table_not_found", "Database setup required",
			"The API keys table has not been created yet. Please run the database setup first.").
			WithSetup("Enable database.auto_migrate or create the api_keys table before starting the service.").
			Wrap(err)
	case db.ErrPermissionDenied:
		return apperr.New(apperr.Configuration, "permission_denied", "Database permissions issue",
			"The application does not have permission to access the database. Please check your database configuration.").
			Wrap(err)
	case db.ErrNotFound:
		return apperr.New(apperr.Validation, "key_not_found", "API key not found",
			"No API key exists with the given id.").WithStatus(http.StatusNotFound).Wrap(err)
	case db.ErrDuplicateKey:
		return apperr.New(apperr.Validation, "duplicate_key", "Duplicate API key",
			"An API key with the same value already exists. Please try again.").
			WithStatus(http.StatusConflict).Wrap(err)
	case db.ErrConnection:
		return apperr.New(apperr.Upstream, "connection_error", "Database connection error",
			"Unable to connect to the database. Please try again later.").Wrap(err)
	default:
		return apperr.New(apperr.Internal, "query_error", "Database query error",
			fmt.Sprintf("Unable to complete the database query: %v", storeErr.Err)).Wrap(err)
	}
}

// summaryError reports a pipeline failure. Failures without a specific
// mapping become summary_generation_failed.
func summaryError(err error) *apperr.Error {
	mapped := MapError(err)
	if mapped.Tag != "internal_error" {
		return mapped
	}
	return apperr.New(apperr.Upstream, "summary_generation_failed", "Git summary generation failed",
		"Unable to generate summary for the provided git repository.").
		WithSuggestions(
			"Check if the repository is accessible",
			"Verify the repository URL is correct",
			"Ensure the repository is not private or requires authentication",
		).Wrap(err)
}
