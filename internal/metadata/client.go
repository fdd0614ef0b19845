// Package metadata issues typed query and mutation documents against the
// fileflow metadata service's single structured-query endpoint. Every
// operation has one canonical query shape; caller-supplied values travel
// as bound variables, never interpolated into the query text.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fileflow/fileflow-go/internal/api"
	"github.com/fileflow/fileflow-go/internal/session"
)

// Dispatcher executes authenticated HTTP requests.
// internal/api provides the real implementation.
type Dispatcher interface {
	Do(ctx context.Context, method, url string, body io.Reader, opts *api.Options) (*http.Response, error)
}

// IdentitySource supplies the current identity bound into every query.
// internal/session provides the real implementation.
type IdentitySource interface {
	Get() session.Session
}

// Client is the metadata/graph service client.
type Client struct {
	dispatcher Dispatcher
	identity   IdentitySource
	endpoint   string
	logger     *slog.Logger
}

// NewClient creates a metadata client for the structured-query endpoint
// at endpoint (typically "{graphBase}/graphql").
func NewClient(dispatcher Dispatcher, identity IdentitySource, endpoint string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		dispatcher: dispatcher,
		identity:   identity,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// queryDocument is the request shape for the structured-query endpoint.
type queryDocument struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// queryError is one entry of the structured error list.
type queryError struct {
	Message string `json:"message"`
}

// queryResponse is the response envelope: data or errors.
type queryResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []queryError    `json:"errors"`
}

// do sends one query document and decodes the named result field out of
// the data envelope into out. A structured error list is unwrapped into
// an ErrApplication carrying the first message verbatim, distinguishable
// from transport-level failures via errors.Is.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, field string, out any) error {
	doc, err := json.Marshal(queryDocument{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("metadata: encoding query document: %w", err)
	}

	c.logger.Debug("metadata query", slog.String("field", field))

	resp, err := c.dispatcher.Do(ctx, http.MethodPost, c.endpoint, bytes.NewReader(doc), &api.Options{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("metadata: %s: %w", field, err)
	}
	defer resp.Body.Close()

	var envelope queryResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&envelope); decErr != nil {
		return fmt.Errorf("metadata: decoding %s response: %w: %v", field, api.ErrMalformedResponse, decErr)
	}

	if len(envelope.Errors) > 0 {
		c.logger.Warn("metadata query returned errors",
			slog.String("field", field),
			slog.String("message", envelope.Errors[0].Message),
		)

		return fmt.Errorf("metadata: %s: %w: %s", field, api.ErrApplication, envelope.Errors[0].Message)
	}

	if envelope.Data == nil {
		return fmt.Errorf("metadata: %s response carries no data: %w", field, api.ErrMalformedResponse)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return fmt.Errorf("metadata: decoding %s data: %w: %v", field, api.ErrMalformedResponse, err)
	}

	raw, ok := data[field]
	if !ok || string(raw) == "null" {
		// Absent result fields decode as empty values, matching the
		// backend's empty-list-on-error resolvers.
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("metadata: decoding %s result: %w: %v", field, api.ErrMalformedResponse, err)
	}

	return nil
}

// FilesByOwner returns the metadata records owned by owner.
func (c *Client) FilesByOwner(ctx context.Context, owner string) ([]FileRecord, error) {
	const query = `query GetFilesByOwner($owner: String!) {
  getFilesByOwner(owner: $owner) { id fileName fileSize owner uploadDate tags }
}`

	var records []FileRecord
	if err := c.do(ctx, query, map[string]any{"owner": owner}, "getFilesByOwner", &records); err != nil {
		return nil, err
	}

	return records, nil
}

// FilesByTag returns the metadata records carrying the given tag.
func (c *Client) FilesByTag(ctx context.Context, tag string) ([]FileRecord, error) {
	const query = `query GetFilesByTag($tag: String!) {
  getFilesByTag(tag: $tag) { id fileName fileSize owner uploadDate tags }
}`

	var records []FileRecord
	if err := c.do(ctx, query, map[string]any{"tag": tag}, "getFilesByTag", &records); err != nil {
		return nil, err
	}

	return records, nil
}

// Share grants sharedWith access to the file. The current identity is
// bound as the sharing user. Duplicate shares may or may not be rejected
// server-side; the client does not pre-check.
func (c *Client) Share(ctx context.Context, fileID int64, sharedWith string) (bool, error) {
	const query = `mutation ShareFile($fileId: Int!, $sharedWithUsername: String!, $sharedByUsername: String!) {
  shareFile(fileId: $fileId, sharedWithUsername: $sharedWithUsername, sharedByUsername: $sharedByUsername)
}`

	variables := map[string]any{
		"fileId":             fileID,
		"sharedWithUsername": sharedWith,
		"sharedByUsername":   c.identity.Get().Identity,
	}

	var ok bool
	if err := c.do(ctx, query, variables, "shareFile", &ok); err != nil {
		return false, err
	}

	return ok, nil
}

// RevokeShare withdraws sharedWith's access to the file.
func (c *Client) RevokeShare(ctx context.Context, fileID int64, sharedWith string) (bool, error) {
	const query = `mutation RevokeShare($fileId: Int!, $sharedWithUsername: String!, $sharedByUsername: String!) {
  revokeShare(fileId: $fileId, sharedWithUsername: $sharedWithUsername, sharedByUsername: $sharedByUsername)
}`

	variables := map[string]any{
		"fileId":             fileID,
		"sharedWithUsername": sharedWith,
		"sharedByUsername":   c.identity.Get().Identity,
	}

	var ok bool
	if err := c.do(ctx, query, variables, "revokeShare", &ok); err != nil {
		return false, err
	}

	return ok, nil
}

// shareFields is the selection set common to both share views.
const shareFields = `shareId sharedByUsername sharedWithUsername sharedDate
    file { id fileName fileSize owner uploadDate tags }`

// SharedByMe returns the shares the current identity has granted.
func (c *Client) SharedByMe(ctx context.Context) ([]ShareRecord, error) {
	query := `query GetFilesSharedByMe($username: String!) {
  getFilesSharedByMe(username: $username) { ` + shareFields + ` }
}`

	variables := map[string]any{"username": c.identity.Get().Identity}

	var records []ShareRecord
	if err := c.do(ctx, query, variables, "getFilesSharedByMe", &records); err != nil {
		return nil, err
	}

	return records, nil
}

// SharedWithMe returns the shares granted to the current identity.
func (c *Client) SharedWithMe(ctx context.Context) ([]ShareRecord, error) {
	query := `query GetFilesSharedWithMe($username: String!) {
  getFilesSharedWithMe(username: $username) { ` + shareFields + ` }
}`

	variables := map[string]any{"username": c.identity.Get().Identity}

	var records []ShareRecord
	if err := c.do(ctx, query, variables, "getFilesSharedWithMe", &records); err != nil {
		return nil, err
	}

	return records, nil
}
