package aspace

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

// GetArchivalObject fetches a record by URI, returning both the typed view and
// the raw JSON so unknown fields survive an update.
func (c *Client) GetArchivalObject(ctx context.Context, uri string) (Record, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Record{}, services.Wrap(services.ErrValidation, "aspace", "get archival object", "uri is empty", nil)
	}
	raw, err := c.Do(ctx, http.MethodGet, uri, nil, nil)
	if err != nil {
		return Record{}, err
	}
	var obj ArchivalObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Record{}, services.Wrap(services.ErrTransient, "aspace", "get archival object", "decode record", err)
	}
	if obj.URI == "" {
		obj.URI = uri
	}
	return Record{Object: obj, Raw: raw}, nil
}

// CreateArchivalObject posts a new record under the configured repository.
func (c *Client) CreateArchivalObject(ctx context.Context, obj ArchivalObject) (WriteResult, error) {
	result, err := c.write(ctx, c.RepositoryURI()+"/archival_objects", obj)
	if err != nil {
		return WriteResult{}, err
	}
	c.logger.Info("archival object created",
		logging.String(logging.FieldURI, result.URI),
		logging.String("component_id", obj.ComponentID),
	)
	return result, nil
}

// UpdateArchivalObject posts a complete record body to its URI.
func (c *Client) UpdateArchivalObject(ctx context.Context, uri string, body json.RawMessage) (WriteResult, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return WriteResult{}, services.Wrap(services.ErrValidation, "aspace", "update archival object", "uri is empty", nil)
	}
	result, err := c.write(ctx, uri, body)
	if err != nil {
		return WriteResult{}, err
	}
	if result.URI == "" {
		result.URI = uri
	}
	c.logger.Info("archival object updated", logging.String(logging.FieldURI, result.URI))
	return result, nil
}

// CreateTopContainer mints a container whose indicator is the catalog number
// and returns its URI.
func (c *Client) CreateTopContainer(ctx context.Context, indicator string) (string, error) {
	indicator = strings.TrimSpace(indicator)
	if indicator == "" {
		return "", services.Wrap(services.ErrValidation, "aspace", "create top container", "indicator is empty", nil)
	}
	payload := TopContainer{
		Indicator:  indicator,
		Type:       c.cfg.TopContainerType,
		Repository: Ref{Ref: c.RepositoryURI()},
	}
	result, err := c.write(ctx, c.RepositoryURI()+"/top_containers", payload)
	if err != nil {
		return "", err
	}
	if result.URI == "" {
		return "", services.Wrap(services.ErrTransient, "aspace", "create top container", "response carried no uri", nil)
	}
	c.logger.Debug("top container created", logging.String(logging.FieldURI, result.URI), logging.String("indicator", indicator))
	return result.URI, nil
}

func (c *Client) write(ctx context.Context, path string, body any) (WriteResult, error) {
	raw, err := c.Do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return WriteResult{}, err
	}
	var result WriteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return WriteResult{}, services.Wrap(services.ErrTransient, "aspace", "POST "+path, "decode response", err)
	}
	return result, nil
}
