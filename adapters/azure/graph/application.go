package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/logging"
)

type application struct {
	ID          string `json:"id"`
	AppID       string `json:"appId"`
	DisplayName string `json:"displayName"`
}

type applicationList struct {
	Value []application `json:"value"`
}

// EnsureApplication returns the application with the given display name,
// creating it when absent. The first match wins if several exist.
func (c *Client) EnsureApplication(ctx context.Context, displayName string) (*model.Application, error) {
	logger := logging.FromContext(ctx).With("displayName", displayName)

	var list applicationList
	if err := c.do(ctx, http.MethodGet, "/applications", filterQuery("displayName", displayName), nil, &list, statusOK...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if len(list.Value) > 0 {
		if len(list.Value) > 1 {
			logger.Warn(ctx, "several applications share the display name; using the first", "count", len(list.Value))
		}
		a := list.Value[0]
		return &model.Application{ObjectID: a.ID, AppID: a.AppID}, nil
	}

	var created application
	body := map[string]any{"displayName": displayName, "signInAudience": "AzureADMyOrg"}
	if err := c.do(ctx, http.MethodPost, "/applications", nil, body, &created, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	logger.Info(ctx, "GRAPH:CreateApplication/eok", "appId", created.AppID)
	return &model.Application{ObjectID: created.ID, AppID: created.AppID}, nil
}

// DeleteApplication deletes the application (and with it the service principal).
// A missing application is success.
func (c *Client) DeleteApplication(ctx context.Context, appObjectID string) error {
	err := c.do(ctx, http.MethodDelete, "/applications/"+url.PathEscape(appObjectID), nil, nil, nil, http.StatusNoContent)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("delete application %s: %w", appObjectID, err)
	}
	return nil
}
