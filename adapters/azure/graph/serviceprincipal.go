package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/logging"
)

type servicePrincipal struct {
	ID                  string               `json:"id"`
	AppID               string               `json:"appId"`
	PasswordCredentials []passwordCredential `json:"passwordCredentials,omitempty"`
}

type servicePrincipalList struct {
	Value []servicePrincipal `json:"value"`
}

type passwordCredential struct {
	KeyID       string     `json:"keyId,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	EndDateTime *time.Time `json:"endDateTime,omitempty"`
	SecretText  string     `json:"secretText,omitempty"`
}

// EnsureServicePrincipal returns the service principal of appID, creating it when absent.
func (c *Client) EnsureServicePrincipal(ctx context.Context, appID string) (*model.ServicePrincipal, error) {
	var list servicePrincipalList
	if err := c.do(ctx, http.MethodGet, "/servicePrincipals", filterQuery("appId", appID), nil, &list, statusOK...); err != nil {
		return nil, fmt.Errorf("list service principals: %w", err)
	}
	if len(list.Value) > 0 {
		sp := list.Value[0]
		return &model.ServicePrincipal{ObjectID: sp.ID, AppID: sp.AppID}, nil
	}

	var created servicePrincipal
	if err := c.do(ctx, http.MethodPost, "/servicePrincipals", nil, map[string]any{"appId": appID}, &created, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("create service principal: %w", err)
	}
	logging.FromContext(ctx).Info(ctx, "GRAPH:CreateServicePrincipal/eok", "appId", appID, "objectId", created.ID)
	return &model.ServicePrincipal{ObjectID: created.ID, AppID: created.AppID}, nil
}

// AddPassword issues a new password credential. The secret text is only
// returned by this call.
func (c *Client) AddPassword(ctx context.Context, spObjectID, displayName string, end time.Time) (*model.PasswordCredential, error) {
	end = end.UTC()
	body := map[string]any{
		"passwordCredential": passwordCredential{DisplayName: displayName, EndDateTime: &end},
	}
	var pc passwordCredential
	path := "/servicePrincipals/" + url.PathEscape(spObjectID) + "/addPassword"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &pc, http.StatusOK, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("add password: %w", err)
	}
	if pc.KeyID == "" || pc.SecretText == "" {
		return nil, fmt.Errorf("add password: response lacks keyId or secretText")
	}
	return &model.PasswordCredential{KeyID: pc.KeyID, Secret: model.NewSecret(pc.SecretText)}, nil
}

// HasPassword reports whether the service principal still lists keyID.
func (c *Client) HasPassword(ctx context.Context, spObjectID, keyID string) (bool, error) {
	q := url.Values{}
	q.Set("$select", "id,appId,passwordCredentials")
	var sp servicePrincipal
	if err := c.do(ctx, http.MethodGet, "/servicePrincipals/"+url.PathEscape(spObjectID), q, nil, &sp, statusOK...); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get service principal: %w", err)
	}
	for _, pc := range sp.PasswordCredentials {
		if strings.EqualFold(pc.KeyID, keyID) {
			return true, nil
		}
	}
	return false, nil
}
