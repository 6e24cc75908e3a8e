// Package graph manages the directory objects of the cluster identity through
// Microsoft Graph v1.0, using the azcore HTTP pipeline for auth and retries.
package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/kanebernetes/aksstack/domain/model"
)

const (
	moduleName    = "aksstack/graph"
	moduleVersion = "v1.0.0"

	// DefaultEndpoint is the public cloud Graph v1.0 root.
	DefaultEndpoint = "https://graph.microsoft.com/v1.0"
	defaultScope    = "https://graph.microsoft.com/.default"
)

var _ model.Directory = (*Client)(nil)

// Options configures a Client.
type Options struct {
	policy.ClientOptions

	// Endpoint overrides DefaultEndpoint.
	Endpoint string
	// Scope overrides the token scope derived from the public cloud.
	Scope string
}

// Client is a minimal Graph client for applications and service principals.
type Client struct {
	endpoint string
	pl       runtime.Pipeline
}

// NewClient builds a client authenticating with cred.
func NewClient(cred azcore.TokenCredential, opts *Options) (*Client, error) {
	if cred == nil {
		return nil, fmt.Errorf("credential is required")
	}
	if opts == nil {
		opts = &Options{}
	}
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	scope := opts.Scope
	if scope == "" {
		scope = defaultScope
	}
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{runtime.NewBearerTokenPolicy(cred, []string{scope}, nil)},
	}, &opts.ClientOptions)
	return &Client{endpoint: endpoint, pl: pl}, nil
}

// do sends a request and decodes the JSON response into out when non-nil.
// Statuses outside ok produce an *azcore.ResponseError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, ok ...int) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := runtime.NewRequest(ctx, method, u)
	if err != nil {
		return err
	}
	req.Raw().Header.Set("Accept", "application/json")
	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return err
		}
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return err
	}
	if !runtime.HasStatusCode(resp, ok...) {
		return runtime.NewResponseError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil
	}
	return runtime.UnmarshalAsJSON(resp, out)
}

// filterQuery builds an OData $filter query for equality on a string property.
func filterQuery(property, value string) url.Values {
	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("%s eq '%s'", property, strings.ReplaceAll(value, "'", "''")))
	return q
}

func isStatus(err error, status int) bool {
	var re *azcore.ResponseError
	return errors.As(err, &re) && re.StatusCode == status
}

var statusOK = []int{http.StatusOK}
