package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/chazu/nupython/report"
)

// Client calls a remote evaluation service.
type Client struct {
	evaluate    *connect.Client[EvaluateRequest, report.Report]
	checkSyntax *connect.Client[CheckSyntaxRequest, CheckSyntaxResponse]
	getRun      *connect.Client[GetRunRequest, report.Report]
}

// NewClient creates a client for the service at baseURL, for example
// "http://localhost:4568". Messages are sent as CBOR unless opts select
// another codec.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(cborCodec{})}, opts...)
	return &Client{
		evaluate:    connect.NewClient[EvaluateRequest, report.Report](httpClient, baseURL+EvaluateProcedure, opts...),
		checkSyntax: connect.NewClient[CheckSyntaxRequest, CheckSyntaxResponse](httpClient, baseURL+CheckSyntaxProcedure, opts...),
		getRun:      connect.NewClient[GetRunRequest, report.Report](httpClient, baseURL+GetRunProcedure, opts...),
	}
}

// Evaluate runs a program remotely.
func (c *Client) Evaluate(ctx context.Context, req *EvaluateRequest) (*report.Report, error) {
	resp, err := c.evaluate.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// CheckSyntax parses a program remotely.
func (c *Client) CheckSyntax(ctx context.Context, source string) (*CheckSyntaxResponse, error) {
	resp, err := c.checkSyntax.CallUnary(ctx, connect.NewRequest(&CheckSyntaxRequest{Source: source}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// GetRun fetches a stored report by run id.
func (c *Client) GetRun(ctx context.Context, runID string) (*report.Report, error) {
	resp, err := c.getRun.CallUnary(ctx, connect.NewRequest(&GetRunRequest{RunID: runID}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
