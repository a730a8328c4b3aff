// Package reqctx carries per-request identity through the pipeline.
package reqctx

import "context"

// RequestContext identifies one inbound request. It never holds credentials.
type RequestContext struct {
	RequestID string
	ClientID  string // empty until authenticated
}

type contextKey struct{}

// NewContext returns ctx carrying rc.
func NewContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the RequestContext stored in ctx, if any.
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(contextKey{}).(RequestContext)
	return rc, ok
}

// WithClientID returns a child context whose RequestContext also names the
// authenticated client. The parent's value is left untouched.
func WithClientID(ctx context.Context, clientID string) context.Context {
	rc, _ := FromContext(ctx)
	rc.ClientID = clientID
	return NewContext(ctx, rc)
}

// RequestID returns the request id in ctx, or "" if none.
func RequestID(ctx context.Context) string {
	rc, _ := FromContext(ctx)
	return rc.RequestID
}

// ClientID returns the authenticated client id in ctx, or "" if none.
func ClientID(ctx context.Context) string {
	rc, _ := FromContext(ctx)
	return rc.ClientID
}
