package reqctx

import (
	"context"
	"testing"
)

func TestRequestContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := FromContext(ctx); ok {
		t.Fatal("FromContext() found a value in an empty context")
	}
	if RequestID(ctx) != "" || ClientID(ctx) != "" {
		t.Fatal("expected empty ids on a bare context")
	}

	parent := NewContext(ctx, RequestContext{RequestID: "rid-1"})
	child := WithClientID(parent, "web")

	if RequestID(child) != "rid-1" {
		t.Errorf("child RequestID = %q, want rid-1", RequestID(child))
	}
	if ClientID(child) != "web" {
		t.Errorf("child ClientID = %q, want web", ClientID(child))
	}
	if ClientID(parent) != "" {
		t.Errorf("parent ClientID = %q, want it untouched", ClientID(parent))
	}
}
