package core

import (
	"context"
	"testing"
)

func TestRequesterContext(t *testing.T) {
	ctx := context.Background()
	if ip, ua := RequesterFromContext(ctx); ip != "" || ua != "" {
		t.Errorf("empty context = %q, %q", ip, ua)
	}
	if f := requesterFields(ctx); f != nil {
		t.Errorf("requesterFields(empty) = %v, want nil", f)
	}

	ctx = ContextWithRequester(ctx, "203.0.113.7", "curl/8.5")
	ip, ua := RequesterFromContext(ctx)
	if ip != "203.0.113.7" || ua != "curl/8.5" {
		t.Errorf("RequesterFromContext() = %q, %q", ip, ua)
	}
	if f := requesterFields(ctx); len(f) != 4 {
		t.Errorf("requesterFields() = %v, want ip and user_agent", f)
	}
}
