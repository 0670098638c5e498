package middleware

import (
	"testing"
	"time"
)

func TestClassifyRoute(t *testing.T) {
	testCases := []struct {
		path string
		want string
	}{
		{"/api/listings", "browse"},
		{"/api/listings/abc-123", "browse"},
		{"/api/auth/login", "auth"},
		{"/api/auth/register", "auth"},
		{"/api/users/me", "default"},
		{"/health", "default"},
	}

	for _, tc := range testCases {
		if got := ClassifyRoute(tc.path); got.Name != tc.want {
			t.Errorf("ClassifyRoute(%q) = %q, want %q", tc.path, got.Name, tc.want)
		}
	}
}

func TestRouteClassBudgets(t *testing.T) {
	browse := ClassifyRoute("/api/listings")
	auth := ClassifyRoute("/api/auth/login")

	if auth.MaxRequests >= browse.MaxRequests {
		t.Errorf("auth budget %d must be tighter than browse budget %d",
			auth.MaxRequests, browse.MaxRequests)
	}
	if browse.Window != time.Minute || auth.Window != time.Minute {
		t.Errorf("windows = %v/%v, want one minute", browse.Window, auth.Window)
	}
}
