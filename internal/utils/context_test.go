package utils

import (
	"context"
	"testing"
)

func TestContextKeyString(t *testing.T) {
	key := contextKey("testKey")
	if key.String() != "testKey" {
		t.Errorf("expected %q, got %q", "testKey", key.String())
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		wantID string
		wantOK bool
	}{
		{
			name:   "user ID present",
			ctx:    context.WithValue(context.Background(), UserIDCtxKey, "@alice:example.org"),
			wantID: "@alice:example.org",
			wantOK: true,
		},
		{
			name:   "user ID missing",
			ctx:    context.Background(),
			wantID: "",
			wantOK: false,
		},
		{
			name:   "wrong value type",
			ctx:    context.WithValue(context.Background(), UserIDCtxKey, 42),
			wantID: "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotOK := GetUserIDFromContext(tt.ctx)
			if gotID != tt.wantID || gotOK != tt.wantOK {
				t.Errorf("GetUserIDFromContext() = (%q, %v), want (%q, %v)", gotID, gotOK, tt.wantID, tt.wantOK)
			}
		})
	}
}
