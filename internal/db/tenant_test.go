package db

import (
	"errors"
	"testing"

	"github.com/tikozap/backend/internal/models"
)

func TestTenantConflicts(t *testing.T) {
	convs := []models.Conversation{
		{ID: "c1", TenantID: "shop-1"},
		{ID: "c2", TenantID: "shop-1"},
	}

	if err := tenantConflicts(convs, map[string]string{"c1": "shop-1", "c2": "shop-1"}); err != nil {
		t.Fatalf("same tenant must pass, got %v", err)
	}
	if err := tenantConflicts(convs, map[string]string{}); err != nil {
		t.Fatalf("new conversations must pass, got %v", err)
	}

	err := tenantConflicts(convs, map[string]string{"c1": "shop-1", "c2": "shop-2"})
	if !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
}
