package tools

import (
	"context"
	"testing"

	"github.com/jobpilot/assistant-api/internal/model"
)

func TestAddApplicationUpsertsCompanyByName(t *testing.T) {
	r, s := newTestRegistry(t, "user-1")
	ctx := context.Background()

	// Two applications naming the same company, with different casing,
	// must share one company record.
	out := run(t, r, "add_application", map[string]any{
		"title":       "Développeur Go",
		"companyName": "Acme",
	})
	if !out["success"].(bool) {
		t.Fatalf("first add failed: %v", out)
	}
	out = run(t, r, "add_application", map[string]any{
		"title":       "SRE",
		"companyName": "acme",
	})
	if !out["success"].(bool) {
		t.Fatalf("second add failed: %v", out)
	}

	companies, err := s.ListCompanies(ctx, "user-1")
	if err != nil {
		t.Fatalf("list companies: %v", err)
	}
	if len(companies) != 1 {
		t.Fatalf("got %d companies, want exactly 1", len(companies))
	}
	if companies[0].Name != "Acme" {
		t.Errorf("company name = %q, want original casing %q", companies[0].Name, "Acme")
	}

	apps, err := s.ListApplications(ctx, "user-1")
	if err != nil {
		t.Fatalf("list applications: %v", err)
	}
	for _, a := range apps {
		if a.CompanyID != companies[0].ID {
			t.Errorf("application %q not linked to the shared company", a.Title)
		}
	}
}

func TestAddApplicationStampsAppliedAt(t *testing.T) {
	r, s := newTestRegistry(t, "user-1")
	ctx := context.Background()

	out := run(t, r, "add_application", map[string]any{
		"title":  "Développeur Go",
		"status": "applied",
	})
	if !out["success"].(bool) {
		t.Fatalf("add failed: %v", out)
	}

	apps, err := s.ListApplications(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("got %d applications, want 1", len(apps))
	}
	if apps[0].AppliedAt == nil {
		t.Error("applied_at not stamped for status=applied")
	}
}

func TestAddApplicationRejectsUnknownStatus(t *testing.T) {
	r, _ := newTestRegistry(t, "user-1")

	out := run(t, r, "add_application", map[string]any{
		"title":  "Développeur Go",
		"status": "ghosted",
	})
	if out["success"].(bool) {
		t.Fatalf("expected failure for unknown status, got %v", out)
	}
}

func TestUpdateApplicationTransitionsToApplied(t *testing.T) {
	r, s := newTestRegistry(t, "user-1")
	ctx := context.Background()

	out := run(t, r, "add_application", map[string]any{"title": "Développeur Go"})
	if !out["success"].(bool) {
		t.Fatalf("add failed: %v", out)
	}
	app := out["application"].(map[string]any)
	id := app["id"].(string)

	out = run(t, r, "update_application", map[string]any{
		"applicationId": id,
		"status":        "applied",
	})
	if !out["success"].(bool) {
		t.Fatalf("update failed: %v", out)
	}
	if out["message"] != `Candidature "Développeur Go" mise à jour avec succès.` {
		t.Errorf("message = %q", out["message"])
	}

	got, err := s.GetApplication(ctx, "user-1", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusApplied {
		t.Errorf("status = %q, want applied", got.Status)
	}
	if got.AppliedAt == nil {
		t.Error("applied_at not stamped on transition to applied")
	}
}

func TestUpdateApplicationUnknownID(t *testing.T) {
	r, _ := newTestRegistry(t, "user-1")

	out := run(t, r, "update_application", map[string]any{
		"applicationId": "00000000-0000-0000-0000-000000000000",
		"status":        "applied",
	})
	if out["success"].(bool) {
		t.Fatalf("expected failure, got %v", out)
	}
	if out["message"] != "Candidature non trouvée." {
		t.Errorf("message = %q", out["message"])
	}
}
