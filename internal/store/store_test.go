package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jobpilot/assistant-api/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1", "Bonjour")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("expected non-empty conversation ID")
	}
	if conv.Title != "Bonjour" {
		t.Errorf("title = %q, want %q", conv.Title, "Bonjour")
	}

	got, err := s.GetConversation(ctx, "user-1", conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != conv.ID {
		t.Errorf("got ID %q, want %q", got.ID, conv.ID)
	}
}

func TestConversationOwnerScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "alice", "test")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another user's lookup must be indistinguishable from a missing
	// conversation.
	if _, err := s.GetConversation(ctx, "bob", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user get: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetConversationWithMessages(ctx, "bob", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user get with messages: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteConversation(ctx, "bob", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user delete: err = %v, want ErrNotFound", err)
	}

	// The owner still sees it.
	if _, err := s.GetConversation(ctx, "alice", conv.ID); err != nil {
		t.Errorf("owner get after failed cross-user delete: %v", err)
	}
}

func TestMessageOrderingIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1", "ordering")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Rapid appends can land on the same wall-clock instant; order
	// must still be total.
	contents := []string{"a", "b", "c", "d", "e"}
	for _, c := range contents {
		if _, err := s.AppendMessage(ctx, conv.ID, model.RoleUser, c); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}

	msgs, err := s.Messages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(contents))
	}
	for i, m := range msgs {
		if m.Content != contents[i] {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Content, contents[i])
		}
		if i > 0 && !msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Errorf("msgs[%d].CreatedAt not after msgs[%d]", i, i-1)
		}
	}
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateConversation(ctx, "user-1", "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.CreateConversation(ctx, "user-1", "second")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Appending to the first conversation bumps it to the top.
	if _, err := s.AppendMessage(ctx, first.ID, model.RoleUser, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	list, err := s.ListConversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list))
	}
	if list[0].ID != first.ID {
		t.Errorf("list[0] = %q, want recently active %q", list[0].ID, first.ID)
	}
	if list[1].ID != second.ID {
		t.Errorf("list[1] = %q, want %q", list[1].ID, second.ID)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1", "doomed")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, model.RoleUser, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, model.RoleAssistant, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.DeleteConversation(ctx, "user-1", conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetConversation(ctx, "user-1", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}

	msgs, err := s.Messages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d orphaned messages, want 0", len(msgs))
	}
}

func TestFindCompanyByNameIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateCompany(ctx, "user-1", NewCompany{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, name := range []string{"Acme", "acme", "ACME"} {
		found, err := s.FindCompanyByName(ctx, "user-1", name)
		if err != nil {
			t.Fatalf("find %q: %v", name, err)
		}
		if found.ID != created.ID {
			t.Errorf("find %q: got ID %q, want %q", name, found.ID, created.ID)
		}
	}

	if _, err := s.FindCompanyByName(ctx, "user-1", "Globex"); !errors.Is(err, ErrNotFound) {
		t.Errorf("find missing: err = %v, want ErrNotFound", err)
	}
	if _, err := s.FindCompanyByName(ctx, "user-2", "Acme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user find: err = %v, want ErrNotFound", err)
	}
}

func TestCreateApplicationDefaultsToDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app, err := s.CreateApplication(ctx, "user-1", NewJobApplication{Title: "Backend Engineer"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if app.Status != model.StatusDraft {
		t.Errorf("status = %q, want %q", app.Status, model.StatusDraft)
	}
	if app.AppliedAt != nil {
		t.Errorf("applied_at = %v, want nil", app.AppliedAt)
	}
}

func TestUpdateApplicationPartial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app, err := s.CreateApplication(ctx, "user-1", NewJobApplication{
		Title: "Backend Engineer",
		Notes: "original notes",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	status := model.StatusApplied
	updated, err := s.UpdateApplication(ctx, "user-1", app.ID, UpdateJobApplication{Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != model.StatusApplied {
		t.Errorf("status = %q, want %q", updated.Status, model.StatusApplied)
	}
	if updated.Notes != "original notes" {
		t.Errorf("notes = %q, want untouched original", updated.Notes)
	}
	if updated.Title != "Backend Engineer" {
		t.Errorf("title = %q, want untouched original", updated.Title)
	}

	if _, err := s.UpdateApplication(ctx, "user-1", "00000000-0000-0000-0000-000000000000", UpdateJobApplication{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestListApplicationsJoinsCompanyName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	company, err := s.CreateCompany(ctx, "user-1", NewCompany{Name: "Acme"})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	if _, err := s.CreateApplication(ctx, "user-1", NewJobApplication{
		Title:     "Backend Engineer",
		CompanyID: company.ID,
	}); err != nil {
		t.Fatalf("create application: %v", err)
	}
	if _, err := s.CreateApplication(ctx, "user-1", NewJobApplication{Title: "Freelance"}); err != nil {
		t.Fatalf("create application: %v", err)
	}

	apps, err := s.ListApplications(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d applications, want 2", len(apps))
	}

	byTitle := make(map[string]string)
	for _, a := range apps {
		byTitle[a.Title] = a.CompanyName
	}
	if byTitle["Backend Engineer"] != "Acme" {
		t.Errorf("company name = %q, want %q", byTitle["Backend Engineer"], "Acme")
	}
	if byTitle["Freelance"] != "" {
		t.Errorf("company name = %q, want empty for companyless application", byTitle["Freelance"])
	}
}

func TestListExperiencesWithSkills(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddExperience(ctx, "user-1", model.Experience{
		Title:     "Développeur",
		Company:   "Acme",
		StartDate: "2022-01",
		Current:   true,
		Skills:    []string{"Go", "SQL"},
	}); err != nil {
		t.Fatalf("add experience: %v", err)
	}

	experiences, err := s.ListExperiences(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(experiences) != 1 {
		t.Fatalf("got %d experiences, want 1", len(experiences))
	}
	if got := experiences[0].Skills; len(got) != 2 {
		t.Errorf("skills = %v, want 2 entries", got)
	}

	other, err := s.ListExperiences(ctx, "user-2")
	if err != nil {
		t.Fatalf("list other user: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("got %d experiences for other user, want 0", len(other))
	}
}
