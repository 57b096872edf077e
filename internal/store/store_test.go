package store

import (
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	return s
}

func TestCustomerCRUD(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateCustomer(Customer{
		CompanyName: "Acme",
		BotName:     "Eva",
		Personality: "friendly and concise",
		Greeting:    "Welcome to Acme!",
		VoiceID:     "rachel",
	})
	if err != nil {
		t.Fatalf("CreateCustomer error = %v", err)
	}
	if len(created.ID) != 8 {
		t.Fatalf("ID = %q, want 8 chars", created.ID)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not set")
	}

	got, err := s.GetCustomer(created.ID)
	if err != nil {
		t.Fatalf("GetCustomer error = %v", err)
	}
	if got.CompanyName != "Acme" || got.BotName != "Eva" {
		t.Fatalf("got = %+v", got)
	}

	updated, err := s.UpdateCustomer(created.ID, Customer{Greeting: "Hi from Acme!"})
	if err != nil {
		t.Fatalf("UpdateCustomer error = %v", err)
	}
	if updated.Greeting != "Hi from Acme!" {
		t.Fatalf("Greeting = %q", updated.Greeting)
	}
	if updated.BotName != "Eva" {
		t.Fatalf("BotName lost on update: %+v", updated)
	}

	all, err := s.ListCustomers()
	if err != nil || len(all) != 1 {
		t.Fatalf("ListCustomers = %v, %v", all, err)
	}

	if err := s.DeleteCustomer(created.ID); err != nil {
		t.Fatalf("DeleteCustomer error = %v", err)
	}
	if _, err := s.GetCustomer(created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCustomer after delete = %v, want ErrNotFound", err)
	}
}

func TestCustomerNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetCustomer("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateCustomer("missing", Customer{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteCustomer("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUsersUniqueEmail(t *testing.T) {
	s := newTestStore(t)

	u, err := s.CreateUser(User{Email: "ops@example.com", Name: "Ops", PasswordHash: "abc"})
	if err != nil {
		t.Fatalf("CreateUser error = %v", err)
	}

	if _, err := s.CreateUser(User{Email: "OPS@example.com", Name: "Dup"}); err == nil {
		t.Fatal("expected duplicate email error")
	}

	byEmail, err := s.GetUserByEmail("ops@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail error = %v", err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("ID = %q, want %q", byEmail.ID, u.ID)
	}

	if _, err := s.GetUserByEmail("nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first, err := New(dir)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	created, err := first.CreateCustomer(Customer{CompanyName: "Persisted"})
	if err != nil {
		t.Fatalf("CreateCustomer error = %v", err)
	}

	second, err := New(dir)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	got, err := second.GetCustomer(created.ID)
	if err != nil {
		t.Fatalf("GetCustomer error = %v", err)
	}
	if got.CompanyName != "Persisted" {
		t.Fatalf("CompanyName = %q", got.CompanyName)
	}
}
