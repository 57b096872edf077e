package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// User is an operator account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Customer is one configured voice bot tenant.
type Customer struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	BotName     string    `json:"bot_name"`
	Personality string    `json:"personality"`
	Greeting    string    `json:"greeting"`
	VoiceID     string    `json:"voice_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps users and customers in flat JSON files under a data
// directory. Writes replace the whole file; concurrent writers in the
// same process are serialized, different processes are last-write-wins.
type Store struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *Store) usersPath() string     { return filepath.Join(s.dir, "users.json") }
func (s *Store) customersPath() string { return filepath.Join(s.dir, "customers.json") }

func readFile[T any](path string) (map[string]T, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	out := map[string]T{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func writeFile[T any](path string, records map[string]T) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

// CreateUser stores a new account. Emails must be unique.
func (s *Store) CreateUser(u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := readFile[User](s.usersPath())
	if err != nil {
		return User{}, err
	}
	for _, existing := range users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, fmt.Errorf("email %s already registered", u.Email)
		}
	}
	u.ID = newID()
	u.CreatedAt = time.Now().UTC()
	users[u.ID] = u
	if err := writeFile(s.usersPath(), users); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := readFile[User](s.usersPath())
	if err != nil {
		return User{}, err
	}
	u, ok := users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := readFile[User](s.usersPath())
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *Store) CreateCustomer(c Customer) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := readFile[Customer](s.customersPath())
	if err != nil {
		return Customer{}, err
	}
	c.ID = newID()
	c.CreatedAt = time.Now().UTC()
	customers[c.ID] = c
	if err := writeFile(s.customersPath(), customers); err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (s *Store) GetCustomer(id string) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := readFile[Customer](s.customersPath())
	if err != nil {
		return Customer{}, err
	}
	c, ok := customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCustomers() ([]Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := readFile[Customer](s.customersPath())
	if err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(customers))
	for _, c := range customers {
		out = append(out, c)
	}
	return out, nil
}

// UpdateCustomer replaces mutable fields on an existing customer.
func (s *Store) UpdateCustomer(id string, update Customer) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := readFile[Customer](s.customersPath())
	if err != nil {
		return Customer{}, err
	}
	c, ok := customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	if update.CompanyName != "" {
		c.CompanyName = update.CompanyName
	}
	if update.BotName != "" {
		c.BotName = update.BotName
	}
	if update.Personality != "" {
		c.Personality = update.Personality
	}
	if update.Greeting != "" {
		c.Greeting = update.Greeting
	}
	if update.VoiceID != "" {
		c.VoiceID = update.VoiceID
	}
	customers[id] = c
	if err := writeFile(s.customersPath(), customers); err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (s *Store) DeleteCustomer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := readFile[Customer](s.customersPath())
	if err != nil {
		return err
	}
	if _, ok := customers[id]; !ok {
		return ErrNotFound
	}
	delete(customers, id)
	return writeFile(s.customersPath(), customers)
}
