package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
)

const TestPassword = "password123"

func SeedUser(t *testing.T, db *sql.DB, email, name string, role domain.UserRole) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func SeedCustomer(t *testing.T, db *sql.DB, name, email string) *domain.Customer {
	t.Helper()

	c := &domain.Customer{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if email != "" {
		c.Email = &email
	}

	_, err := db.Exec(
		`INSERT INTO customers (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Email, c.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed customer %s: %v", name, err)
	}
	return c
}

func SeedSettings(t *testing.T, db *sql.DB, values map[string]string) {
	t.Helper()

	for k, v := range values {
		_, err := db.Exec(
			`INSERT INTO loyalty_settings (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			k, v,
		)
		if err != nil {
			t.Fatalf("seed setting %s: %v", k, err)
		}
	}
}

func CountLoyaltyEntries(t *testing.T, db *sql.DB, customerID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM loyalty_transactions WHERE customer_id = $1`, customerID).Scan(&count)
	if err != nil {
		t.Fatalf("count loyalty entries for %s: %v", customerID, err)
	}
	return count
}
