// Package testutil holds helpers for tests that run against a real Postgres.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"brewedAtAPI/internal/database"
)

// ClerkIDPrefix marks users created by tests so CleanupTestDB can find them.
const ClerkIDPrefix = "user_test_"

// SetupTestDB migrates and connects to TEST_DATABASE_URL. The test is skipped
// when the variable is not set.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := database.Migrate(dbURL); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	pool, err := database.Connect(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	return pool
}

// CleanupTestDB removes test users (their check-ins, entries and ledger rows
// cascade) and closes the pool.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM users WHERE clerk_id LIKE $1", ClerkIDPrefix+"%")
	if err != nil {
		t.Logf("Warning: failed to cleanup test data: %v", err)
	}
	pool.Close()
}

func NewClerkID() string {
	return ClerkIDPrefix + time.Now().Format("20060102150405.000000")
}

// MockClerkWebhookPayload builds an unsigned Clerk webhook body.
func MockClerkWebhookPayload(eventType, clerkID string) []byte {
	switch eventType {
	case "user.created", "user.updated":
		return []byte(fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"first_name": "Test",
				"last_name": "User",
				"email_addresses": [{
					"id": "email_123",
					"email_address": "%s@example.com",
					"verification": {"status": "verified"}
				}],
				"primary_email_address_id": "email_123",
				"username": "%s",
				"image_url": "https://example.com/image.jpg"
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, clerkID, clerkID, eventType))
	case "user.deleted":
		return []byte(fmt.Sprintf(`{"data": {"id": "%s", "deleted": true}, "object": "event", "type": "%s"}`, clerkID, eventType))
	}
	return nil
}
