package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"pgx match", &pgconn.PgError{Code: "23505", ConstraintName: "uq_purchases_product_id"}, "uq_purchases_product_id", true},
		{"pgx other constraint", &pgconn.PgError{Code: "23505", ConstraintName: "uq_users_email"}, "uq_purchases_product_id", false},
		{"pgx other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"pq wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "uq_products_asset_id"}), "uq_products_asset_id", true},
		{"sqlite", errors.New("UNIQUE constraint failed: purchases.product_id"), "uq_purchases_product_id", true},
		{"unrelated", errors.New("connection reset"), "", false},
	}
	for _, tt := range tests {
		if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("load: %w", gorm.ErrRecordNotFound)) {
		t.Fatalf("expected wrapped not found to match")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatalf("unexpected match")
	}
}
