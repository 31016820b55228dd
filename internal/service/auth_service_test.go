package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/config"
	"github.com/ceremonyhouse/splitpay/internal/models"
	"github.com/ceremonyhouse/splitpay/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:auth_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey:   "auth-test-secret-key-0123456789abcdef",
			ExpireHours: 2,
		},
	}
	svc := NewAuthService(cfg, repository.NewAdminRepository(db))
	return svc, db
}

func createTestAdmin(t *testing.T, svc *AuthService, db *gorm.DB, username, password string) models.Admin {
	t.Helper()

	hash, err := svc.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	admin := models.Admin{Username: username, PasswordHash: hash}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	return admin
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	created := createTestAdmin(t, svc, db, "operator", "s3cret-pass")

	admin, token, expiresAt, err := svc.Login("operator", "s3cret-pass")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if admin.ID != created.ID {
		t.Fatalf("admin id want %d got %d", created.ID, admin.ID)
	}
	if !expiresAt.After(time.Now().Add(time.Hour)) {
		t.Fatalf("expiry should honor expire_hours, got %v", expiresAt)
	}
	if admin.LastLoginAt == nil {
		t.Fatalf("last login time must be recorded")
	}

	claims, err := svc.ParseJWT(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.AdminID != created.ID || claims.Username != "operator" {
		t.Fatalf("claims want %d/operator got %d/%s", created.ID, claims.AdminID, claims.Username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	createTestAdmin(t, svc, db, "operator", "s3cret-pass")

	if _, _, _, err := svc.Login("operator", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password want ErrInvalidCredentials got %v", err)
	}
	if _, _, _, err := svc.Login("nobody", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user want ErrInvalidCredentials got %v", err)
	}
}

func TestParseJWTRejectsForeignSecret(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	admin := createTestAdmin(t, svc, db, "operator", "s3cret-pass")

	other := NewAuthService(&config.Config{
		JWT: config.JWTConfig{SecretKey: "another-secret-key-entirely-padpadpad", ExpireHours: 2},
	}, nil)
	token, _, err := other.GenerateJWT(&admin)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if _, err := svc.ParseJWT(token); err == nil {
		t.Fatalf("token signed with a different secret must be rejected")
	}
}

func TestChangePassword(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	admin := createTestAdmin(t, svc, db, "operator", "old-pass")

	if err := svc.ChangePassword(admin.ID, "wrong", "new-pass"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong old password want ErrInvalidPassword got %v", err)
	}
	if err := svc.ChangePassword(admin.ID+99, "old-pass", "new-pass"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown admin want ErrNotFound got %v", err)
	}
	if err := svc.ChangePassword(admin.ID, "old-pass", "new-pass"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, _, _, err := svc.Login("operator", "new-pass"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, _, _, err := svc.Login("operator", "old-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
}
