package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"converge/internal/model"
	"converge/internal/pkg/jwtutil"
)

type fakeUserStore struct {
	byEmail map[string]*model.User
	nextID  uint
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*model.User), nextID: 1}
}

func (s *fakeUserStore) Create(user *model.User) error {
	user.ID = s.nextID
	s.nextID++
	s.byEmail[user.Email] = user
	return nil
}

func (s *fakeUserStore) GetByEmail(email string) (*model.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	return user, nil
}

func (s *fakeUserStore) GetByID(id uint) (*model.User, error) {
	for _, user := range s.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

type fakeProvisioner struct {
	emails []string
	err    error
}

func (p *fakeProvisioner) CreateUser(_ context.Context, email string) error {
	p.emails = append(p.emails, email)
	return p.err
}

func newTestAuthService(store *fakeUserStore, provisioner UserProvisioner) *AuthService {
	return NewAuthService(store, provisioner, "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestAuthService(store, nil)

	registered, err := svc.Register(context.Background(), RegisterInput{
		Email:    "User@Example.com",
		Password: "supersecret",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if registered.User.Email != "user@example.com" {
		t.Fatalf("email = %q, want lowercased", registered.User.Email)
	}
	if registered.Token == "" {
		t.Fatal("registration should hand out a token")
	}

	claims, err := jwtutil.ParseToken("test-secret", registered.Token)
	if err != nil {
		t.Fatalf("ParseToken returned error: %v", err)
	}
	if claims.Email != "user@example.com" || claims.UserID != registered.User.ID {
		t.Fatalf("claims = %+v", claims)
	}

	logged, err := svc.Login(LoginInput{Email: "user@example.com", Password: "supersecret"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if logged.User.ID != registered.User.ID {
		t.Fatal("login resolved a different user")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestAuthService(store, nil)

	input := RegisterInput{Email: "user@example.com", Password: "supersecret"}
	if _, err := svc.Register(context.Background(), input); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}
	_, err := svc.Register(context.Background(), RegisterInput{Email: "USER@example.com", Password: "othersecret"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("err = %v, want ErrEmailExists", err)
	}
}

func TestRegisterShortPassword(t *testing.T) {
	svc := newTestAuthService(newFakeUserStore(), nil)
	_, err := svc.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "short"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRegisterProvisionsDelegatedUser(t *testing.T) {
	provisioner := &fakeProvisioner{}
	svc := newTestAuthService(newFakeUserStore(), provisioner)

	if _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "User@Example.com",
		Password: "supersecret",
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if len(provisioner.emails) != 1 || provisioner.emails[0] != "user@example.com" {
		t.Fatalf("provisioned emails = %v", provisioner.emails)
	}
}

func TestRegisterSurvivesProvisionFailure(t *testing.T) {
	provisioner := &fakeProvisioner{err: errors.New("upstream down")}
	store := newFakeUserStore()
	svc := newTestAuthService(store, provisioner)

	result, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "supersecret",
	})
	if err != nil {
		t.Fatalf("provisioning failure must not block registration, got %v", err)
	}
	if result.Token == "" {
		t.Fatal("registration should still hand out a token")
	}
	if _, ok := store.byEmail["user@example.com"]; !ok {
		t.Fatal("user should exist locally despite the upstream failure")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestAuthService(newFakeUserStore(), nil)
	if _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "supersecret",
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, err := svc.Login(LoginInput{Email: "user@example.com", Password: "wrongsecret"})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestAuthService(newFakeUserStore(), nil)
	_, err := svc.Login(LoginInput{Email: "ghost@example.com", Password: "supersecret"})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}
