package converge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["email"] != "a@b.com" {
			t.Errorf("unexpected body: %v (err %v)", body, err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.CreateUser(context.Background(), "a@b.com"); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
}

func TestCreateUserAlreadyExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.CreateUser(context.Background(), "a@b.com"); err != nil {
		t.Fatalf("an existing user must not be an error, got %v", err)
	}
}

func TestCreateUserServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.CreateUser(context.Background(), "a@b.com")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestCreateConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"conv-42"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	id, err := client.CreateConversation(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("CreateConversation returned error: %v", err)
	}
	if id != "conv-42" {
		t.Fatalf("id = %q", id)
	}
}

func TestCreateConversationMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.CreateConversation(context.Background(), "a@b.com"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestCreateMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body failed: %v", err)
		}
		if body["conversationId"] != "conv-42" || body["content"] != "what is up" {
			t.Errorf("unexpected body: %v", body)
		}
		_, _ = w.Write([]byte(`{"message":"not much"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	answer, err := client.CreateMessage(context.Background(), "conv-42", "what is up")
	if err != nil {
		t.Fatalf("CreateMessage returned error: %v", err)
	}
	if answer != "not much" {
		t.Fatalf("answer = %q", answer)
	}
}

func TestCreateMessageUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if _, err := client.CreateMessage(context.Background(), "conv-42", "hello"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}
