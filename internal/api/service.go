package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aidoapp/aido-go/internal/auth"
	"github.com/aidoapp/aido-go/internal/client"
	"github.com/aidoapp/aido-go/internal/secrets"
)

// Service exposes the Aido API surface. All calls run through the
// authenticated client and inherit its refresh-and-retry behavior.
type Service struct {
	client *client.Client
	store  secrets.Store
}

// New creates an API service on top of the given client and secret store
func New(c *client.Client, store secrets.Store) *Service {
	return &Service{client: c, store: store}
}

func jsonBody(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return b, nil
}

// Login authenticates with email/password and persists the issued token
// pair to the secret store.
func (s *Service) Login(ctx context.Context, email, password string) error {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	var pair auth.TokenPair
	req := &client.Request{Method: http.MethodPost, Path: "/auth/login", Body: body}
	if err := s.client.DoJSON(ctx, req, &pair); err != nil {
		return err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return fmt.Errorf("login response is missing tokens")
	}
	return auth.SaveTokenPair(ctx, s.store, pair)
}

// Logout clears the stored token pair. The backend session, if any, simply
// expires; no server call is made.
func (s *Service) Logout(ctx context.Context) error {
	return auth.ClearTokenPair(ctx, s.store)
}

// Me returns the authenticated user's profile
func (s *Service) Me(ctx context.Context) (*User, error) {
	var user User
	req := &client.Request{Method: http.MethodGet, Path: "/auth/me"}
	if err := s.client.DoJSON(ctx, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Todos lists the user's todos
func (s *Service) Todos(ctx context.Context) ([]Todo, error) {
	var todos []Todo
	req := &client.Request{Method: http.MethodGet, Path: "/todos"}
	if err := s.client.DoJSON(ctx, req, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// CreateTodo creates a todo and returns the stored version
func (s *Service) CreateTodo(ctx context.Context, todo Todo) (*Todo, error) {
	body, err := jsonBody(todo)
	if err != nil {
		return nil, err
	}
	var created Todo
	req := &client.Request{Method: http.MethodPost, Path: "/todos", Body: body}
	if err := s.client.DoJSON(ctx, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CompleteTodo marks a todo as done
func (s *Service) CompleteTodo(ctx context.Context, id string) error {
	req := &client.Request{Method: http.MethodPatch, Path: "/todos/" + url.PathEscape(id) + "/complete"}
	return s.client.DoJSON(ctx, req, nil)
}

// DeleteTodo removes a todo
func (s *Service) DeleteTodo(ctx context.Context, id string) error {
	req := &client.Request{Method: http.MethodDelete, Path: "/todos/" + url.PathEscape(id)}
	return s.client.DoJSON(ctx, req, nil)
}

// Friends lists the users the authenticated user follows
func (s *Service) Friends(ctx context.Context) ([]Friend, error) {
	var friends []Friend
	req := &client.Request{Method: http.MethodGet, Path: "/friends"}
	if err := s.client.DoJSON(ctx, req, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// Follow starts following another user
func (s *Service) Follow(ctx context.Context, userID string) error {
	req := &client.Request{Method: http.MethodPost, Path: "/friends/" + url.PathEscape(userID)}
	return s.client.DoJSON(ctx, req, nil)
}

// Unfollow stops following a user
func (s *Service) Unfollow(ctx context.Context, userID string) error {
	req := &client.Request{Method: http.MethodDelete, Path: "/friends/" + url.PathEscape(userID)}
	return s.client.DoJSON(ctx, req, nil)
}

// Cheer sends an encouragement ping to a friend
func (s *Service) Cheer(ctx context.Context, userID string) error {
	req := &client.Request{Method: http.MethodPost, Path: "/friends/" + url.PathEscape(userID) + "/cheer"}
	return s.client.DoJSON(ctx, req, nil)
}

// Nudge sends a reminder ping to a friend
func (s *Service) Nudge(ctx context.Context, userID string) error {
	req := &client.Request{Method: http.MethodPost, Path: "/friends/" + url.PathEscape(userID) + "/nudge"}
	return s.client.DoJSON(ctx, req, nil)
}

// Notifications lists the user's in-app notifications
func (s *Service) Notifications(ctx context.Context) ([]Notification, error) {
	var notifications []Notification
	req := &client.Request{Method: http.MethodGet, Path: "/notifications"}
	if err := s.client.DoJSON(ctx, req, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead marks a single notification as read
func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	req := &client.Request{Method: http.MethodPatch, Path: "/notifications/" + url.PathEscape(id) + "/read"}
	return s.client.DoJSON(ctx, req, nil)
}
