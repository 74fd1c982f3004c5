// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package portal is the typed client of the portal identity service.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/internal/request"
)

// Doer executes classified requests. Implemented by *request.Executor.
type Doer interface {
	Do(ctx context.Context, req request.Request) (*request.Response, error)
}

// Client calls the identity service endpoints.
type Client struct {
	doer Doer
}

// NewClient creates a Client on top of doer.
func NewClient(doer Doer) (*Client, error) {
	if doer == nil {
		return nil, oops.Code("PORTAL_CLIENT_INVALID").Errorf("request executor is required")
	}
	return &Client{doer: doer}, nil
}

// LoginResult is a successful login.
type LoginResult struct {
	Identity identity.Identity
	// Token is empty when the service relies on cookie transport only.
	Token   string
	Message string
}

// StudentSignup is the payload of a student self-registration.
type StudentSignup struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	RollID       string   `json:"roll_id"`
	StudentClass string   `json:"student_class"`
	Subjects     []string `json:"subjects"`
}

// Validate checks the fields the service requires.
func (s StudentSignup) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(s.Name) == "" {
		fields["name"] = "is required"
	}
	if !strings.Contains(s.Email, "@") {
		fields["email"] = "must be an email address"
	}
	if s.Password == "" {
		fields["password"] = "is required"
	}
	if strings.TrimSpace(s.RollID) == "" {
		fields["roll_id"] = "is required"
	}
	if strings.TrimSpace(s.StudentClass) == "" {
		fields["student_class"] = "is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return &request.Error{
		Kind:    request.KindValidation,
		Message: "Please complete the registration form.",
		Fields:  fields,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	User      json.RawMessage `json:"user"`
	AuthToken string          `json:"auth_token"`
}

type checkAuthResponse struct {
	Success       bool            `json:"success"`
	Authenticated bool            `json:"authenticated"`
	Message       string          `json:"message"`
	User          json.RawMessage `json:"user"`
}

type signupResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Student json.RawMessage `json:"student"`
}

// Login authenticates against the role-scoped login endpoint. A rejected
// login is a KindValidation failure carrying the server's message; a 401 on
// this endpoint means bad credentials, not an expired session.
func (c *Client) Login(ctx context.Context, role identity.Role, email, password string) (*LoginResult, error) {
	if !role.IsValid() {
		return nil, &request.Error{Kind: request.KindValidation, Message: "Please choose a valid role."}
	}

	resp, err := c.doer.Do(ctx, request.Request{
		Method:     http.MethodPost,
		Path:       "/login/" + string(role),
		Body:       credentials{Email: email, Password: password},
		Idempotent: true,
		Endpoint:   "login",
	})
	if err != nil {
		if rerr, ok := request.AsError(err); ok && rerr.Kind == request.KindAuthRequired {
			return nil, &request.Error{
				Kind:     request.KindValidation,
				Status:   rerr.Status,
				Message:  rerr.Message,
				Fields:   rerr.Fields,
				Attempts: rerr.Attempts,
				Err:      rerr,
			}
		}
		return nil, err
	}

	var body loginResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, &request.Error{Kind: request.KindValidation, Status: resp.Status, Message: body.Message}
	}

	id, err := decodeIdentity(body.User, role, resp.Status)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Identity: id, Token: body.AuthToken, Message: body.Message}, nil
}

// CheckAuth validates the current session. An unauthenticated answer is a
// KindAuthRequired failure. fallback is the role assumed for a user the
// service returns without one, normally the role of the cached identity.
func (c *Client) CheckAuth(ctx context.Context, token string, fallback identity.Role) (identity.Identity, error) {
	resp, err := c.doer.Do(ctx, request.Request{
		Method:   http.MethodGet,
		Path:     "/check-auth",
		Token:    token,
		Endpoint: "check-auth",
	})
	if err != nil {
		return nil, err
	}

	var body checkAuthResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if !body.Success || !body.Authenticated {
		return nil, &request.Error{Kind: request.KindAuthRequired, Status: resp.Status, Message: body.Message}
	}
	return decodeIdentity(body.User, fallback, resp.Status)
}

// Logout tells the service to end the session. Only the status matters.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.doer.Do(ctx, request.Request{
		Method:     http.MethodPost,
		Path:       "/logout",
		Token:      token,
		Idempotent: true,
		Endpoint:   "logout",
	})
	return err
}

// SignupStudent registers a student. The returned student is nil when the
// service accepted the signup without echoing the account.
func (c *Client) SignupStudent(ctx context.Context, in StudentSignup) (*identity.Student, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.doer.Do(ctx, request.Request{
		Method:   http.MethodPost,
		Path:     "/signup/student",
		Body:     in,
		Endpoint: "signup",
	})
	if err != nil {
		return nil, err
	}

	var body signupResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, &request.Error{Kind: request.KindValidation, Status: resp.Status, Message: body.Message}
	}
	if isAbsent(body.Student) {
		return nil, nil
	}

	id, err := decodeIdentity(body.Student, identity.RoleStudent, resp.Status)
	if err != nil {
		return nil, err
	}
	student, ok := id.(*identity.Student)
	if !ok {
		return nil, &request.Error{
			Kind:   request.KindServiceUnavailable,
			Status: resp.Status,
			Err:    errors.New("signup returned a non-student identity"),
		}
	}
	return student, nil
}

func decodeIdentity(raw json.RawMessage, fallback identity.Role, status int) (identity.Identity, error) {
	if isAbsent(raw) {
		return nil, &request.Error{
			Kind:   request.KindServiceUnavailable,
			Status: status,
			Err:    errors.New("response is missing the user"),
		}
	}
	id, err := identity.Decode(raw, fallback)
	if err != nil {
		return nil, &request.Error{Kind: request.KindServiceUnavailable, Status: status, Err: err}
	}
	return id, nil
}

func isAbsent(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
