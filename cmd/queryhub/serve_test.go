package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	queryhub "github.com/altamira-data/queryhub"
	"github.com/altamira-data/queryhub/audit"
	"github.com/altamira-data/queryhub/classify"
	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/schema"
)

func TestMain(m *testing.M) {
	logger.Silence()
	os.Exit(m.Run())
}

type fakeDirectory struct {
	users map[string]schema.Tier
}

func (d *fakeDirectory) GetUser(_ context.Context, id string) (*audit.User, error) {
	tier, ok := d.users[id]
	if !ok {
		return nil, audit.ErrUserNotFound
	}
	return &audit.User{ID: id, Clearance: tier}, nil
}

func (d *fakeDirectory) SetUser(context.Context, audit.User) error { return nil }

func (d *fakeDirectory) ListUsers(context.Context) ([]audit.User, error) { return nil, nil }

func TestAskHandlerIgnoresAssertedClearance(t *testing.T) {
	engine := &queryhub.Engine{
		Classifier: classify.New(),
		Directory:  &fakeDirectory{users: map[string]schema.Tier{"u1": schema.TierLow}},
	}
	handler := askHandler(engine)

	body := `{"text": "show me customer tax IDs", "requester_id": "u1", "clearance": "HIGH"}`
	request := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	handler(recorder, request)

	var response schema.Response
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Route != schema.RouteDenied {
		t.Errorf("route = %s, want denied: the directory clearance must win over the request body", response.Route)
	}
	if response.Success {
		t.Error("self-asserted HIGH clearance must not grant access")
	}
}

func TestAskHandlerRequiresRequester(t *testing.T) {
	engine := &queryhub.Engine{Classifier: classify.New()}
	handler := askHandler(engine)

	request := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"text": "hello"}`))
	recorder := httptest.NewRecorder()
	handler(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a missing requester id", recorder.Code)
	}
}
