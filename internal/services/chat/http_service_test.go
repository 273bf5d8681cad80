package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"intake/internal/logging"
	"intake/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler, maxAttempts int) (*RESTClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewRESTClientWithDoer(server.URL, "token-1", "guild-1", maxAttempts, server.Client(), logging.NewNop())
	return client, server
}

func TestSendMessageDecodesResponse(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody sendMessageRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Message{ID: "msg-1", ChannelID: "chan-1"})
	}), 1)

	msg, err := client.SendMessage(context.Background(), "chan-1", "hello", Embed{Title: "Application"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.ID != "msg-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if gotAuth != "Bot token-1" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/channels/chan-1/messages" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody.Content != "hello" || len(gotBody.Embeds) != 1 {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestAddReactionRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}), 5)

	if err := client.AddReaction(context.Background(), "chan-1", "msg-1", "✅"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestAddReactionGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "0.01")
		w.WriteHeader(http.StatusTooManyRequests)
	}), 2)

	err := client.AddReaction(context.Background(), "chan-1", "msg-1", "✅")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestMemberNotFoundTagged(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown member", http.StatusNotFound)
	}), 1)

	_, err := client.Member(context.Background(), "user-1")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAddMemberRolePermissionTagged(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing permission", http.StatusForbidden)
	}), 1)

	err := client.AddMemberRole(context.Background(), "user-1", "role-1")
	if !errors.Is(err, services.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestReactionUsersRoundTrip(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Member{
			{ID: "user-1", DisplayName: "Ada"},
			{ID: "user-2", DisplayName: "Grace", Bot: true},
		})
	}), 1)

	members, err := client.ReactionUsers(context.Background(), "chan-1", "msg-1", "✅")
	if err != nil {
		t.Fatalf("ReactionUsers: %v", err)
	}
	if len(members) != 2 || members[1].Bot != true {
		t.Fatalf("unexpected members %+v", members)
	}
}
