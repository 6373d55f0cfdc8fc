package llm

import (
	"errors"
	"net/http"
	"testing"

	"google.golang.org/genai"
)

func TestBuildPromptIsRaw(t *testing.T) {
	title := "DV #1"
	statement := "Plot a line chart."
	msgs := BuildPrompt("how do I plot?", &title, &statement)

	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "how do I plot?" {
		t.Fatalf("message = %+v", msgs[0])
	}
}

func TestToContentsRoles(t *testing.T) {
	contents := toContents([]Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
		{Role: "anything-else", Content: "q2"},
	})
	if len(contents) != 3 {
		t.Fatalf("contents = %d", len(contents))
	}
	if contents[0].Role != genai.RoleUser {
		t.Fatalf("role 0 = %s", contents[0].Role)
	}
	if contents[1].Role != genai.RoleModel {
		t.Fatalf("role 1 = %s", contents[1].Role)
	}
	// Unknown roles forward as user turns.
	if contents[2].Role != genai.RoleUser {
		t.Fatalf("role 2 = %s", contents[2].Role)
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api 429", genai.APIError{Code: http.StatusTooManyRequests}, true},
		{"api resource exhausted", genai.APIError{Code: 0, Status: "RESOURCE_EXHAUSTED"}, true},
		{"api 400", genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}, false},
		{"wrapped text 429", errors.New("request failed with status 429"), true},
		{"plain", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Fatalf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
