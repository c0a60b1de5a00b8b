package service

import (
	"errors"
	"testing"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
)

func TestExtractStructured(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string // "" means expect ErrMalformedAssistantOutput
	}{
		{
			name: "bare object",
			in:   `{"answer": 42}`,
			want: `{"answer": 42}`,
		},
		{
			name: "fenced with prose",
			in:   "Here you go:\n```json\n{\"answer\": 42}\n```",
			want: `{"answer": 42}`,
		},
		{
			name: "object surrounded by prose",
			in:   `Sure! The result is {"score": 7, "verdict": "pass"} as requested.`,
			want: `{"score": 7, "verdict": "pass"}`,
		},
		{
			name: "nested object",
			in:   `{"a": {"b": [1, 2, {"c": true}]}}`,
			want: `{"a": {"b": [1, 2, {"c": true}]}}`,
		},
		{
			name: "stray brace in trailing prose",
			in:   `{"ok": true} and that closes the matter}`,
			want: `{"ok": true}`,
		},
		{
			name: "braces inside string values",
			in:   `{"text": "use {curly} braces", "n": 1}`,
			want: `{"text": "use {curly} braces", "n": 1}`,
		},
		{
			name: "no object at all",
			in:   "I could not produce a structured answer, sorry.",
			want: "",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "unbalanced braces only",
			in:   `{"broken": `,
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractStructured(tc.in)
			if tc.want == "" {
				if !errors.Is(err, domain.ErrMalformedAssistantOutput) {
					t.Fatalf("expected ErrMalformedAssistantOutput, got result=%q err=%v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if string(got) != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
