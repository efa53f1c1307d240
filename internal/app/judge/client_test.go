package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, mode string, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:         srv.URL + "/",
		APIKey:          "key",
		APIHost:         "judge.example",
		Mode:            mode,
		RequestTimeout:  2 * time.Second,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 15,
		PollTimeout:     5 * time.Second,
	}, srv.Client())
}

func TestEvaluateSyncAccepted(t *testing.T) {
	var got wireRequest
	c := newTestClient(t, ModeSync, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/submissions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" || r.URL.Query().Get("base64_encoded") != "false" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-RapidAPI-Key") != "key" || r.Header.Get("X-RapidAPI-Host") != "judge.example" {
			t.Errorf("missing rapidapi headers")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"token":"tok-1","time":"0.012","status":{"id":3,"description":"Accepted"}}`)
	}))

	res, err := c.Evaluate(context.Background(), Request{LanguageID: 71, SourceCode: "print(1)", Stdin: "", ExpectedOutput: "1"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Accepted() || res.Description != "Accepted" || res.Token != "tok-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Time == nil || *res.Time != 12*time.Millisecond {
		t.Fatalf("unexpected time %v", res.Time)
	}
	if got.LanguageID != 71 || got.SourceCode != "print(1)" || got.ExpectedOutput != "1" {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestEvaluateAsyncPollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, ModeAsync, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if r.URL.Query().Get("wait") != "false" {
				t.Errorf("async mode must not wait")
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"token":"abc"}`)
		case http.MethodGet:
			if r.URL.Path != "/submissions/abc" {
				t.Errorf("unexpected poll path %s", r.URL.Path)
			}
			switch polls.Add(1) {
			case 1:
				fmt.Fprint(w, `{"status":{"id":1,"description":"In Queue"},"time":null}`)
			case 2:
				fmt.Fprint(w, `{"status":{"id":2,"description":"Processing"},"time":null}`)
			default:
				fmt.Fprint(w, `{"status":{"id":4,"description":"Wrong Answer"},"time":0.5}`)
			}
		}
	}))

	res, err := c.Evaluate(context.Background(), Request{LanguageID: 54})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.StatusID != StatusWrongAnswer || res.Description != "Wrong Answer" || res.Token != "abc" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Time == nil || *res.Time != 500*time.Millisecond {
		t.Fatalf("unexpected time %v", res.Time)
	}
	if polls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", polls.Load())
	}
}

func TestEvaluateSyncFallsBackToPollingWhenOnlyTokenReturned(t *testing.T) {
	c := newTestClient(t, ModeSync, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"token":"late"}`)
			return
		}
		fmt.Fprint(w, `{"status":{"id":6},"time":null}`)
	}))

	res, err := c.Evaluate(context.Background(), Request{LanguageID: 54})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Description != "Compilation Error" {
		t.Fatalf("expected description from vocabulary, got %q", res.Description)
	}
	if res.Time != nil {
		t.Fatalf("expected nil time, got %v", *res.Time)
	}
}

func TestEvaluatePollingGivesUpAfterMaxAttempts(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, ModeAsync, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"token":"stuck"}`)
			return
		}
		polls.Add(1)
		fmt.Fprint(w, `{"status":{"id":2,"description":"Processing"}}`)
	}))

	_, err := c.Evaluate(context.Background(), Request{})
	if !errors.Is(err, ErrDispatchTimeout) {
		t.Fatalf("expected ErrDispatchTimeout, got %v", err)
	}
	if polls.Load() != 15 {
		t.Fatalf("expected exactly 15 polls, got %d", polls.Load())
	}
}

func TestEvaluatePollTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"token":"slow"}`)
			return
		}
		fmt.Fprint(w, `{"status":{"id":1}}`)
	}))
	defer srv.Close()
	c := NewClient(Config{
		BaseURL:         srv.URL,
		Mode:            ModeAsync,
		PollInterval:    20 * time.Millisecond,
		MaxPollAttempts: 1000,
		PollTimeout:     50 * time.Millisecond,
	}, srv.Client())

	_, err := c.Evaluate(context.Background(), Request{})
	if !errors.Is(err, ErrDispatchTimeout) {
		t.Fatalf("expected ErrDispatchTimeout, got %v", err)
	}
}

func TestEvaluateDispatchErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>`)
		},
		"no status no token": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		},
		"poll failure": func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				fmt.Fprint(w, `{"token":"t"}`)
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, ModeSync, h)
			_, err := c.Evaluate(context.Background(), Request{})
			if !errors.Is(err, ErrDispatch) {
				t.Fatalf("expected ErrDispatch, got %v", err)
			}
		})
	}
}

func TestEvaluateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	_, err := c.Evaluate(context.Background(), Request{})
	if !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected ErrDispatch, got %v", err)
	}
}

func TestAuthTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != "secret" {
			t.Errorf("missing X-Auth-Token")
		}
		if r.Header.Get("X-RapidAPI-Key") != "" {
			t.Errorf("unexpected rapidapi header")
		}
		fmt.Fprint(w, `{"status":{"id":3}}`)
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL, AuthToken: "secret"}, srv.Client())

	if _, err := c.Evaluate(context.Background(), Request{}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
}

func TestStatusVocabulary(t *testing.T) {
	want := map[StatusID]string{
		1: "In Queue", 2: "Processing", 3: "Accepted", 4: "Wrong Answer", 5: "Time Limit Exceeded",
		6: "Compilation Error", 7: "Runtime Error", 8: "Memory Limit Exceeded",
		9: "Output Limit Exceeded", 10: "Internal Error",
	}
	for id, desc := range want {
		if id.Description() != desc {
			t.Fatalf("status %d: got %q want %q", id, id.Description(), desc)
		}
	}
	if !StatusInQueue.Pending() || !StatusProcessing.Pending() || StatusAccepted.Pending() {
		t.Fatalf("pending predicate wrong")
	}
	if StatusProcessing.Terminal() || !StatusInternalError.Terminal() || !StatusID(14).Terminal() {
		t.Fatalf("terminal predicate wrong")
	}
}
