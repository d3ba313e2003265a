package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/nhle/tasksync/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:    srv.URL,
		Token:      oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret"}),
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"success": success}
	if msg != "" {
		body["message"] = msg
	}
	if data != nil {
		body["data"] = data
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestCreateTaskSendsAuthAndIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/users/u1/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "ref-1" {
			t.Errorf("Idempotency-Key = %q", got)
		}

		var patch model.TaskPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if patch.Title == nil || *patch.Title != "Buy milk" {
			t.Errorf("title = %v", patch.Title)
		}

		writeEnvelope(w, http.StatusCreated, true, "created", model.Task{ID: 42, UserID: "u1", Title: "Buy milk"})
	})

	title := "Buy milk"
	ctx := WithIdempotencyKey(context.Background(), "ref-1")
	res := client.CreateTask(ctx, "u1", model.TaskPatch{Title: &title})

	if !res.Success {
		t.Fatalf("CreateTask failed: %s", res.Message)
	}
	if res.Task == nil || res.Task.ID != 42 {
		t.Errorf("Task = %+v, want id 42", res.Task)
	}
}

func TestRetries(t *testing.T) {
	tt := []struct {
		name         string
		statuses     []int
		wantSuccess  bool
		wantAttempts int32
	}{
		{name: "recovers after 5xx", statuses: []int{500, 200}, wantSuccess: true, wantAttempts: 2},
		{name: "recovers after 429", statuses: []int{429, 429, 200}, wantSuccess: true, wantAttempts: 3},
		{name: "gives up after budget", statuses: []int{503, 503, 503, 503, 503}, wantSuccess: false, wantAttempts: 4},
		{name: "client error is final", statuses: []int{400, 200}, wantSuccess: false, wantAttempts: 1},
		{name: "unauthorized is final", statuses: []int{401, 200}, wantSuccess: false, wantAttempts: 1},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var attempts atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				n := attempts.Add(1)
				status := tc.statuses[len(tc.statuses)-1]
				if int(n) <= len(tc.statuses) {
					status = tc.statuses[n-1]
				}
				writeEnvelope(w, status, status < 300, "", nil)
			})

			res := client.DeleteTask(context.Background(), "u1", 5)
			if res.Success != tc.wantSuccess {
				t.Errorf("Success = %v, want %v (message %q)", res.Success, tc.wantSuccess, res.Message)
			}
			if got := attempts.Load(); got != tc.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tc.wantAttempts)
			}
		})
	}
}

func TestFailureMessageComesFromEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, false, "Task not found", nil)
	})

	res := client.UpdateTask(context.Background(), "u1", 9, model.TaskPatch{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Message, "Task not found") {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestSuccessFalseIn2xxIsFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, false, "validation failed", nil)
	})

	res := client.ToggleComplete(context.Background(), "u1", 3)
	if res.Success || res.Message != "validation failed" {
		t.Errorf("Result = %+v", res)
	}
}

func TestUpdateTaskAttributesReturnedTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"tags":[]}` {
			t.Errorf("body = %s", body)
		}
		writeEnvelope(w, http.StatusOK, true, "", map[string]interface{}{"id": 5, "title": "Untagged", "tags": []string{}})
	})

	res := client.UpdateTask(context.Background(), "u1", 5, model.TaskPatch{Tags: []string{}})
	if !res.Success || res.Task == nil {
		t.Fatalf("Result = %+v", res)
	}
	if res.Task.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", res.Task.UserID)
	}
}

func TestListTasks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/u1/tasks" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeEnvelope(w, http.StatusOK, true, "", []model.Task{
			{ID: 1, Title: "a"},
			{ID: 2, UserID: "u1", Title: "b"},
		})
	})

	tasks, err := client.ListTasks(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.UserID != "u1" {
			t.Errorf("task %d UserID = %q", task.ID, task.UserID)
		}
	}
}

func TestListTasksAuthError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, false, "", nil)
	})

	_, err := client.ListTasks(context.Background(), "u1")
	if !IsAuthError(err) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestPing(t *testing.T) {
	var healthy atomic.Bool
	var attempts atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if r.URL.Path != "/api/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if healthy.Load() {
			_, _ = io.WriteString(w, `{"success":true}`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if err := client.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded against an unhealthy server")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("Ping retried: %d attempts", got)
	}

	healthy.Store(true)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestCanceledContextStopsRetrying(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.retryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := client.DeleteTask(ctx, "u1", 1)
	if res.Success {
		t.Fatal("expected failure")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("retry loop ignored context cancellation")
	}
}
