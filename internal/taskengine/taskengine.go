// Package taskengine is the client side of the external task-lease engine.
// Tasks are leased with a lock duration; ownership reverts to the engine on
// lock expiry, explicit completion, or explicit failure. The engine owns the
// retry policy; this client only reports outcomes.
package taskengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EngineError is a non-2xx response from the engine. A completion or
// failure report on an expired lock surfaces here; the caller logs it and
// moves on, never retries locally.
type EngineError struct {
	StatusCode int
	Message    string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine returned %d: %s", e.StatusCode, e.Message)
}

// Variable is one typed task variable. Primitives pass through typed;
// complex payloads travel as a single JSON-encoded string variable.
type Variable struct {
	Value any    `json:"value"`
	Type  string `json:"type,omitempty"`
}

// StringVar wraps a string value.
func StringVar(v string) Variable { return Variable{Value: v, Type: "String"} }

// BoolVar wraps a boolean value.
func BoolVar(v bool) Variable { return Variable{Value: v, Type: "Boolean"} }

// IntVar wraps an integer value.
func IntVar(v int64) Variable { return Variable{Value: v, Type: "Integer"} }

// JSONVar marshals v into a JSON string variable.
func JSONVar(v any) (Variable, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Variable{}, fmt.Errorf("encoding variable: %w", err)
	}
	return Variable{Value: string(data), Type: "Json"}, nil
}

// Variables is the flat string-keyed variable map carried by a task.
type Variables map[string]Variable

// String returns the named variable as a string, or "" when absent.
func (v Variables) String(name string) string {
	s, _ := v[name].Value.(string)
	return s
}

// JSON decodes the named JSON string variable into dest.
func (v Variables) JSON(name string, dest any) error {
	s, ok := v[name].Value.(string)
	if !ok {
		return fmt.Errorf("variable %q is not a JSON string", name)
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return fmt.Errorf("decoding variable %q: %w", name, err)
	}
	return nil
}

// Task is one leased unit of work.
type Task struct {
	ID             string    `json:"id"`
	Topic          string    `json:"topicName"`
	Variables      Variables `json:"variables"`
	LockExpiration time.Time `json:"lockExpirationTime"`
	Retries        *int      `json:"retries"`
}

// Client talks to one engine over its external-task REST surface.
type Client struct {
	baseURL  string
	workerID string
	http     *http.Client
}

// NewClient creates a Client for the engine at baseURL, identifying itself
// with workerID on every call.
func NewClient(baseURL, workerID string) *Client {
	return &Client{
		baseURL:  baseURL,
		workerID: workerID,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type topicRequest struct {
	TopicName    string `json:"topicName"`
	LockDuration int64  `json:"lockDuration"`
}

type fetchRequest struct {
	WorkerID string         `json:"workerId"`
	MaxTasks int            `json:"maxTasks"`
	Topics   []topicRequest `json:"topics"`
}

// FetchAndLock leases up to maxTasks tasks for one topic. Zero tasks is a
// normal outcome, not an error.
func (c *Client) FetchAndLock(ctx context.Context, topic string, maxTasks int, lockDuration time.Duration) ([]Task, error) {
	req := fetchRequest{
		WorkerID: c.workerID,
		MaxTasks: maxTasks,
		Topics:   []topicRequest{{TopicName: topic, LockDuration: lockDuration.Milliseconds()}},
	}
	var tasks []Task
	if err := c.post(ctx, "/fetchAndLock", req, &tasks); err != nil {
		return nil, fmt.Errorf("fetching tasks for %s: %w", topic, err)
	}
	return tasks, nil
}

type completeRequest struct {
	WorkerID  string    `json:"workerId"`
	Variables Variables `json:"variables,omitempty"`
}

// Complete reports a task finished with the given output variables. The
// engine rejects completion of an expired lock; the returned EngineError is
// logged by the caller, not retried.
func (c *Client) Complete(ctx context.Context, taskID string, variables Variables) error {
	req := completeRequest{WorkerID: c.workerID, Variables: variables}
	if err := c.post(ctx, "/"+taskID+"/complete", req, nil); err != nil {
		return fmt.Errorf("completing task %s: %w", taskID, err)
	}
	return nil
}

type failRequest struct {
	WorkerID     string `json:"workerId"`
	ErrorMessage string `json:"errorMessage"`
	Retries      int    `json:"retries"`
	RetryTimeout int64  `json:"retryTimeout"`
}

// Fail reports a task failed. The retries value is passed through to the
// engine, which owns the retry policy.
func (c *Client) Fail(ctx context.Context, taskID, message string, retries int, retryTimeout time.Duration) error {
	req := failRequest{
		WorkerID:     c.workerID,
		ErrorMessage: message,
		Retries:      retries,
		RetryTimeout: retryTimeout.Milliseconds(),
	}
	if err := c.post(ctx, "/"+taskID+"/failure", req, nil); err != nil {
		return fmt.Errorf("failing task %s: %w", taskID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &EngineError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
