// Package llmtest provides a scripted llm.Model for tests
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/AnTengye/contractwatch/llm"
)

// Reply is one scripted answer
type Reply struct {
	Text string
	Err  error
}

// JSON returns a reply holding v encoded as JSON
func JSON(v any) Reply {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Reply{Text: string(data)}
}

// Fail returns a reply that makes Generate fail
func Fail(msg string) Reply {
	return Reply{Err: errors.New(msg)}
}

// Model answers each request from the reply queue registered for the first matching key.
// Keys are matched as substrings of the system prompt, so a stage can be targeted by a word
// of its system instruction. The last reply of a queue repeats once the others are used up.
type Model struct {
	mu      sync.Mutex
	replies map[string][]Reply
	order   []string
	calls   []llm.Request
	block   chan struct{}
}

// New creates an empty scripted model
func New() *Model {
	return &Model{replies: make(map[string][]Reply)}
}

// On queues replies for requests whose system prompt contains key
func (m *Model) On(key string, replies ...Reply) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.replies[key]; !ok {
		m.order = append(m.order, key)
	}
	m.replies[key] = append(m.replies[key], replies...)
	return m
}

// Block makes every Generate call wait until Release is called or its context ends
func (m *Model) Block() *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = make(chan struct{})
	return m
}

// Release unblocks pending and future Generate calls
func (m *Model) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block != nil {
		close(m.block)
		m.block = nil
	}
}

// Generate implements llm.Model
func (m *Model) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.order {
		if !strings.Contains(req.System, key) {
			continue
		}
		queue := m.replies[key]
		if len(queue) == 0 {
			return "", fmt.Errorf("no reply scripted for %q", key)
		}
		r := queue[0]
		if len(queue) > 1 {
			m.replies[key] = queue[1:]
		}
		return r.Text, r.Err
	}
	return "", fmt.Errorf("no reply scripted for system prompt %q", req.System)
}

// Name implements llm.Model
func (m *Model) Name() string {
	return "scripted"
}

// Calls returns every request received so far
func (m *Model) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.calls...)
}

// CallCount returns how many requests were received
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
