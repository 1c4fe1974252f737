// Package main implements a mock oracle for end-to-end testing. It serves
// OpenAI-compatible /v1/chat/completions responses from fixture files,
// routing by the "model" field, so pipeline wiring can be exercised without
// a real model: fast, deterministic, offline.
//
// Usage:
//
//	mock-oracle -fixtures ./fixtures -port 11434
//
// A fixture file named "adder.txt" answers model "adder" with its content.
// Numbered fixtures ("adder.1.txt", "adder.2.txt") answer the Nth call to
// that model in order, falling back to the base file once exhausted. That
// makes broken-then-corrected retry sequences testable.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// numberedFixtureRe matches "model.N.ext".
var numberedFixtureRe = regexp.MustCompile(`^(.+)\.(\d+)$`)

type mockOracle struct {
	mu       sync.Mutex
	fixtures map[string][]string // model → ordered responses
	calls    map[string]int      // model → calls served
}

func loadFixtures(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n       int
		content string
	}
	sequences := make(map[string][]numbered)
	base := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if m := numberedFixtureRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[2])
			sequences[m[1]] = append(sequences[m[1]], numbered{n: n, content: string(data)})
			continue
		}
		base[name] = string(data)
	}

	fixtures := make(map[string][]string)
	for model, seq := range sequences {
		sort.Slice(seq, func(i, j int) bool { return seq[i].n < seq[j].n })
		for _, item := range seq {
			fixtures[model] = append(fixtures[model], item.content)
		}
	}
	for model, content := range base {
		fixtures[model] = append(fixtures[model], content)
	}
	return fixtures, nil
}

func (o *mockOracle) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	o.mu.Lock()
	responses, ok := o.fixtures[req.Model]
	call := o.calls[req.Model]
	o.calls[req.Model]++
	o.mu.Unlock()

	if !ok {
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	// Past the end of the sequence, the last fixture repeats.
	if call >= len(responses) {
		call = len(responses) - 1
	}
	content := responses[call]

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 4,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func main() {
	fixturesDir := flag.String("fixtures", "fixtures", "Directory of fixture files named by model")
	port := flag.Int("port", 11434, "Listen port")
	flag.Parse()

	fixtures, err := loadFixtures(*fixturesDir)
	if err != nil {
		log.Fatalf("load fixtures: %v", err)
	}
	log.Printf("loaded %d fixture model(s) from %s", len(fixtures), *fixturesDir)

	oracle := &mockOracle{fixtures: fixtures, calls: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", oracle.handleChat)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock oracle listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
