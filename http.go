package shardex

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/oarkflow/filters"
	"github.com/oarkflow/json"
)

var builtInParams = []string{"w", "q", "limit", "m", "reverse", "fuzzy", "threshold"}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error marshalling response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

// queryConditions turns non-reserved query parameters into filter conditions.
func queryConditions(r *http.Request) ([]filters.Condition, error) {
	extra, err := filters.ParseQuery(r.URL.RawQuery, builtInParams...)
	if err != nil {
		return nil, err
	}
	conditions := make([]filters.Condition, 0, len(extra))
	for _, f := range extra {
		conditions = append(conditions, f)
	}
	return conditions, nil
}

// StartHTTP serves the manager over HTTP. It blocks.
func (m *Manager) StartHTTP(addr string) {
	http.HandleFunc("/words/add", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Unsupported method", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error reading body: %v", err), http.StatusBadRequest)
			return
		}
		var req struct {
			Word  string   `json:"word"`
			Words []string `json:"words"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, fmt.Sprintf("Error unmarshalling request: %v", err), http.StatusBadRequest)
			return
		}
		if req.Word != "" {
			req.Words = append(req.Words, req.Word)
		}
		if len(req.Words) == 0 {
			http.Error(w, "word required in request body", http.StatusBadRequest)
			return
		}
		assigned := make(map[string]string, len(req.Words))
		for _, word := range req.Words {
			if id := m.AddWord(word); id != "" {
				assigned[word] = id
			}
		}
		writeJSON(w, map[string]any{"added": assigned})
	})
	http.HandleFunc("/words/find", func(w http.ResponseWriter, r *http.Request) {
		word := strings.TrimSpace(r.URL.Query().Get("w"))
		if word == "" {
			http.Error(w, "query parameter w required", http.StatusBadRequest)
			return
		}
		shardID, found := m.FindDictionary(word)
		writeJSON(w, map[string]any{"word": word, "shard": shardID, "found": found})
	})
	http.HandleFunc("/words/search", func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			http.Error(w, "query parameter q required", http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var words []string
		if r.URL.Query().Get("fuzzy") == "true" {
			threshold, _ := strconv.Atoi(r.URL.Query().Get("threshold"))
			words = m.SearchWordsFuzzy(q, threshold)
		} else {
			words = m.SearchWords(q, limit)
		}
		writeJSON(w, map[string]any{"query": q, "words": words})
	})
	http.HandleFunc("/words/frequency", func(w http.ResponseWriter, r *http.Request) {
		word := strings.TrimSpace(r.URL.Query().Get("w"))
		if word == "" {
			http.Error(w, "query parameter w required", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"word": word, "frequency": m.GetWordFrequency(word)})
	})
	http.HandleFunc("/build", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Unsupported method", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error reading body: %v", err), http.StatusBadRequest)
			return
		}
		var req BuildRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, fmt.Sprintf("Error unmarshalling request: %v", err), http.StatusBadRequest)
			return
		}
		added, err := m.Build(r.Context(), req)
		if err != nil {
			http.Error(w, fmt.Sprintf("Build error: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"added": added})
	})
	http.HandleFunc("/fission", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Unsupported method", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Shard string `json:"shard"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				http.Error(w, fmt.Sprintf("Error unmarshalling request: %v", err), http.StatusBadRequest)
				return
			}
		}
		performed := m.CheckAndPerformFission(req.Shard)
		writeJSON(w, map[string]any{"performed": performed})
	})
	http.HandleFunc("/shards", func(w http.ResponseWriter, r *http.Request) {
		conditions, err := queryConditions(r)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error parsing filters: %v", err), http.StatusBadRequest)
			return
		}
		match := filters.Boolean(strings.ToUpper(r.URL.Query().Get("m")))
		if match == "" {
			match = filters.Boolean("AND")
		}
		infos, err := m.QueryShards(match, r.URL.Query().Get("reverse") == "true", conditions...)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error filtering shards: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"shards": infos})
	})
	http.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		conditions, err := queryConditions(r)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error parsing filters: %v", err), http.StatusBadRequest)
			return
		}
		match := filters.Boolean(strings.ToUpper(r.URL.Query().Get("m")))
		if match == "" {
			match = filters.Boolean("AND")
		}
		events, err := m.QueryEvents(match, r.URL.Query().Get("reverse") == "true", conditions...)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error filtering events: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"events": events})
	})
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, m.Stats())
	})
	log.Fatal(http.ListenAndServe(addr, nil))
}
