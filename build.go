package shardex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-reflect"
	"github.com/oarkflow/json"
	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/connection"

	"github.com/oarkflow/shardex/utils"
)

// WordExtractor turns arbitrary record values into normalized index words.
type WordExtractor struct {
	stopWords map[string]struct{}
}

// NewWordExtractor builds an extractor; with no arguments the default
// stop-word set applies.
func NewWordExtractor(stopWords ...string) *WordExtractor {
	we := &WordExtractor{stopWords: make(map[string]struct{})}
	if len(stopWords) == 0 {
		stopWords = defaultStopWordList
	}
	for _, w := range stopWords {
		if w == "" {
			continue
		}
		we.stopWords[strings.ToLower(w)] = struct{}{}
	}
	return we
}

// Extract tokenizes a value and drops stop words.
func (we *WordExtractor) Extract(value any) []string {
	if value == nil {
		return nil
	}
	text := strings.TrimSpace(utils.ToString(value))
	if text == "" {
		return nil
	}
	tokens := utils.Tokenize(text)
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, skip := we.stopWords[tok]; skip {
			continue
		}
		words = append(words, tok)
	}
	return words
}

var defaultStopWordList = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
	"if", "in", "into", "is", "it", "no", "not", "of", "on", "or",
	"such", "that", "the", "their", "then", "there", "these", "they",
	"this", "to", "was", "will", "with",
}

type DBConfig struct {
	DBType  string `json:"type,omitempty"`
	DBHost  string `json:"host,omitempty"`
	DBPort  int    `json:"port,omitempty"`
	DBUser  string `json:"user,omitempty"`
	DBPass  string `json:"password,omitempty"`
	DBName  string `json:"database,omitempty"`
	DBQuery string `json:"query,omitempty"`
}

type DBRequest struct {
	DB    *squealx.DB
	Query string
}

// BuildRequest bundles the supported ingestion sources into one payload.
type BuildRequest struct {
	Path     string           `json:"path"`
	Words    []string         `json:"words"`
	Data     []map[string]any `json:"data"`
	Database *DBConfig        `json:"database,omitempty"`
}

// Build ingests words from the given input and returns how many words were
// added. Strings are treated as a JSON array when they look like one,
// otherwise as a file path; slices of structs go through reflection.
func (m *Manager) Build(ctx context.Context, input any) (int, error) {
	switch v := input.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			return m.BuildFromReader(ctx, strings.NewReader(v))
		}
		return m.BuildFromFile(ctx, v)
	case []byte:
		return m.BuildFromReader(ctx, bytes.NewReader(v))
	case io.Reader:
		return m.BuildFromReader(ctx, v)
	case []string:
		return m.addWords(ctx, v)
	case []map[string]any:
		return m.buildFromRecords(ctx, v)
	case DBRequest:
		return m.BuildFromDatabase(ctx, v)
	case BuildRequest:
		if v.Database != nil {
			db, _, err := connection.FromConfig(squealx.Config{
				Host:     v.Database.DBHost,
				Port:     v.Database.DBPort,
				Driver:   v.Database.DBType,
				Username: v.Database.DBUser,
				Password: v.Database.DBPass,
				Database: v.Database.DBName,
			})
			if err != nil {
				return 0, fmt.Errorf("shardex: connect to database: %w", err)
			}
			defer db.Close()
			added := 0
			err = squealx.SelectEach(db, func(row map[string]any) error {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				added += m.ingestRecord(row)
				return nil
			}, v.Database.DBQuery)
			return added, err
		}
		if v.Path != "" {
			return m.BuildFromFile(ctx, v.Path)
		}
		if len(v.Words) > 0 {
			return m.addWords(ctx, v.Words)
		}
		if len(v.Data) > 0 {
			return m.buildFromRecords(ctx, v.Data)
		}
		return 0, fmt.Errorf("shardex: no words, data, path, or database config provided")
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			return m.buildFromStructs(ctx, rv)
		}
	}
	return 0, fmt.Errorf("shardex: unsupported input type: %T", input)
}

// BuildFromFile ingests a JSON array of records from a file.
func (m *Manager) BuildFromFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return m.BuildFromReader(ctx, f)
}

// BuildFromReader streams a JSON array of records, extracting words from
// every field value.
func (m *Manager) BuildFromReader(ctx context.Context, r io.Reader) (int, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	tok, err := decoder.Token()
	if err != nil {
		return 0, fmt.Errorf("shardex: read JSON token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return 0, fmt.Errorf("shardex: invalid JSON array, expected '[' got %v", tok)
	}
	added := 0
	for decoder.More() {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		var rec map[string]any
		if err := decoder.Decode(&rec); err != nil {
			return added, fmt.Errorf("shardex: decode record: %w", err)
		}
		added += m.ingestRecord(rec)
	}
	return added, nil
}

// BuildFromDatabase ingests words from the rows a query returns.
func (m *Manager) BuildFromDatabase(ctx context.Context, req DBRequest) (int, error) {
	if req.DB == nil {
		return 0, fmt.Errorf("shardex: no database provided")
	}
	if req.Query == "" {
		return 0, fmt.Errorf("shardex: no query provided")
	}
	var data []map[string]any
	if err := req.DB.Select(&data, req.Query); err != nil {
		return 0, err
	}
	return m.buildFromRecords(ctx, data)
}

func (m *Manager) buildFromRecords(ctx context.Context, records []map[string]any) (int, error) {
	added := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		added += m.ingestRecord(rec)
	}
	return added, nil
}

// buildFromStructs round-trips each slice element through JSON so struct
// fields are ingested the same way map records are.
func (m *Manager) buildFromStructs(ctx context.Context, rv reflect.Value) (int, error) {
	added := 0
	for i := 0; i < rv.Len(); i++ {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		data, err := json.Marshal(rv.Index(i).Interface())
		if err != nil {
			return added, fmt.Errorf("shardex: marshal record %d: %w", i, err)
		}
		var rec map[string]any
		if err := json.Unmarshal(data, &rec); err != nil {
			return added, fmt.Errorf("shardex: unmarshal record %d: %w", i, err)
		}
		added += m.ingestRecord(rec)
	}
	return added, nil
}

func (m *Manager) addWords(ctx context.Context, words []string) (int, error) {
	added := 0
	for _, word := range words {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		if m.AddWord(word) != "" {
			added++
		}
	}
	return added, nil
}

func (m *Manager) ingestRecord(rec map[string]any) int {
	added := 0
	for _, value := range rec {
		for _, word := range m.extractor.Extract(value) {
			if m.AddWord(word) != "" {
				added++
			}
		}
	}
	return added
}
