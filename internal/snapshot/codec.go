package snapshot

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileExt is the extension of snapshot files.
const FileExt = ".json"

// Decode parses and validates a snapshot. Bare NaN and Infinity tokens, which
// some producers emit for undefined metric values, decode as null.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(sanitizeNonFinite(data), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	s, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// Encode serializes the snapshot as indented JSON. Non-finite floats in
// metric results and parameters are written as null.
func (s *Snapshot) Encode() ([]byte, error) {
	clean := *s
	clean.Metrics = make([]MetricResult, len(s.Metrics))
	for i, m := range s.Metrics {
		clean.Metrics[i] = MetricResult{
			ID:     m.ID,
			Params: scrubMap(m.Params),
			Result: scrubMap(m.Result),
		}
	}
	clean.Tests = make([]TestResult, len(s.Tests))
	for i, t := range s.Tests {
		t.Parameters = scrubMap(t.Parameters)
		clean.Tests[i] = t
	}
	return json.MarshalIndent(&clean, "", "  ")
}

// Save writes the snapshot to path atomically.
func (s *Snapshot) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := s.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// ContentHash returns the xxh3 hash of raw snapshot bytes as 16 hex digits.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// Fingerprint identifies a test by id and parameters. Two runs of the same
// configured test share a fingerprint.
func (t TestResult) Fingerprint() string {
	params, err := json.Marshal(scrubMap(t.Parameters))
	if err != nil {
		params = []byte(strconv.Quote(fmt.Sprint(t.Parameters)))
	}
	var buf bytes.Buffer
	buf.WriteString(t.ID)
	buf.WriteByte(0)
	buf.Write(params)
	return fmt.Sprintf("%016x", xxh3.Hash(buf.Bytes()))
}

// sanitizeNonFinite rewrites NaN, Infinity and -Infinity outside of strings
// to null. Outside strings, JSON only allows letters in true/false/null, so a
// leading N or I can only start one of these tokens.
func sanitizeNonFinite(data []byte) []byte {
	if !bytes.Contains(data, []byte("NaN")) && !bytes.Contains(data, []byte("Infinity")) {
		return data
	}
	out := make([]byte, 0, len(data))
	inString := false
	escaped := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case bytes.HasPrefix(data[i:], []byte("NaN")):
			out = append(out, "null"...)
			i += len("NaN") - 1
		case bytes.HasPrefix(data[i:], []byte("Infinity")):
			out = append(out, "null"...)
			i += len("Infinity") - 1
		case bytes.HasPrefix(data[i:], []byte("-Infinity")):
			out = append(out, "null"...)
			i += len("-Infinity") - 1
		default:
			out = append(out, c)
		}
	}
	return out
}

func scrubMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = scrubValue(v)
	}
	return out
}

func scrubValue(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
		return x
	case map[string]any:
		return scrubMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = scrubValue(e)
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = scrubValue(e)
		}
		return out
	default:
		return v
	}
}
