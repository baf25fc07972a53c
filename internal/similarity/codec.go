package similarity

import (
	"encoding/json"
	"fmt"
	"math"
)

// EncodeVector serializes a vector as a JSON array for storage.
// A nil or empty vector encodes to "" (absent).
func EncodeVector(v []float32) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeVector parses a stored vector. "" decodes to nil with no error.
// Non-finite values are rejected so a corrupted row cannot poison a replay.
func DecodeVector(raw string) ([]float32, error) {
	if raw == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("decode vector: non-finite value at index %d", i)
		}
	}
	return v, nil
}
