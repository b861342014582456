package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeServiceAccount turns a service-account key as it tends to arrive in
// hosted environments into clean JSON. The base64 form wins when both are
// set. The raw form may be wrapped in quotes, JSON-encoded twice, or carry
// its private key with literal \n sequences. Both empty returns nil.
func DecodeServiceAccount(raw, b64 string) ([]byte, error) {
	var data []byte
	switch {
	case strings.TrimSpace(b64) != "":
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
		if err != nil {
			return nil, fmt.Errorf("decode base64 service account: %w", err)
		}
		data = decoded
	case strings.TrimSpace(raw) != "":
		data = []byte(strings.TrimSpace(raw))
		if !json.Valid(data) {
			data = []byte(stripQuotes(string(data)))
		}
	default:
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("parse double-encoded service account: %w", err)
		}
	}
	key, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse service account: expected a JSON object")
	}

	if pk, ok := key["private_key"].(string); ok {
		pk = strings.ReplaceAll(pk, `\n`, "\n")
		pk = stripQuotes(strings.TrimSpace(pk))
		key["private_key"] = strings.ReplaceAll(pk, `\n`, "\n")
	}
	out, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encode service account: %w", err)
	}
	return out, nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
