package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// profile is an optional YAML file of defaults, e.g.
//
//	api_url: https://saintplus.example.edu
//	session_store: redis
//	otel_enabled: true
type profile map[string]string

func loadProfile(path string) (profile, string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return profile{}, ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return profile{}, ""
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return profile{}, ""
	}
	out := make(profile, len(decoded))
	for k, v := range decoded {
		if v == nil {
			continue
		}
		switch typed := v.(type) {
		case string:
			out[strings.ToLower(k)] = typed
		case bool:
			out[strings.ToLower(k)] = strconv.FormatBool(typed)
		case int:
			out[strings.ToLower(k)] = strconv.Itoa(typed)
		case float64:
			out[strings.ToLower(k)] = strconv.FormatFloat(typed, 'f', -1, 64)
		}
	}
	return out, path
}

func (p profile) get(key, def string) string {
	if val := strings.TrimSpace(p[key]); val != "" {
		return val
	}
	return def
}

func (p profile) getInt(key string, def int) int {
	if parsed, err := strconv.Atoi(p.get(key, "")); err == nil && parsed >= 0 {
		return parsed
	}
	return def
}

func (p profile) getBool(key string, def bool) bool {
	if parsed, err := strconv.ParseBool(p.get(key, "")); err == nil {
		return parsed
	}
	return def
}
