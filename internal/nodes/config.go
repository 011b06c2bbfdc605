package nodes

import (
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/engine"
)

// getString извлекает строку по первому найденному ключу.
func getString(config map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := config[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// getAny извлекает значение по первому найденному ключу.
func getAny(config map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := config[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// getFloat извлекает число (или числовую строку) по ключу.
func getFloat(config map[string]any, key string) (float64, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	return engine.ToFloat(v)
}

// getBool извлекает булево значение из конфига.
func getBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return b == "true"
		}
	}
	return defaultVal
}

// getMap извлекает map из конфига.
func getMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// getMapString извлекает map[string]string из конфига.
func getMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string, len(m))
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// getSeconds извлекает длительность в секундах.
func getSeconds(config map[string]any, key string) time.Duration {
	f, ok := getFloat(config, key)
	if !ok || f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
