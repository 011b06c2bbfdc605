package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile — файл окружения, который ищет Load без аргументов.
const DefaultEnvFile = ".env"

// Load загружает переменные из env-файлов.
//
// Отсутствующий файл не является ошибкой. Переменные окружения
// процесса имеют приоритет над значениями из файла.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// String возвращает переменную или def.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int возвращает целочисленную переменную или def.
func Int(key string, def int) int {
	v, err := strconv.Atoi(String(key, ""))
	if err != nil {
		return def
	}
	return v
}

// Bool возвращает булеву переменную ("true", "1", "yes") или def.
func Bool(key string, def bool) bool {
	switch strings.ToLower(String(key, "")) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

// Duration возвращает длительность ("30s", "2m") или def.
// Число без единиц трактуется как секунды.
func Duration(key string, def time.Duration) time.Duration {
	v := String(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if sec, err := strconv.ParseFloat(v, 64); err == nil && sec >= 0 {
		return time.Duration(sec * float64(time.Second))
	}
	return def
}

// Port возвращает адрес прослушивания ":<port>" из переменной или def.
func Port(key, def string) string {
	return ":" + String(key, def)
}
