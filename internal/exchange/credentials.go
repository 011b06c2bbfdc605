package exchange

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// LoadCredentials читает интеграции бирж из JSON файла.
//
// Формат — массив ExchangeIntegration:
//
//	[{"id": "main", "exchangeType": "binance", "apiKey": "...", "apiSecret": "..."}]
//
// Файл ведёт оператор; движок учётные данные не сохраняет.
func LoadCredentials(path string) ([]domain.ExchangeIntegration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exchanges file: %w", err)
	}

	var integrations []domain.ExchangeIntegration
	if err := json.Unmarshal(data, &integrations); err != nil {
		return nil, fmt.Errorf("parse exchanges file: %w", err)
	}

	seen := make(map[string]bool, len(integrations))
	for _, x := range integrations {
		if x.ID == "" {
			return nil, fmt.Errorf("parse exchanges file: integration without id")
		}
		if seen[x.ID] {
			return nil, fmt.Errorf("parse exchanges file: duplicate integration id %q", x.ID)
		}
		seen[x.ID] = true
	}
	return integrations, nil
}

// CredentialsOf извлекает учётные данные из интеграции.
func CredentialsOf(x domain.ExchangeIntegration) Credentials {
	return Credentials{
		APIKey:     x.APIKey,
		APISecret:  x.APISecret,
		Passphrase: x.Passphrase,
	}
}

// Select возвращает интеграции с указанными ID.
// Пустой список ids означает все интеграции.
func Select(all []domain.ExchangeIntegration, ids []string) []domain.ExchangeIntegration {
	if len(ids) == 0 {
		return all
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.ExchangeIntegration
	for _, x := range all {
		if want[x.ID] {
			out = append(out, x)
		}
	}
	return out
}
