// Пакет openapi — встроенный OpenAPI контракт HTTP API и роутер kin-openapi
// для проверки входящих запросов.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var contractYAML []byte

// YAML возвращает исходный YAML контракта.
func YAML() []byte {
	return contractYAML
}

// Load разбирает и валидирует контракт.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(contractYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI контракта: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI контракта: %w", err)
	}
	return doc, nil
}

// NewRouter создаёт роутер kin-openapi для поиска операции по запросу.
func NewRouter() (routers.Router, error) {
	doc, err := Load()
	if err != nil {
		return nil, err
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("создание роутера OpenAPI: %w", err)
	}
	return router, nil
}
