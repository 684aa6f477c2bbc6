// Пакет api — встроенный OpenAPI-контракт сервиса сбора материалов.
// Контракт валидируется при старте: расхождение файла со схемой
// OpenAPI 3 останавливает запуск раньше, чем сервис примет трафик.
package api

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Contract загружает и валидирует встроенный OpenAPI-контракт.
func Contract(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("разбор openapi.yaml: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация openapi.yaml: %w", err)
	}
	return doc, nil
}
