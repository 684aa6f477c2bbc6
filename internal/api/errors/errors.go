// Пакет errors — конструкторы стандартных ответов об ошибке.
// Единый формат: {"statusCode": 400, "errorMessage": "..."} с тем же
// кодом в HTTP-статусе. Успешные ответы операций без тела используют
// WriteOK: {"statusCode": 200}.
package errors //nolint:revive // конфликт имени со stdlib осознанный

import (
	"encoding/json"
	"net/http"
)

// errorBody — тело ответа об ошибке.
type errorBody struct {
	StatusCode   int    `json:"statusCode"`
	ErrorMessage string `json:"errorMessage"`
}

// okBody — тело успешного ответа без полезной нагрузки.
type okBody struct {
	StatusCode int `json:"statusCode"`
}

// WriteError записывает ответ об ошибке: код дублируется в HTTP-статусе
// и в теле.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		StatusCode:   statusCode,
		ErrorMessage: message,
	})
}

// WriteOK записывает успешный ответ без полезной нагрузки.
func WriteOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(okBody{StatusCode: http.StatusOK})
}

// --- Конструкторы для типичных ошибок ---

// Fail — 400 с произвольным сообщением, основной отказ API.
func Fail(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// BadRequest — 400 без деталей. Используется для отказов авторизации:
// невалидный токен и истёкшая ссылка намеренно неразличимы снаружи.
func BadRequest(w http.ResponseWriter) {
	WriteError(w, http.StatusBadRequest, "bad request")
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// UnsupportedMediaType — 415 неподдерживаемый Content-Type запроса.
func UnsupportedMediaType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
