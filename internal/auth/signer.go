// Пакет auth — выпуск и проверка мандатных токенов и подпись URL
// хранилища. Токен выводится из секретного ключа и контекста операции,
// поэтому ссылка работает без учётных записей: предъявление корректного
// токена и есть авторизация.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"
)

// Signer считает токены и подписи от двух независимых ключей:
// privateKey закрывает токены сервиса, storageTokenKey — подписанные
// URL внешнего хранилища.
type Signer struct {
	privateKey      string
	storageTokenKey string
}

// NewSigner создаёт Signer с парой ключей.
func NewSigner(privateKey, storageTokenKey string) *Signer {
	return &Signer{
		privateKey:      privateKey,
		storageTokenKey: storageTokenKey,
	}
}

// UrlAuth возвращает мандатный токен для произвольного контекста:
// первые 8 байт SHA-256 от "URL|" + ключ + контекст в base64url без
// дополнения.
func (s *Signer) UrlAuth(content string) string {
	sum := sha256.Sum256([]byte("URL|" + s.privateKey + content))
	return tokenBase64(sum[:8])
}

// UrlAuthAction — токен для операции над докладом (urls, items, delete).
func (s *Signer) UrlAuthAction(action, uid string) string {
	return s.UrlAuth(action + uid)
}

// UrlAuthUpload — токен загрузки, привязан к докладу, типу материала
// и сроку действия ссылки.
func (s *Signer) UrlAuthUpload(uid, itemId string, expiry int64) string {
	return s.UrlAuth("upload" + itemId + uid + strconv.FormatInt(expiry, 10))
}

// tokenHash — SHA-256 строки целиком в base64url без дополнения.
func (s *Signer) tokenHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return tokenBase64(sum[:])
}

// tokenBase64 кодирует байты в base64 и приводит результат к
// URL-безопасному алфавиту, отбрасывая дополнение.
func tokenBase64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// SignStorageURL подписывает URL файла во внешнем хранилище до
// момента expiry. Параметры запроса входят в подпись в отсортированном
// по имени порядке. isDirectory меняет компоновку итоговой ссылки:
// токен и срок действия кодируются сегментом пути, а не параметрами.
func (s *Signer) SignStorageURL(fileUrl string, expiry time.Time, isDirectory bool) (string, error) {
	u, err := url.Parse(fileUrl)
	if err != nil {
		return "", fmt.Errorf("разбор URL %s: %w", fileUrl, err)
	}

	expires := strconv.FormatInt(expiry.Unix(), 10)

	type queryParam struct{ name, value string }
	var params []queryParam
	for name, values := range u.Query() {
		for _, v := range values {
			params = append(params, queryParam{name: name, value: v})
		}
	}
	sort.Slice(params, func(i, j int) bool { return params[i].name < params[j].name })

	hashable := s.storageTokenKey + u.Path + expires
	query := url.Values{}
	for i, p := range params {
		if i > 0 {
			hashable += "&"
		}
		hashable += p.name + "=" + p.value
		query.Set(p.name, p.value)
	}

	token := s.tokenHash(hashable)
	query.Set("expires", expires)

	root := u.Scheme + "://" + u.Host
	if isDirectory {
		return root + "/bcdn_token=" + token + "&" + query.Encode() + u.Path, nil
	}
	return root + u.Path + "?token=" + token + "&" + query.Encode(), nil
}

// FileSHA256 возвращает SHA-256 файла в верхнем hex-регистре,
// содержимое читается потоково.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("открытие файла: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("чтение файла: %w", err)
	}
	return fmt.Sprintf("%X", h.Sum(nil)), nil
}

// SafeCompare сравнивает предъявленный токен с ожидаемым за время,
// зависящее только от длины, а не от места первого расхождения.
func SafeCompare(s1, s2 string) bool {
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	minLen := len(s1)
	if len(s2) < minLen {
		minLen = len(s2)
	}

	correct := true
	for i := 0; i < maxLen; i++ {
		if i >= minLen || s1[i] != s2[i] {
			correct = false
		}
	}
	return correct
}
