package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher скачивает файл по публичной ссылке. Вызывающий код закрывает тело.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher — скачивание обычным HTTP GET.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher создаёт клиент. timeout ограничивает один запрос целиком.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Fetch выполняет GET. Ответ не 2xx возвращается как ошибка с кодом статуса.
func (h *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	resp, err := h.client.Do(req) //nolint:gosec // ссылки на файлы берутся из БД заявок
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}
