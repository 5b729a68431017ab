package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/courierhq/courier/internal/domain"
)

const defaultTimeout = 5 * time.Second

// HTTPTransport — транспорт на net/http.
//
// Каждый Send ограничен таймаутом через context; keep-alive
// управляется конфигурацией. Любая ошибка клиента отображается
// в сентинел: таймаут → 0, всё остальное → −1.
type HTTPTransport struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPTransport создаёт HTTPTransport.
func NewHTTPTransport(timeout time.Duration, keepAlive bool) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tr := &http.Transport{
		DisableKeepAlives: !keepAlive,
		MaxIdleConns:      100,
		IdleConnTimeout:   90 * time.Second,
	}

	return &HTTPTransport{
		client:  &http.Client{Transport: tr},
		timeout: timeout,
	}
}

// Send выполняет одну попытку доставки.
func (t *HTTPTransport) Send(ctx context.Context, req *domain.Request) Outcome {
	wallStart := time.Now()
	cpuStart := cpuTimeMs()

	outcome := t.send(ctx, req)

	outcome.WallMs = float64(time.Since(wallStart)) / float64(time.Millisecond)
	outcome.CPUMs = cpuTimeMs() - cpuStart
	return outcome
}

func (t *HTTPTransport) send(ctx context.Context, req *domain.Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var bodyReader io.Reader
	if req.Payload != "" {
		bodyReader = strings.NewReader(req.Payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return Outcome{Code: domain.CodeInconsistent}
	}

	for key, val := range req.Headers {
		httpReq.Header.Set(key, val)
	}
	if bodyReader != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Outcome{Code: classifyError(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Code: classifyError(err)}
	}

	body := string(respBody)
	return Outcome{
		Code:    resp.StatusCode,
		Body:    &body,
		Headers: resp.Header.Clone(),
	}
}

// classifyError отображает ошибку клиента в код-сентинел.
func classifyError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CodeTimedOut
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CodeTimedOut
	}
	return domain.CodeInconsistent
}

// cpuTimeMs возвращает CPU-время процесса (user+sys) в миллисекундах.
func cpuTimeMs() float64 {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	sys := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond
	return float64(user+sys) / float64(time.Millisecond)
}
