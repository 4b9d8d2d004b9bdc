package request

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// New returns a resty client that honours HTTP(S)_PROXY from the environment.
func New(timeout time.Duration, retries int) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return resty.New().SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment, // 通用适配环境变量
	}).SetTimeout(timeout).SetRetryCount(retries)
}
