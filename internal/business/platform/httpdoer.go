package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kennteohstorehub/BeepChatBot/pkg/config"
)

const (
	defaultCallTimeout = 5 * time.Second
	errorBodyLimit     = 512
)

// Options 平台客户端参数
type Options struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Market     string
	Timeout    time.Duration
	RateLimit  float64 // 每秒请求数，0 表示不限流
	Burst      int
	HTTPClient *http.Client
}

// OptionsFromConfig 从配置构造客户端参数
func OptionsFromConfig(c config.PlatformConfig) Options {
	return Options{
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		APISecret: c.APISecret,
		Market:    c.Market,
		Timeout:   c.Timeout,
		RateLimit: c.RateLimit,
		Burst:     c.Burst,
	}
}

// httpDoer 单平台 HTTP 调用：单次超时、限流、状态码归类
type httpDoer struct {
	platform Platform
	client   *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
}

func newHTTPDoer(p Platform, opts Options) *httpDoer {
	d := &httpDoer{
		platform: p,
		client:   opts.HTTPClient,
		timeout:  opts.Timeout,
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.timeout <= 0 {
		d.timeout = defaultCallTimeout
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return d
}

// do 发送请求并将 2xx 响应体解码到 out；404 映射为 ErrNotFound，其余失败均为临时错误
func (d *httpDoer) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error), out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return &TransientError{Platform: d.platform, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	req, err := build(ctx)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", d.platform, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return &TransientError{Platform: d.platform, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("%s: %w", d.platform, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &TransientError{
			Platform:   d.platform,
			StatusCode: resp.StatusCode,
			Err:        errors.New(string(body)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransientError{Platform: d.platform, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
