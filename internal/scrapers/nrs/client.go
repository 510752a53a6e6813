package nrs

import (
	"context"
	"net/http/cookiejar"
	"nrscrawler/internal/components/telemetry"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Request struct {
	Method string
	Url    string
	Body   string
}

type Response struct {
	Status int
	Body   string
}

// Transport sends a single attempt of a request. Non-2xx statuses are not
// errors at this level.
//
// note: fault injection point
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

type HttpOptions struct {
	UserAgent string
	// Timeout applies to a single attempt, 0 means no timeout.
	Timeout time.Duration
	// RequestsPerSecond limits the request rate, 0 means unlimited.
	RequestsPerSecond float64
	// CloudflareBypass mimics a browser TLS handshake.
	CloudflareBypass bool
	// DumpOutput receives every http exchange if it is not nil.
	DumpOutput telemetry.InstrumentOutput
}

// HttpTransport is a Transport over a resty client with a cookie jar, the
// search keeps server-side session state keyed by cookie.
type HttpTransport struct {
	http *resty.Client
}

func NewHttpTransport(opts HttpOptions, tel telemetry.API) (HttpTransport, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return HttpTransport{}, err
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeaders(map[string]string{
		"X-MicrosoftAjax": "Delta=true",
		"Content-Type":    "application/x-www-form-urlencoded; charset=UTF-8",
		"Accept":          "*/*",
		"User-Agent":      userAgent,
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
	})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	if opts.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel, opts.DumpOutput)

	return HttpTransport{http: client}, nil
}

func (t HttpTransport) Do(ctx context.Context, req Request) (Response, error) {
	r := t.http.R().SetContext(ctx)
	if req.Body != "" {
		r.SetBody(req.Body)
	}
	res, err := r.Execute(req.Method, req.Url)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Status: res.StatusCode(),
		Body:   res.String(),
	}, nil
}
