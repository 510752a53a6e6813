package nrs

import (
	"context"
	"nrscrawler/internal/components/assert"
	"nrscrawler/internal/components/chrono"
	"nrscrawler/internal/components/telemetry"
	"time"
)

const report_retrier_send = "retrier.send"

type RetryOptions struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BackoffUnit is multiplied by the attempt number to get the sleep
	// before the next attempt.
	BackoffUnit time.Duration
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:  5,
		BackoffUnit: 5 * time.Second,
	}
}

// Retrier sends requests through a Transport with bounded linear backoff.
type Retrier struct {
	transport Transport
	chrono    chrono.API
	tel       telemetry.API
	opts      RetryOptions
}

func NewRetrier(transport Transport, clock chrono.API, tel telemetry.API, opts RetryOptions) Retrier {
	assert.NotNil(transport)
	assert.NotNil(clock)
	assert.NotNil(tel)
	return Retrier{
		transport: transport,
		chrono:    clock,
		tel:       tel,
		opts:      opts,
	}
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// Send returns the body of the first successful attempt. A connection error
// or a non-2xx status is retried, attempt n sleeps n*BackoffUnit before the
// next one. Once retries are exhausted a *TransportError is returned.
func (r Retrier) Send(ctx context.Context, req Request) (string, error) {
	for attempt := 1; ; attempt++ {
		res, err := r.transport.Do(ctx, req)
		if err == nil && success(res.Status) {
			return res.Body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt > r.opts.MaxRetries {
			return "", &TransportError{
				Method:   req.Method,
				Url:      req.Url,
				Attempts: attempt,
				Status:   res.Status,
				Body:     res.Body,
				Err:      err,
			}
		}

		r.tel.ReportWarning(
			report_retrier_send,
			"failure reaching or understanding the host, waiting and retrying",
			req.Method,
			req.Url,
			attempt,
			res.Status,
			err,
			res.Body,
		)

		err = r.chrono.Sleep(ctx, time.Duration(attempt)*r.opts.BackoffUnit)
		if err != nil {
			return "", err
		}
	}
}
