// Package proxy encaminha as requisições autenticadas e liberadas pelo rate
// limit para o upstream escolhido pelo balancer.
package proxy

import (
	"context"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"intelligent-gateway/balancer/domain"
	"intelligent-gateway/internal/apperrors"
	"intelligent-gateway/internal/observability"
)

const DefaultTimeout = 10 * time.Second

// Selector é o contrato do balancer visto pelo proxy.
type Selector interface {
	Select() (*domain.Endpoint, func(), error)
}

// ProxyObserver recebe status e latência de cada chamada encaminhada.
type ProxyObserver interface {
	ObserveProxy(upstream string, status int, elapsed time.Duration)
}

type Options struct {
	Balancer Selector
	// MountPrefix é removido do path antes de encaminhar (ex.: "/api").
	MountPrefix string
	Timeout     time.Duration
	Transport   http.RoundTripper
	Logger      *zap.Logger
	Observer    ProxyObserver
}

type targetKey struct{}

// Forward seleciona o upstream, encaminha e devolve a resposta sem alterar
// status, headers ou corpo. Falha de transporte vira 502 e não é repetida em
// outro upstream. O contador de conexões é liberado em qualquer desfecho.
func Forward(opts Options) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Transport == nil {
		opts.Transport = defaultTransport()
	}
	prefix := normalizePrefix(opts.MountPrefix)

	rp := &httputil.ReverseProxy{
		Transport: opts.Transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := pr.In.Context().Value(targetKey{}).(*url.URL)

			pr.Out.URL.Path = StripPrefix(pr.In.URL.Path, prefix)
			if pr.In.URL.RawPath != "" {
				pr.Out.URL.RawPath = StripPrefix(pr.In.URL.RawPath, prefix)
			}
			pr.SetURL(target)
			pr.SetXForwarded()
			if id := pr.In.Header.Get(apperrors.RequestIDHeader); id != "" {
				pr.Out.Header.Set(apperrors.RequestIDHeader, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			opts.Logger.Warn("upstream request failed",
				zap.String("request_id", observability.GetRequestID(r.Context())),
				zap.Error(err))
			apperrors.Respond(w, r, apperrors.Wrap(apperrors.CodeUpstreamUnavailable, err, "Upstream Error : "+err.Error()))
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep, release, err := opts.Balancer.Select()
		if err != nil {
			apperrors.Respond(w, r, apperrors.Wrap(apperrors.CodeNoUpstreamAvailable, err, "no upstream available"))
			return
		}
		defer release()

		ctx, cancel := context.WithTimeout(r.Context(), opts.Timeout)
		defer cancel()
		ctx = context.WithValue(ctx, targetKey{}, ep.URL())

		rec := observability.NewStatusRecorder(w)
		start := time.Now()
		rp.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start)

		if opts.Observer != nil {
			opts.Observer.ObserveProxy(ep.String(), rec.Status, elapsed)
		}
		opts.Logger.Debug("forwarded",
			zap.String("request_id", observability.GetRequestID(r.Context())),
			zap.String("upstream", ep.String()),
			zap.Int("status", rec.Status),
			zap.Duration("elapsed", elapsed))
	})
}

// StripPrefix remove o prefixo de montagem do path; o resultado sempre começa com "/".
func StripPrefix(path, prefix string) string {
	if prefix != "" && (path == prefix || strings.HasPrefix(path, prefix+"/")) {
		path = strings.TrimPrefix(path, prefix)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func normalizePrefix(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func defaultTransport() http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
