package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/telemetry-replay/log"
)

var ErrNoCertificate = errors.New("no certificate configured")

// Source describes where the server certificate is read from.
// A traefik acme store takes precedence over plain cert/key files.
type Source struct {
	CertFile      string
	KeyFile       string
	CAFile        string
	TraefikFile   string
	TraefikDomain string
}

func (s Source) Enabled() bool {
	return (s.TraefikFile != "" && s.TraefikDomain != "") ||
		(s.CertFile != "" && s.KeyFile != "")
}

func (s Source) files() []string {
	if s.TraefikFile != "" && s.TraefikDomain != "" {
		return []string{s.TraefikFile}
	}
	return []string{s.CertFile, s.KeyFile}
}

type Provider struct {
	src  Source
	l    *log.Logger
	mu   sync.RWMutex
	cert *tls.Certificate
}

type Option func(p *Provider)

func WithLogger(l *log.Logger) Option {
	return func(p *Provider) {
		p.l = l
	}
}

// NewProvider loads the certificate once. Errors on the initial load are
// returned, later reload errors are logged and the previous certificate
// stays active.
func NewProvider(src Source, opts ...Option) (*Provider, error) {
	if !src.Enabled() {
		return nil, ErrNoCertificate
	}
	p := &Provider{src: src, l: log.Default().Named("certs")}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// TLSConfig returns a server config which always serves the most recently
// loaded certificate.
func (p *Provider) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return p.Certificate(), nil
		},
		MinVersion: tls.VersionTLS13,
	}
	if p.src.CAFile != "" {
		p.l.Info("Loading ca cert", log.String("file", p.src.CAFile))
		caCert, err := os.ReadFile(p.src.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caCert); !ok {
			return nil, fmt.Errorf("no certificates found in %s", p.src.CAFile)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return cfg, nil
}

func (p *Provider) Certificate() *tls.Certificate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cert
}

// Watch reloads the certificate whenever one of the source files changes.
// It returns once the watcher is set up; watching ends with ctx.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, f := range p.src.files() {
		if err := watcher.Add(f); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", f, err)
		}
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				p.l.Debug("context done, stopping cert reload")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) == 0 {
					continue
				}
				p.l.Info("cert file changed, reloading cert",
					log.String("file", event.Name))
				if err := p.load(); err != nil {
					p.l.Error("could not reload cert", log.ErrorField(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.l.Error("watcher error", log.ErrorField(err))
			}
		}
	}()
	return nil
}

func (p *Provider) load() error {
	var cert tls.Certificate
	var err error
	if p.src.TraefikFile != "" && p.src.TraefikDomain != "" {
		p.l.Info("Looking up traefik certs",
			log.String("file", p.src.TraefikFile),
			log.String("domain", p.src.TraefikDomain))
		cert, err = FromTraefik(p.src.TraefikFile, p.src.TraefikDomain)
	} else {
		p.l.Info("Loading cert",
			log.String("cert", p.src.CertFile),
			log.String("key", p.src.KeyFile))
		cert, err = tls.LoadX509KeyPair(p.src.CertFile, p.src.KeyFile)
	}
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cert = &cert
	return nil
}
