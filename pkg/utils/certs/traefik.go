package certs

import (
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var ErrDomainNotFound = errors.New("domain not found")

//nolint:tagliatelle // traefik acme store
type acmeEntry struct {
	Certificate string `json:"certificate"`
	Key         string `json:"key"`
}

// FromTraefik reads the certificate for domain from a traefik acme store.
// The domain must match the main domain of the entry.
func FromTraefik(file, domain string) (tls.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return tls.Certificate{}, err
	}
	entry, err := lookupAcme(data, domain)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM, err := base64.StdEncoding.DecodeString(entry.Certificate)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode certificate: %w", err)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(entry.Key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode key: %w", err)
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

func lookupAcme(data []byte, domain string) (*acmeEntry, error) {
	obj, err := oj.Parse(data)
	if err != nil {
		return nil, err
	}
	path, err := jp.ParseString(
		fmt.Sprintf(`$..Certificates[?(@.domain.main == %q)]`, domain))
	if err != nil {
		return nil, err
	}
	res := path.Get(obj)
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, domain)
	}
	entry := &acmeEntry{}
	if err := oj.Unmarshal([]byte(oj.JSON(res[0])), entry); err != nil {
		return nil, err
	}
	return entry, nil
}
