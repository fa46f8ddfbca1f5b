package application

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"clickpulse/internal/deploy/domain"
)

// defaultFetchTimeout délai maximal pour récupérer un paquet distant
const defaultFetchTimeout = 30 * time.Second

// Loader charge un paquet de déploiement depuis un chemin local ou
// une URL HTTP(S), paresseusement: rien n'est lu avant le premier
// appel à Package()
type Loader struct {
	source string
	client *http.Client

	once sync.Once
	pkg  *domain.Package
	err  error
}

// NewLoader crée un loader pour la source donnée
func NewLoader(source string) *Loader {
	return &Loader{
		source: source,
		client: &http.Client{Timeout: defaultFetchTimeout},
	}
}

// Package retourne le paquet, en le chargeant au premier appel
// Les appels suivants réutilisent le résultat (ou l'erreur) du premier
func (l *Loader) Package() (*domain.Package, error) {
	l.once.Do(func() {
		l.pkg, l.err = l.load()
	})
	return l.pkg, l.err
}

func (l *Loader) load() (*domain.Package, error) {
	reader, err := l.open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	gz, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open package %s: %w", l.source, err)
	}
	defer gz.Close()

	var pkg domain.Package
	if err := json.NewDecoder(gz).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("decode package %s: %w", l.source, err)
	}
	if pkg.Metadata.FormatVersion != domain.FormatVersion {
		return nil, fmt.Errorf("package %s: unsupported format version %d", l.source, pkg.Metadata.FormatVersion)
	}
	return &pkg, nil
}

// open ouvre la source, locale ou distante
func (l *Loader) open() (io.ReadCloser, error) {
	if strings.HasPrefix(l.source, "http://") || strings.HasPrefix(l.source, "https://") {
		resp, err := l.client.Get(l.source)
		if err != nil {
			return nil, fmt.Errorf("fetch package %s: %w", l.source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch package %s: status %d", l.source, resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(l.source)
	if err != nil {
		return nil, fmt.Errorf("open package %s: %w", l.source, err)
	}
	return f, nil
}
