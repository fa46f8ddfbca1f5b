package application

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clickpulse/internal/deploy/domain"
	featdomain "clickpulse/internal/features/domain"
	insightdomain "clickpulse/internal/insights/domain"
)

// PackageFileName nom du paquet de déploiement pour un tag donné
func PackageFileName(tag string) string {
	return fmt.Sprintf("package_%s.json.gz", tag)
}

// Builder écrit les paquets de déploiement
type Builder struct {
	dir string
}

// NewBuilder crée un builder écrivant dans dir
func NewBuilder(dir string) *Builder {
	return &Builder{dir: dir}
}

// Build sérialise le paquet en JSON gzippé et retourne son chemin
// L'écriture passe par un fichier temporaire renommé à la fin: un
// paquet présent sur disque est toujours complet
func (b *Builder) Build(tag string, generatedAt time.Time, droppedRows int, tables featdomain.Tables, summary insightdomain.Summary) (string, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("create package dir: %w", err)
	}

	pkg := domain.NewPackage(tag, generatedAt, droppedRows, tables, summary)

	path := filepath.Join(b.dir, PackageFileName(tag))
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create package file: %w", err)
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(pkg); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encode package: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("flush package: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close package file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publish package: %w", err)
	}
	return path, nil
}
