package domain

import (
	"time"

	featdomain "clickpulse/internal/features/domain"
	insightdomain "clickpulse/internal/insights/domain"
)

// FormatVersion version du format de paquet, à incrémenter sur tout
// changement incompatible de structure
const FormatVersion = 1

// Metadata identifie le run d'origine d'un paquet
type Metadata struct {
	Tag           string    `json:"tag"`
	GeneratedAt   time.Time `json:"generated_at"`
	FormatVersion int       `json:"format_version"`
	DroppedRows   int       `json:"dropped_rows"`
}

// TableStats effectifs des tables embarquées
type TableStats struct {
	Sessions   int `json:"sessions"`
	Users      int `json:"users"`
	Brands     int `json:"brands"`
	Categories int `json:"categories"`
}

// Package paquet de déploiement autosuffisant: tables de features,
// résumé d'insights et métadonnées du run, sérialisé en JSON gzippé
type Package struct {
	Metadata Metadata              `json:"metadata"`
	Stats    TableStats            `json:"stats"`
	Tables   featdomain.Tables     `json:"tables"`
	Summary  insightdomain.Summary `json:"summary"`
}

// NewPackage assemble un paquet depuis les sorties d'un run
func NewPackage(tag string, generatedAt time.Time, droppedRows int, tables featdomain.Tables, summary insightdomain.Summary) Package {
	return Package{
		Metadata: Metadata{
			Tag:           tag,
			GeneratedAt:   generatedAt,
			FormatVersion: FormatVersion,
			DroppedRows:   droppedRows,
		},
		Stats: TableStats{
			Sessions:   len(tables.Sessions),
			Users:      len(tables.Users),
			Brands:     len(tables.Brands),
			Categories: len(tables.Categories),
		},
		Tables:  tables,
		Summary: summary,
	}
}
