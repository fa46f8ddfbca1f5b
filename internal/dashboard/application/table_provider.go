package application

import (
	"sync"
	"time"

	featdomain "clickpulse/internal/features/domain"
	featinfra "clickpulse/internal/features/infrastructure"
	sharedinfra "clickpulse/internal/shared/infrastructure"
)

// defaultTableTTL durée de vie des tables en cache
// Les artefacts d'un tag sont immuables, le TTL borne seulement la
// mémoire occupée par les tags consultés récemment
const defaultTableTTL = 10 * time.Minute

// TableProvider sert les tables de features au tiers dashboard
// Les lectures passent par un cache TTL shardé clé par tag: un même
// tag est relu au plus une fois par fenêtre de TTL
type TableProvider struct {
	outputDir string
	cache     *sharedinfra.ShardedCache
	ttl       time.Duration

	mu         sync.Mutex
	currentTag string
}

// NewTableProvider crée un provider lisant les artefacts de outputDir
func NewTableProvider(outputDir string) *TableProvider {
	return &TableProvider{
		outputDir: outputDir,
		cache:     sharedinfra.NewShardedCache(16),
		ttl:       defaultTableTTL,
	}
}

// Tables retourne les quatre tables du tag, via le cache
// Un changement de tag actif invalide le cache entier: le dashboard
// ne doit jamais mélanger des artefacts de runs différents
func (p *TableProvider) Tables(tag string) (featdomain.Tables, error) {
	p.mu.Lock()
	if tag != p.currentTag {
		p.cache.Clear()
		p.currentTag = tag
	}
	p.mu.Unlock()

	key := sharedinfra.NewCacheKeyBuilder().
		Add("dashboard").
		Add("tables").
		Add(tag).
		Build()

	if cached, ok := p.cache.Get(key); ok {
		return cached.(featdomain.Tables), nil
	}

	store := featinfra.NewArtifactStore(p.outputDir, tag)
	tables, err := store.LoadTables()
	if err != nil {
		return featdomain.Tables{}, err
	}

	p.cache.Set(key, tables, p.ttl)
	return tables, nil
}

// Invalidate force la relecture du tag au prochain accès
func (p *TableProvider) Invalidate(tag string) {
	key := sharedinfra.NewCacheKeyBuilder().
		Add("dashboard").
		Add("tables").
		Add(tag).
		Build()
	p.cache.Delete(key)
}
