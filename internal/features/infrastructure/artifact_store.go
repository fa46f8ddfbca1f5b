package infrastructure

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	eventsdomain "clickpulse/internal/events/domain"
	"clickpulse/internal/features/domain"
)

// Noms des fichiers d'artefacts sous <output>/<tag>/
const (
	CleanedEventsFile    = "cleaned_events.csv"
	SessionFeaturesFile  = "session_features.csv"
	UserFeaturesFile     = "user_features.csv"
	BrandFeaturesFile    = "brand_features.csv"
	CategoryFeaturesFile = "category_features.csv"
)

// ArtifactStore persiste les artefacts d'un run sous son tag
// Chaque run écrit dans son propre répertoire: plusieurs runs
// coexistent sans s'écraser
type ArtifactStore struct {
	dir string
}

// NewArtifactStore crée un store pour un répertoire de sortie et un tag
func NewArtifactStore(outputDir, tag string) *ArtifactStore {
	return &ArtifactStore{dir: filepath.Join(outputDir, tag)}
}

// Dir retourne le répertoire des artefacts du run
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// ensureDir crée le répertoire du run si besoin
func (s *ArtifactStore) ensureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// SaveCleanedEvents écrit la table d'événements nettoyée
func (s *ArtifactStore) SaveCleanedEvents(events []eventsdomain.CleanedEvent) error {
	headers := []string{
		"user_id", "user_session", "session_key", "event_type", "product_id",
		"brand", "category_code", "price", "event_time",
		"gap_seconds", "time_since_start_seconds",
		"hour", "weekday", "month", "period",
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.UserID, e.SessionID, e.SessionKey, string(e.Type), e.ProductID,
			e.Brand, e.CategoryCode,
			strconv.FormatFloat(e.Price, 'f', -1, 64),
			e.Time.UTC().Format(domain.TimeLayout),
			strconv.FormatFloat(e.GapSeconds, 'f', -1, 64),
			strconv.FormatFloat(e.TimeSinceStartSeconds, 'f', -1, 64),
			strconv.Itoa(e.Hour), strconv.Itoa(e.Weekday), strconv.Itoa(e.Month),
			string(e.Period),
		})
	}

	return s.writeCSV(CleanedEventsFile, headers, rows)
}

// SaveTables écrit les quatre tables de features en CSV et Parquet
func (s *ArtifactStore) SaveTables(t domain.Tables) error {
	sessionRows := make([][]string, 0, len(t.Sessions))
	for _, r := range t.Sessions {
		sessionRows = append(sessionRows, r.ToCSVRow())
	}
	if err := s.writeCSV(SessionFeaturesFile, domain.SessionCSVHeaders(), sessionRows); err != nil {
		return err
	}

	userRows := make([][]string, 0, len(t.Users))
	for _, r := range t.Users {
		userRows = append(userRows, r.ToCSVRow())
	}
	if err := s.writeCSV(UserFeaturesFile, domain.UserCSVHeaders(), userRows); err != nil {
		return err
	}

	brandRows := make([][]string, 0, len(t.Brands))
	for _, r := range t.Brands {
		brandRows = append(brandRows, r.ToCSVRow())
	}
	if err := s.writeCSV(BrandFeaturesFile, domain.EntityCSVHeaders("brand"), brandRows); err != nil {
		return err
	}

	categoryRows := make([][]string, 0, len(t.Categories))
	for _, r := range t.Categories {
		categoryRows = append(categoryRows, r.ToCSVRow())
	}
	if err := s.writeCSV(CategoryFeaturesFile, domain.EntityCSVHeaders("category_code"), categoryRows); err != nil {
		return err
	}

	return s.saveParquet(t)
}

// WriteJSON écrit un artefact JSON indenté sous le tag du run
func (s *ArtifactStore) WriteJSON(name string, payload interface{}) (string, error) {
	if err := s.ensureDir(); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// writeCSV écrit un fichier CSV avec flush périodique par batch
func (s *ArtifactStore) writeCSV(name string, headers []string, rows [][]string) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(headers); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
		if (i+1)%1000 == 0 {
			writer.Flush()
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	return f.Close()
}

// LoadTables recharge les quatre tables depuis les artefacts CSV
// Utilisé quand les étapes amont sont sautées pour rejouer uniquement
// le calcul d'insights
func (s *ArtifactStore) LoadTables() (domain.Tables, error) {
	var t domain.Tables

	sessions, err := s.readCSV(SessionFeaturesFile)
	if err != nil {
		return t, err
	}
	for _, row := range sessions {
		parsed, err := parseSessionRow(row)
		if err != nil {
			return t, fmt.Errorf("%s: %w", SessionFeaturesFile, err)
		}
		t.Sessions = append(t.Sessions, parsed)
	}

	users, err := s.readCSV(UserFeaturesFile)
	if err != nil {
		return t, err
	}
	for _, row := range users {
		parsed, err := parseUserRow(row)
		if err != nil {
			return t, fmt.Errorf("%s: %w", UserFeaturesFile, err)
		}
		t.Users = append(t.Users, parsed)
	}

	brands, err := s.readCSV(BrandFeaturesFile)
	if err != nil {
		return t, err
	}
	for _, row := range brands {
		parsed, err := parseEntityRow(row)
		if err != nil {
			return t, fmt.Errorf("%s: %w", BrandFeaturesFile, err)
		}
		t.Brands = append(t.Brands, parsed)
	}

	categories, err := s.readCSV(CategoryFeaturesFile)
	if err != nil {
		return t, err
	}
	for _, row := range categories {
		parsed, err := parseEntityRow(row)
		if err != nil {
			return t, fmt.Errorf("%s: %w", CategoryFeaturesFile, err)
		}
		t.Categories = append(t.Categories, parsed)
	}

	return t, nil
}

// LoadCleanedEvents recharge la table d'événements nettoyée
// Utilisé quand l'étape de nettoyage est sautée
func (s *ArtifactStore) LoadCleanedEvents() ([]eventsdomain.CleanedEvent, error) {
	rows, err := s.readCSV(CleanedEventsFile)
	if err != nil {
		return nil, err
	}

	events := make([]eventsdomain.CleanedEvent, 0, len(rows))
	for _, row := range rows {
		parsed, err := parseCleanedEvent(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", CleanedEventsFile, err)
		}
		events = append(events, parsed)
	}
	return events, nil
}

// readCSV lit un artefact CSV en écartant l'en-tête
func (s *ArtifactStore) readCSV(name string) ([][]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("artifact %s is empty", name)
	}
	return records[1:], nil
}

// parseCleanedEvent reconstruit un CleanedEvent depuis sa ligne CSV
func parseCleanedEvent(row []string) (eventsdomain.CleanedEvent, error) {
	if len(row) != 15 {
		return eventsdomain.CleanedEvent{}, fmt.Errorf("expected 15 fields, got %d", len(row))
	}

	eventType, err := eventsdomain.ParseEventType(row[3])
	if err != nil {
		return eventsdomain.CleanedEvent{}, err
	}

	p := newRowParser(row)
	e := eventsdomain.CleanedEvent{
		RawEvent: eventsdomain.RawEvent{
			UserID:       row[0],
			SessionID:    row[1],
			Type:         eventType,
			ProductID:    row[4],
			Brand:        row[5],
			CategoryCode: row[6],
		},
		SessionKey: row[2],
		Period:     eventsdomain.Period(row[14]),
	}
	e.Price = p.floatAt(7)
	e.Time = p.timeAt(8)
	e.GapSeconds = p.floatAt(9)
	e.TimeSinceStartSeconds = p.floatAt(10)
	e.Hour = p.intAt(11)
	e.Weekday = p.intAt(12)
	e.Month = p.intAt(13)
	return e, p.err
}

// parseSessionRow reconstruit une SessionRow depuis sa ligne CSV
func parseSessionRow(row []string) (domain.SessionRow, error) {
	if len(row) != len(domain.SessionCSVHeaders()) {
		return domain.SessionRow{}, fmt.Errorf("expected %d fields, got %d", len(domain.SessionCSVHeaders()), len(row))
	}

	p := newRowParser(row)
	r := domain.SessionRow{
		SessionKey:   row[0],
		UserID:       row[1],
		Brand:        row[2],
		CategoryCode: row[3],
	}
	r.ViewCount = p.intAt(4)
	r.CartCount = p.intAt(5)
	r.PurchaseCount = p.intAt(6)
	r.UniqueViewProducts = p.intAt(7)
	r.UniqueCartProducts = p.intAt(8)
	r.UniquePurchaseProducts = p.intAt(9)
	r.UniqueBrands = p.intAt(10)
	r.UniqueCategories = p.intAt(11)
	r.StartedAt = p.timeAt(12)
	r.EndedAt = p.timeAt(13)
	r.DurationSeconds = p.floatAt(14)
	r.Revenue = p.floatAt(15)
	r.CartValue = p.floatAt(16)
	r.ViewToPurchaseRate = p.floatAt(17)
	r.IsWeekend = p.boolAt(18)
	return r, p.err
}

// parseUserRow reconstruit une UserRow depuis sa ligne CSV
func parseUserRow(row []string) (domain.UserRow, error) {
	if len(row) != len(domain.UserCSVHeaders()) {
		return domain.UserRow{}, fmt.Errorf("expected %d fields, got %d", len(domain.UserCSVHeaders()), len(row))
	}

	p := newRowParser(row)
	r := domain.UserRow{UserID: row[0]}
	r.TotalSessions = p.intAt(1)
	r.TotalViews = p.intAt(2)
	r.TotalCarts = p.intAt(3)
	r.TotalPurchases = p.intAt(4)
	r.TotalRevenue = p.floatAt(5)
	r.AvgSessionDurationSec = p.floatAt(6)
	r.FirstSeen = p.timeAt(7)
	r.LastSeen = p.timeAt(8)
	r.ViewToPurchaseRate = p.floatAt(9)
	r.PurchasesPerSession = p.floatAt(10)
	r.IsLoyal = p.boolAt(11)
	return r, p.err
}

// parseEntityRow reconstruit une EntityRow depuis sa ligne CSV
func parseEntityRow(row []string) (domain.EntityRow, error) {
	if len(row) != 7 {
		return domain.EntityRow{}, fmt.Errorf("expected 7 fields, got %d", len(row))
	}

	p := newRowParser(row)
	r := domain.EntityRow{Key: row[0]}
	r.ViewCount = p.intAt(1)
	r.CartCount = p.intAt(2)
	r.PurchaseCount = p.intAt(3)
	r.Revenue = p.floatAt(4)
	r.ViewToCartRate = p.floatAt(5)
	r.ViewToPurchaseRate = p.floatAt(6)
	return r, p.err
}

// rowParser accumule la première erreur de conversion d'une ligne
type rowParser struct {
	row []string
	err error
}

func newRowParser(row []string) *rowParser {
	return &rowParser{row: row}
}

func (p *rowParser) intAt(i int) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(p.row[i])
	if err != nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
	}
	return v
}

func (p *rowParser) floatAt(i int) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.row[i], 64)
	if err != nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
	}
	return v
}

func (p *rowParser) boolAt(i int) bool {
	if p.err != nil {
		return false
	}
	v, err := strconv.ParseBool(p.row[i])
	if err != nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
	}
	return v
}

func (p *rowParser) timeAt(i int) time.Time {
	if p.err != nil {
		return time.Time{}
	}
	v, err := time.ParseInLocation(domain.TimeLayout, p.row[i], time.UTC)
	if err != nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
	}
	return v
}
