package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/david/estate-finder/internal/models"
	"github.com/david/estate-finder/internal/scoring"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Priority string
	Location string
	MinScore float64
	Limit    int
	Offset   int
}

type ListResult struct {
	Properties []models.PropertyRecord `json:"properties"`
	Total      int                     `json:"total"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
}

// Stats summarizes the stored properties.
type Stats struct {
	Total    int                `json:"total"`
	Critical int                `json:"critical"`
	High     int                `json:"high"`
	Medium   int                `json:"medium"`
	Low      int                `json:"low"`
	AvgPrice float64            `json:"avg_price"`
	AvgMatch float64            `json:"avg_match"`
	LastRun  *models.RunSummary `json:"last_run,omitempty"`
}

// propertyWriteCols is the insert column order used by propertyArgs.
var propertyWriteCols = []string{
	"id", "title", "location", "price", "built_area", "land_area", "property_type",
	"description", "source", "url", "discovered_date",
	"sea_view", "pool", "historic", "masseria", "renovation_required", "status",
	"geographic_score", "land_space_score", "architectural_score", "infrastructure_score",
	"regulatory_score", "financial_score", "total_score", "match_percentage",
	"priority", "recommendation", "strengths", "concerns",
	"embedding", "last_run_id",
}

// selectCols is the column list read back by scanProperty.
const selectCols = `id, title, location, price, built_area, land_area, property_type,
	description, source, url, discovered_date,
	sea_view, pool, historic, masseria, renovation_required, status,
	geographic_score, land_space_score, architectural_score, infrastructure_score,
	regulatory_score, financial_score, total_score, match_percentage,
	priority, recommendation, strengths, concerns`

const runCols = `run_id, start_time, end_time, status, properties_found, critical_count, high_count,
	successful_sites, failed_sites, locations_scraped, errors`

var upsertPropertySQL = buildPropertyUpsert()

// buildPropertyUpsert keeps the first discovered_date of a listing and
// refreshes everything else.
func buildPropertyUpsert() string {
	placeholders := make([]string, len(propertyWriteCols))
	var sets []string
	for i, col := range propertyWriteCols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		switch col {
		case "id":
		case "discovered_date":
			sets = append(sets, "discovered_date = LEAST(properties.discovered_date, EXCLUDED.discovered_date)")
		default:
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	sets = append(sets, "updated_at = NOW()")

	return fmt.Sprintf("INSERT INTO properties (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(propertyWriteCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "))
}

const upsertRunSQL = `
	INSERT INTO scrape_runs (` + runCols + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (run_id) DO UPDATE SET
		end_time = EXCLUDED.end_time,
		status = EXCLUDED.status,
		properties_found = EXCLUDED.properties_found,
		critical_count = EXCLUDED.critical_count,
		high_count = EXCLUDED.high_count,
		successful_sites = EXCLUDED.successful_sites,
		failed_sites = EXCLUDED.failed_sites,
		locations_scraped = EXCLUDED.locations_scraped,
		errors = EXCLUDED.errors`

func propertyArgs(p models.PropertyRecord, runID string) []any {
	args := []any{
		p.ID, p.Title, p.Location, p.Price, p.BuiltArea, p.LandArea, string(p.PropertyType),
		p.Description, p.Source, p.URL, p.DiscoveredAt,
		p.SeaView, p.Pool, p.Historic, p.Masseria, p.RenovationRequired, p.Status,
	}
	if ev := p.EvaluationResult; ev != nil {
		args = append(args,
			ev.GeographicScore, ev.LandSpaceScore, ev.ArchitecturalScore, ev.InfrastructureScore,
			ev.RegulatoryScore, ev.FinancialScore, ev.TotalScore, ev.MatchPercentage,
			string(ev.Priority), ev.Recommendation, orEmpty(ev.Strengths), orEmpty(ev.Concerns))
	} else {
		args = append(args, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, []string{}, []string{})
	}
	return append(args, pgvector.NewVector(scoring.FeatureVector(p)), runID)
}

func runArgs(r *models.RunSummary) ([]any, error) {
	failed, err := json.Marshal(r.FailedSites)
	if err != nil {
		return nil, fmt.Errorf("failed to encode failed sites: %w", err)
	}
	if r.FailedSites == nil {
		failed = []byte("[]")
	}
	return []any{
		r.RunID, r.StartTime, r.EndTime, string(r.Status),
		r.PropertiesFound, r.CriticalCount, r.HighCount,
		orEmpty(r.SuccessfulSites), string(failed), orEmpty(r.LocationsScraped), orEmpty(r.Errors),
	}, nil
}

// orEmpty keeps NOT NULL array columns from receiving NULL.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// StartRun records a run as soon as it begins so a crashed run still
// leaves a trace.
func (s *Store) StartRun(ctx context.Context, run *models.RunSummary) error {
	args, err := runArgs(run)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertRunSQL, args...); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// SaveRun upserts the properties and the run record in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error {
	runValues, err := runArgs(run)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, p := range props {
		batch.Queue(upsertPropertySQL, propertyArgs(p, run.RunID)...)
	}
	batch.Queue(upsertRunSQL, runValues...)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if i < len(props) {
				return fmt.Errorf("failed to upsert property %s: %w", props[i].ID, err)
			}
			return fmt.Errorf("failed to upsert run %s: %w", run.RunID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("batch close failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.RunID, err)
	}
	return nil
}

func scanProperty(scan func(dest ...any) error) (models.PropertyRecord, error) {
	var p models.PropertyRecord
	var propertyType string
	var geo, land, arch, infra, reg, fin, total, match *float64
	var priority, recommendation *string
	var strengths, concerns []string

	err := scan(
		&p.ID, &p.Title, &p.Location, &p.Price, &p.BuiltArea, &p.LandArea, &propertyType,
		&p.Description, &p.Source, &p.URL, &p.DiscoveredAt,
		&p.SeaView, &p.Pool, &p.Historic, &p.Masseria, &p.RenovationRequired, &p.Status,
		&geo, &land, &arch, &infra,
		&reg, &fin, &total, &match,
		&priority, &recommendation, &strengths, &concerns,
	)
	if err != nil {
		return p, err
	}
	p.PropertyType = models.PropertyType(propertyType)

	if total != nil && priority != nil {
		p.EvaluationResult = &models.EvaluationResult{
			GeographicScore:     deref(geo),
			LandSpaceScore:      deref(land),
			ArchitecturalScore:  deref(arch),
			InfrastructureScore: deref(infra),
			RegulatoryScore:     deref(reg),
			FinancialScore:      deref(fin),
			TotalScore:          *total,
			MatchPercentage:     deref(match),
			Priority:            models.Priority(*priority),
			Strengths:           strengths,
			Concerns:            concerns,
		}
		if recommendation != nil {
			p.Recommendation = *recommendation
		}
	}
	return p, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// normalize applies the default page size and caps it.
func (p ListParams) normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	p.Priority = strings.ToUpper(strings.TrimSpace(p.Priority))
	p.Location = strings.TrimSpace(p.Location)
	return p
}

func buildPropertyWhere(params ListParams) (string, []any) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if params.Priority != "" {
		where += fmt.Sprintf(" AND priority = $%d", argIdx)
		args = append(args, params.Priority)
		argIdx++
	}
	if params.Location != "" {
		where += fmt.Sprintf(" AND lower(location) = lower($%d)", argIdx)
		args = append(args, params.Location)
		argIdx++
	}
	if params.MinScore > 0 {
		where += fmt.Sprintf(" AND total_score >= $%d", argIdx)
		args = append(args, params.MinScore)
	}
	return where, args
}

func (s *Store) ListProperties(ctx context.Context, params ListParams) (*ListResult, error) {
	params = params.normalize()
	where, args := buildPropertyWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM properties "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	n := len(args)
	selectSQL := fmt.Sprintf(
		"SELECT %s FROM properties %s ORDER BY total_score DESC NULLS LAST, discovered_date DESC LIMIT $%d OFFSET $%d",
		selectCols, where, n+1, n+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	props := []models.PropertyRecord{}
	for rows.Next() {
		p, err := scanProperty(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &ListResult{
		Properties: props,
		Total:      total,
		Limit:      params.Limit,
		Offset:     params.Offset,
	}, nil
}

func (s *Store) GetProperty(ctx context.Context, id string) (*models.PropertyRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM properties WHERE id = $1", selectCols), id)
	p, err := scanProperty(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	return &p, nil
}

// SimilarProperties returns the nearest neighbours of a property by
// feature vector distance.
func (s *Store) SimilarProperties(ctx context.Context, id string, limit int) ([]models.PropertyRecord, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	var embedding *pgvector.Vector
	err := s.pool.QueryRow(ctx, "SELECT embedding FROM properties WHERE id = $1", id).Scan(&embedding)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load embedding for %s: %w", id, err)
	}
	out := []models.PropertyRecord{}
	if embedding == nil {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM properties
		WHERE id <> $1 AND embedding IS NOT NULL
		ORDER BY embedding <-> $2
		LIMIT $3`, selectCols), id, *embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProperty(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanRun(scan func(dest ...any) error) (models.RunSummary, error) {
	var r models.RunSummary
	var status string
	var failedRaw []byte
	err := scan(
		&r.RunID, &r.StartTime, &r.EndTime, &status, &r.PropertiesFound, &r.CriticalCount, &r.HighCount,
		&r.SuccessfulSites, &failedRaw, &r.LocationsScraped, &r.Errors,
	)
	if err != nil {
		return r, err
	}
	r.Status = models.RunStatus(status)
	r.FailedSites = []models.FailedSite{}
	if len(failedRaw) > 0 {
		if err := json.Unmarshal(failedRaw, &r.FailedSites); err != nil {
			return r, fmt.Errorf("decode failed sites: %w", err)
		}
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, "SELECT "+runCols+" FROM scrape_runs ORDER BY start_time DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs failed: %w", err)
	}
	defer rows.Close()

	runs := []models.RunSummary{}
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run failed: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE priority = 'CRITICAL'),
			COUNT(*) FILTER (WHERE priority = 'HIGH'),
			COUNT(*) FILTER (WHERE priority = 'MEDIUM'),
			COUNT(*) FILTER (WHERE priority = 'LOW'),
			COALESCE(AVG(price), 0)::float8,
			COALESCE(AVG(total_score), 0)::float8
		FROM properties`).Scan(&st.Total, &st.Critical, &st.High, &st.Medium, &st.Low, &st.AvgPrice, &st.AvgMatch)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}

	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		st.LastRun = &runs[0]
	}
	return &st, nil
}

// PruneRuns deletes run records older than the cutoff and reports how many
// were removed.
func (s *Store) PruneRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM scrape_runs WHERE start_time < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune runs failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AllProperties returns every stored property ordered by id.
func (s *Store) AllProperties(ctx context.Context) ([]models.PropertyRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM properties ORDER BY id", selectCols))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []models.PropertyRecord
	for rows.Next() {
		p, err := scanProperty(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const updateEvaluationSQL = `
	UPDATE properties SET
		geographic_score = $2, land_space_score = $3, architectural_score = $4,
		infrastructure_score = $5, regulatory_score = $6, financial_score = $7,
		total_score = $8, match_percentage = $9, priority = $10, recommendation = $11,
		strengths = $12, concerns = $13, embedding = $14, updated_at = NOW()
	WHERE id = $1`

func evaluationArgs(p models.PropertyRecord) []any {
	ev := p.EvaluationResult
	return []any{
		p.ID,
		ev.GeographicScore, ev.LandSpaceScore, ev.ArchitecturalScore, ev.InfrastructureScore,
		ev.RegulatoryScore, ev.FinancialScore, ev.TotalScore, ev.MatchPercentage,
		string(ev.Priority), ev.Recommendation, orEmpty(ev.Strengths), orEmpty(ev.Concerns),
		pgvector.NewVector(scoring.FeatureVector(p)),
	}
}

// UpdateEvaluations rewrites the score columns of already stored properties
// in one transaction. Unscored records are skipped.
func (s *Store) UpdateEvaluations(ctx context.Context, props []models.PropertyRecord) (int64, error) {
	batch := &pgx.Batch{}
	for _, p := range props {
		if p.EvaluationResult == nil {
			continue
		}
		batch.Queue(updateEvaluationSQL, evaluationArgs(p)...)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var updated int64
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to update evaluation: %w", err)
		}
		updated += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("batch close failed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit evaluations: %w", err)
	}
	return updated, nil
}
