package planning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/krishimarket/krishimarket/internal/platform/httpx"
	"github.com/krishimarket/krishimarket/internal/store"
)

const (
	soilTestsTable  = "soil_tests"
	cropCyclesTable = "crop_cycles"
)

// Tables lists the tables the planners own.
func Tables() []string {
	return []string{soilTestsTable, cropCyclesTable}
}

// Service provides owner-scoped CRUD for soil tests and crop cycles.
type Service struct {
	db  store.Store
	now func() time.Time
}

// NewService constructs a planning service.
func NewService(db store.Store) *Service {
	return &Service{db: db, now: time.Now}
}

// ============================================================================
// SOIL TEST OPERATIONS
// ============================================================================

// ListSoilTests returns the farmer's soil tests, most recent first.
func (s *Service) ListSoilTests(ctx context.Context, farmerID string) ([]SoilTest, error) {
	rows, err := s.db.Select(ctx, soilTestsTable, store.Query{
		Eq:      map[string]any{"farmer_id": farmerID},
		OrderBy: "test_date",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("planning: list soil tests: %w", err)
	}
	out := make([]SoilTest, 0, len(rows))
	for _, row := range rows {
		out = append(out, soilTestFromRow(row))
	}
	return out, nil
}

// CreateSoilTest records a soil test.
func (s *Service) CreateSoilTest(ctx context.Context, farmerID string, in SoilTestInput) (SoilTest, error) {
	row, err := soilTestRow(in)
	if err != nil {
		return SoilTest{}, err
	}
	row["farmer_id"] = farmerID
	id, err := s.db.Insert(ctx, soilTestsTable, row)
	if err != nil {
		return SoilTest{}, fmt.Errorf("planning: create soil test: %w", err)
	}
	return s.GetSoilTest(ctx, farmerID, id)
}

// GetSoilTest returns one of the farmer's soil tests.
func (s *Service) GetSoilTest(ctx context.Context, farmerID, id string) (SoilTest, error) {
	row, err := s.owned(ctx, soilTestsTable, farmerID, id)
	if err != nil {
		return SoilTest{}, err
	}
	return soilTestFromRow(row), nil
}

// UpdateSoilTest replaces the editable fields of a soil test.
func (s *Service) UpdateSoilTest(ctx context.Context, farmerID, id string, in SoilTestInput) (SoilTest, error) {
	if _, err := s.owned(ctx, soilTestsTable, farmerID, id); err != nil {
		return SoilTest{}, err
	}
	row, err := soilTestRow(in)
	if err != nil {
		return SoilTest{}, err
	}
	if err := s.db.Update(ctx, soilTestsTable, id, row); err != nil {
		return SoilTest{}, fmt.Errorf("planning: update soil test: %w", err)
	}
	return s.GetSoilTest(ctx, farmerID, id)
}

// DeleteSoilTest removes a soil test.
func (s *Service) DeleteSoilTest(ctx context.Context, farmerID, id string) error {
	if _, err := s.owned(ctx, soilTestsTable, farmerID, id); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, soilTestsTable, id); err != nil {
		return fmt.Errorf("planning: delete soil test: %w", err)
	}
	return nil
}

// ============================================================================
// CROP CYCLE OPERATIONS
// ============================================================================

// ListCropCycles returns the farmer's crop cycles by sowing date, newest first.
func (s *Service) ListCropCycles(ctx context.Context, farmerID string) ([]CropCycle, error) {
	rows, err := s.db.Select(ctx, cropCyclesTable, store.Query{
		Eq:      map[string]any{"farmer_id": farmerID},
		OrderBy: "sowing_date",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("planning: list crop cycles: %w", err)
	}
	today := s.now()
	out := make([]CropCycle, 0, len(rows))
	for _, row := range rows {
		out = append(out, cropCycleFromRow(row, today))
	}
	return out, nil
}

// CreateCropCycle plans a crop on a field.
func (s *Service) CreateCropCycle(ctx context.Context, farmerID string, in CropCycleInput) (CropCycle, error) {
	row, err := cropCycleRow(in)
	if err != nil {
		return CropCycle{}, err
	}
	row["farmer_id"] = farmerID
	id, err := s.db.Insert(ctx, cropCyclesTable, row)
	if err != nil {
		return CropCycle{}, fmt.Errorf("planning: create crop cycle: %w", err)
	}
	return s.GetCropCycle(ctx, farmerID, id)
}

// GetCropCycle returns one of the farmer's crop cycles.
func (s *Service) GetCropCycle(ctx context.Context, farmerID, id string) (CropCycle, error) {
	row, err := s.owned(ctx, cropCyclesTable, farmerID, id)
	if err != nil {
		return CropCycle{}, err
	}
	return cropCycleFromRow(row, s.now()), nil
}

// UpdateCropCycle replaces the editable fields of a crop cycle.
func (s *Service) UpdateCropCycle(ctx context.Context, farmerID, id string, in CropCycleInput) (CropCycle, error) {
	if _, err := s.owned(ctx, cropCyclesTable, farmerID, id); err != nil {
		return CropCycle{}, err
	}
	row, err := cropCycleRow(in)
	if err != nil {
		return CropCycle{}, err
	}
	if err := s.db.Update(ctx, cropCyclesTable, id, row); err != nil {
		return CropCycle{}, fmt.Errorf("planning: update crop cycle: %w", err)
	}
	return s.GetCropCycle(ctx, farmerID, id)
}

// DeleteCropCycle removes a crop cycle.
func (s *Service) DeleteCropCycle(ctx context.Context, farmerID, id string) error {
	if _, err := s.owned(ctx, cropCyclesTable, farmerID, id); err != nil {
		return err
	}
	if err := s.db.Delete(ctx, cropCyclesTable, id); err != nil {
		return fmt.Errorf("planning: delete crop cycle: %w", err)
	}
	return nil
}

// HarvestsDue returns unharvested cycles of every farmer whose expected
// harvest falls within the next window, including overdue ones.
func (s *Service) HarvestsDue(ctx context.Context, window time.Duration) ([]CropCycle, error) {
	rows, err := s.db.Select(ctx, cropCyclesTable, store.Query{
		Eq:      map[string]any{"harvested": false},
		OrderBy: "sowing_date",
	})
	if err != nil {
		return nil, fmt.Errorf("planning: harvests due: %w", err)
	}
	today := s.now()
	limit := int(window.Hours() / 24)
	var out []CropCycle
	for _, row := range rows {
		c := cropCycleFromRow(row, today)
		if c.Status != StatusPlanned && c.DaysToHarvest <= limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) owned(ctx context.Context, table, farmerID, id string) (store.Row, error) {
	row, err := s.db.Get(ctx, table, id)
	if err != nil {
		return nil, fmt.Errorf("planning: get %s: %w", table, err)
	}
	if row.String("farmer_id") != farmerID {
		return nil, fmt.Errorf("planning: get %s: %w", table, store.ErrNotFound)
	}
	return row, nil
}

// ============================================================================
// ROW MAPPING
// ============================================================================

func parseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", httpx.ErrValidation, field)
	}
	return d, nil
}

func soilTestRow(in SoilTestInput) (store.Row, error) {
	testDate, err := parseDate("test_date", in.TestDate)
	if err != nil {
		return nil, err
	}
	return store.Row{
		"field_name":     strings.TrimSpace(in.FieldName),
		"test_date":      testDate,
		"ph":             in.PH,
		"nitrogen":       in.Nitrogen,
		"phosphorus":     in.Phosphorus,
		"potassium":      in.Potassium,
		"organic_carbon": in.OrganicCarbon,
		"notes":          nullable(in.Notes),
	}, nil
}

func soilTestFromRow(row store.Row) SoilTest {
	st := SoilTest{
		ID:            row.String("id"),
		FarmerID:      row.String("farmer_id"),
		FieldName:     row.String("field_name"),
		TestDate:      row.Time("test_date"),
		PH:            row.Float("ph"),
		Nitrogen:      row.FloatPtr("nitrogen"),
		Phosphorus:    row.FloatPtr("phosphorus"),
		Potassium:     row.FloatPtr("potassium"),
		OrganicCarbon: row.FloatPtr("organic_carbon"),
		Notes:         row.String("notes"),
		CreatedAt:     row.Time("created_at"),
	}
	st.derive()
	return st
}

func cropCycleRow(in CropCycleInput) (store.Row, error) {
	sowing, err := parseDate("sowing_date", in.SowingDate)
	if err != nil {
		return nil, err
	}
	if in.DurationDays <= 0 {
		return nil, fmt.Errorf("%w: duration_days must be positive", httpx.ErrValidation)
	}
	return store.Row{
		"crop_name":     strings.TrimSpace(in.CropName),
		"field_name":    strings.TrimSpace(in.FieldName),
		"season":        nullable(in.Season),
		"sowing_date":   sowing,
		"duration_days": in.DurationDays,
		"harvested":     in.Harvested,
		"notes":         nullable(in.Notes),
	}, nil
}

func cropCycleFromRow(row store.Row, today time.Time) CropCycle {
	c := CropCycle{
		ID:           row.String("id"),
		FarmerID:     row.String("farmer_id"),
		CropName:     row.String("crop_name"),
		FieldName:    row.String("field_name"),
		Season:       row.String("season"),
		SowingDate:   row.Time("sowing_date"),
		DurationDays: row.Int("duration_days"),
		Harvested:    row.Bool("harvested"),
		Notes:        row.String("notes"),
		CreatedAt:    row.Time("created_at"),
	}
	c.derive(today)
	return c
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
