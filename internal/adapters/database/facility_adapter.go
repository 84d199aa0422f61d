package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facility-import/backend/pkg/errors"
)

const facilitiesTable = "facilities"

// uniqueViolation is the Postgres SQLSTATE for a unique index conflict
const uniqueViolation = "23505"

var facilityColumns = []interface{}{
	"id", "external_id", "external_source", "name", "facility_kind", "classification",
	"address", "city", "province", "postal_code", "country", "latitude", "longitude",
	"phone", "email", "website", "verified", "auto_imported", "data_source",
	"last_updated", "created_at",
}

// FacilityAdapter implements the FacilityRepository interface on Postgres
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var _ repositories.FacilityRepository = (*FacilityAdapter)(nil)

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) *FacilityAdapter {
	return &FacilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// EnsureSchema creates the facilities table and its indexes when missing
func (a *FacilityAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := a.client.DB().ExecContext(ctx, stmt); err != nil {
			return apperrors.NewInternalError("failed to apply facilities schema", err)
		}
	}
	return nil
}

// Create inserts a new facility
func (a *FacilityAdapter) Create(ctx context.Context, facility *entities.Facility) (*entities.Facility, error) {
	if strings.TrimSpace(facility.Name) == "" {
		return nil, apperrors.NewValidationError("facility name is required")
	}
	if (facility.ExternalID == nil) != (facility.ExternalSource == nil) {
		return nil, apperrors.NewValidationError("external id and external source must be set together")
	}

	stored := *facility
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.LastUpdated.IsZero() {
		stored.LastUpdated = now
	}

	record := goqu.Record{
		"id":              stored.ID,
		"external_id":     nullString(stored.ExternalID),
		"external_source": nullString(stored.ExternalSource),
		"name":            stored.Name,
		"facility_kind":   string(stored.Kind),
		"classification":  stored.Classification,
		"address":         stored.Address,
		"city":            stored.City,
		"province":        stored.Province,
		"postal_code":     stored.PostalCode,
		"country":         stored.Country,
		"latitude":        nullFloat(stored.Latitude),
		"longitude":       nullFloat(stored.Longitude),
		"phone":           stored.Phone,
		"email":           stored.Email,
		"website":         stored.Website,
		"verified":        stored.Verified,
		"auto_imported":   stored.AutoImported,
		"data_source":     stored.DataSource,
		"last_updated":    stored.LastUpdated,
		"created_at":      stored.CreatedAt,
	}

	query, args, err := a.db.Insert(facilitiesTable).Rows(record).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build facility insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflictError(fmt.Sprintf("facility %s already exists", describeIdentity(&stored)))
		}
		return nil, apperrors.NewInternalError("failed to create facility", err)
	}

	return &stored, nil
}

// Update overwrites the mutable fields. last_updated never moves backwards.
func (a *FacilityAdapter) Update(ctx context.Context, id string, update *entities.FacilityUpdate) (*entities.Facility, error) {
	if strings.TrimSpace(update.Name) == "" {
		return nil, apperrors.NewValidationError("facility name is required")
	}

	record := goqu.Record{
		"name":           update.Name,
		"facility_kind":  string(update.Kind),
		"classification": update.Classification,
		"address":        update.Address,
		"city":           update.City,
		"province":       update.Province,
		"postal_code":    update.PostalCode,
		"country":        update.Country,
		"latitude":       nullFloat(update.Latitude),
		"longitude":      nullFloat(update.Longitude),
		"phone":          update.Phone,
		"email":          update.Email,
		"website":        update.Website,
		"data_source":    update.DataSource,
		"last_updated":   goqu.L("GREATEST(last_updated, ?)", update.LastUpdated),
	}

	query, args, err := a.db.Update(facilitiesTable).
		Set(record).
		Where(goqu.C("id").Eq(id)).
		Returning(facilityColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build facility update query", err)
	}

	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to update facility", err)
	}
	return facility, nil
}

// Delete removes a facility
func (a *FacilityAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(facilitiesTable).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build facility delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete facility", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	return nil
}

// FindByExternalID returns the auto-imported facility with the given upstream identity, or nil
func (a *FacilityAdapter) FindByExternalID(ctx context.Context, source, externalID string) (*entities.Facility, error) {
	query, args, err := a.db.From(facilitiesTable).
		Select(facilityColumns...).
		Where(
			goqu.C("external_source").Eq(source),
			goqu.C("external_id").Eq(externalID),
			goqu.C("auto_imported").IsTrue(),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build facility lookup query", err)
	}

	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find facility by external id", err)
	}
	return facility, nil
}

// FindCandidates returns auto-imported facilities in the same city (ignoring case) and province
func (a *FacilityAdapter) FindCandidates(ctx context.Context, namePrefix, city, province string) ([]*entities.Facility, error) {
	conditions := []exp.Expression{
		goqu.C("auto_imported").IsTrue(),
		goqu.C("province").Eq(province),
		goqu.Func("LOWER", goqu.C("city")).Eq(strings.ToLower(city)),
	}
	if namePrefix != "" {
		conditions = append(conditions, goqu.C("name").ILike(escapeLike(namePrefix)+"%"))
	}

	query, args, err := a.db.From(facilitiesTable).
		Select(facilityColumns...).
		Where(conditions...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build candidate query", err)
	}
	return a.queryFacilities(ctx, query, args)
}

// CountGroupedBy counts all facilities grouped by one column, largest group first
func (a *FacilityAdapter) CountGroupedBy(ctx context.Context, field repositories.GroupField) ([]entities.GroupCount, error) {
	if !field.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot group by %q", field))
	}

	column := string(field)
	query, args, err := a.db.From(facilitiesTable).
		Select(goqu.C(column).As("value"), goqu.COUNT("*").As("count")).
		GroupBy(goqu.C(column)).
		Order(goqu.I("count").Desc(), goqu.I("value").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build group count query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count facilities", err)
	}
	defer rows.Close()

	var groups []entities.GroupCount
	for rows.Next() {
		var value sql.NullString
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan group count", err)
		}
		groups = append(groups, entities.GroupCount{Value: value.String, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate group counts", err)
	}
	return groups, nil
}

// ListAll retrieves facilities matching the filter
func (a *FacilityAdapter) ListAll(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	ds := applyFilter(a.db.From(facilitiesTable).Select(facilityColumns...), filter)

	if filter.OrderBy == repositories.SortCreatedDesc {
		ds = ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	} else {
		ds = ds.Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build facility list query", err)
	}
	return a.queryFacilities(ctx, query, args)
}

// Count counts facilities matching the filter
func (a *FacilityAdapter) Count(ctx context.Context, filter repositories.FacilityFilter) (int, error) {
	query, args, err := applyFilter(a.db.From(facilitiesTable).Select(goqu.COUNT("*")), filter).ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build facility count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count facilities", err)
	}
	return count, nil
}

// DeleteAutoImported removes every auto-imported facility
func (a *FacilityAdapter) DeleteAutoImported(ctx context.Context) (int, error) {
	query, args, err := a.db.Delete(facilitiesTable).Where(goqu.C("auto_imported").IsTrue()).ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build bulk delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete auto-imported facilities", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return int(rowsAffected), nil
}

func (a *FacilityAdapter) queryFacilities(ctx context.Context, query string, args []interface{}) ([]*entities.Facility, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query facilities", err)
	}
	defer rows.Close()

	facilities := []*entities.Facility{}
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facilities", err)
	}
	return facilities, nil
}

func applyFilter(ds *goqu.SelectDataset, filter repositories.FacilityFilter) *goqu.SelectDataset {
	if filter.AutoImported != nil {
		ds = ds.Where(goqu.C("auto_imported").Eq(*filter.AutoImported))
	}
	if filter.HasCoordinates != nil {
		if *filter.HasCoordinates {
			ds = ds.Where(goqu.C("latitude").IsNotNull(), goqu.C("longitude").IsNotNull())
		} else {
			ds = ds.Where(goqu.Or(goqu.C("latitude").IsNull(), goqu.C("longitude").IsNull()))
		}
	}
	if filter.Kind != "" {
		ds = ds.Where(goqu.C("facility_kind").Eq(string(filter.Kind)))
	}
	if filter.Province != "" {
		ds = ds.Where(goqu.C("province").Eq(filter.Province))
	}
	return ds
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	var (
		facility       entities.Facility
		kind           string
		externalID     sql.NullString
		externalSource sql.NullString
		latitude       sql.NullFloat64
		longitude      sql.NullFloat64
	)
	err := row.Scan(
		&facility.ID,
		&externalID,
		&externalSource,
		&facility.Name,
		&kind,
		&facility.Classification,
		&facility.Address,
		&facility.City,
		&facility.Province,
		&facility.PostalCode,
		&facility.Country,
		&latitude,
		&longitude,
		&facility.Phone,
		&facility.Email,
		&facility.Website,
		&facility.Verified,
		&facility.AutoImported,
		&facility.DataSource,
		&facility.LastUpdated,
		&facility.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	facility.Kind = entities.FacilityKind(kind)
	if externalID.Valid {
		facility.ExternalID = &externalID.String
	}
	if externalSource.Valid {
		facility.ExternalSource = &externalSource.String
	}
	if latitude.Valid {
		facility.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		facility.Longitude = &longitude.Float64
	}
	return &facility, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

func describeIdentity(f *entities.Facility) string {
	if f.ExternalID != nil && f.ExternalSource != nil {
		return *f.ExternalSource + ":" + *f.ExternalID
	}
	return f.ID
}
