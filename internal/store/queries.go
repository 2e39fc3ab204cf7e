// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/accidentalscientist/greenpulse/internal/metrics"
	"github.com/accidentalscientist/greenpulse/internal/models"
)

const performerLimit = 5

// DashboardStats aggregates the headline numbers for the dashboard landing
// view. All figures are computed over the latest year present in the
// emissions collection.
func (s *Store) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	countries, err := s.ListCountries(ctx)
	if err != nil {
		return nil, err
	}

	latestYear, err := s.latestYear(ctx)
	if err != nil {
		return nil, err
	}

	totalCO2, err := s.sumEmissionsForYear(ctx, latestYear)
	if err != nil {
		return nil, err
	}

	avgRenewable, err := s.avgRenewableForYear(ctx, latestYear)
	if err != nil {
		return nil, err
	}

	top, err := s.performersByPerCapita(ctx, latestYear, 1)
	if err != nil {
		return nil, err
	}
	worst, err := s.performersByPerCapita(ctx, latestYear, -1)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		TotalCountries:         len(countries),
		LatestYear:             latestYear,
		TotalCO2Emissions:      round2(totalCO2),
		AvgRenewablePercentage: round2(avgRenewable),
		TopPerformers:          top,
		WorstPerformers:        worst,
		LastUpdated:            time.Now().UTC(),
	}, nil
}

// CO2Timeseries returns per-country emission series over the year range.
// When countries is empty, the top emitters of endYear are used.
func (s *Store) CO2Timeseries(ctx context.Context, countries []string, startYear, endYear, limit int) ([]models.CountrySeries, error) {
	if len(countries) == 0 {
		top, err := s.topEmitters(ctx, endYear, limit)
		if err != nil {
			return nil, err
		}
		countries = top
	}

	start := time.Now()
	cur, err := s.emissions.Find(
		ctx,
		bson.M{
			"country": bson.M{"$in": countries},
			"year":    bson.M{"$gte": startYear, "$lte": endYear},
		},
		options.Find().SetSort(bson.D{{Key: "country", Value: 1}, {Key: "year", Value: 1}}),
	)
	metrics.RecordMongoOperation("find", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("querying emission timeseries: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Country      string  `bson:"country"`
		Year         int     `bson:"year"`
		CO2Emissions float64 `bson:"co2_emissions"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding emission timeseries: %w", err)
	}

	byCountry := make(map[string][]models.TimeseriesPoint, len(countries))
	for _, row := range rows {
		byCountry[row.Country] = append(byCountry[row.Country], models.TimeseriesPoint{
			Year:  row.Year,
			Value: row.CO2Emissions,
		})
	}

	series := make([]models.CountrySeries, 0, len(countries))
	for _, country := range countries {
		points, ok := byCountry[country]
		if !ok {
			continue
		}
		series = append(series, models.CountrySeries{Country: country, Points: points})
	}
	return series, nil
}

// TopRenewableCountries returns the countries with the highest renewable
// percentage for the given year, for the bar chart view.
func (s *Store) TopRenewableCountries(ctx context.Context, year, limit int) ([]models.CountryRenewable, error) {
	start := time.Now()
	cur, err := s.energy.Find(
		ctx,
		bson.M{"year": year},
		options.Find().
			SetSort(bson.D{{Key: "renewable_percentage", Value: -1}}).
			SetLimit(int64(limit)).
			SetProjection(bson.M{"country": 1, "renewable_percentage": 1, "_id": 0}),
	)
	metrics.RecordMongoOperation("find", CollectionEnergy, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("querying top renewable countries: %w", err)
	}
	defer cur.Close(ctx)

	var recs []models.CountryRenewable
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decoding top renewable countries: %w", err)
	}
	return recs, nil
}

// EmissionsComparison compares each country's emissions between two years,
// ranked by the later year's emissions. Countries missing data for either
// year are excluded.
func (s *Store) EmissionsComparison(ctx context.Context, year1, year2, limit int) ([]models.CountryEmissionsChange, error) {
	year1Rec := bson.M{"$arrayElemAt": []interface{}{
		bson.M{"$filter": bson.M{
			"input": "$emissions",
			"cond":  bson.M{"$eq": []interface{}{"$$this.year", year1}},
		}},
		0,
	}}
	year2Rec := bson.M{"$arrayElemAt": []interface{}{
		bson.M{"$filter": bson.M{
			"input": "$emissions",
			"cond":  bson.M{"$eq": []interface{}{"$$this.year", year2}},
		}},
		0,
	}}
	change := bson.M{"$subtract": []interface{}{"$year2.co2_emissions", "$year1.co2_emissions"}}

	pipeline := []bson.M{
		{"$match": bson.M{"year": bson.M{"$in": []int{year1, year2}}}},
		{"$group": bson.M{
			"_id": "$country",
			"emissions": bson.M{"$push": bson.M{
				"year":          "$year",
				"co2_emissions": "$co2_emissions",
			}},
		}},
		// Both years must be present for the country to compare.
		{"$match": bson.M{"emissions": bson.M{"$size": 2}}},
		{"$project": bson.M{"country": "$_id", "year1": year1Rec, "year2": year2Rec}},
		{"$project": bson.M{
			"_id":         0,
			"country":     1,
			"year1_value": "$year1.co2_emissions",
			"year2_value": "$year2.co2_emissions",
			"change":      change,
			"percent_change": bson.M{"$multiply": []interface{}{
				bson.M{"$divide": []interface{}{change, "$year1.co2_emissions"}},
				100,
			}},
		}},
		{"$sort": bson.M{"year2_value": -1}},
		{"$limit": limit},
	}

	start := time.Now()
	cur, err := s.emissions.Aggregate(ctx, pipeline)
	metrics.RecordMongoOperation("aggregate", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("comparing emissions %d vs %d: %w", year1, year2, err)
	}
	defer cur.Close(ctx)

	var recs []models.CountryEmissionsChange
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decoding emissions comparison: %w", err)
	}
	return recs, nil
}

// EmissionsByCountry returns a country's emission records ordered by year.
func (s *Store) EmissionsByCountry(ctx context.Context, country string) ([]*models.EmissionRecord, error) {
	start := time.Now()
	cur, err := s.emissions.Find(
		ctx,
		bson.M{"country": country},
		options.Find().SetSort(bson.D{{Key: "year", Value: 1}}),
	)
	metrics.RecordMongoOperation("find", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("querying emissions for %s: %w", country, err)
	}
	defer cur.Close(ctx)

	var recs []*models.EmissionRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decoding emissions for %s: %w", country, err)
	}
	return recs, nil
}

// EnergyByCountry returns a country's energy records ordered by year.
func (s *Store) EnergyByCountry(ctx context.Context, country string) ([]*models.EnergyRecord, error) {
	start := time.Now()
	cur, err := s.energy.Find(
		ctx,
		bson.M{"country": country},
		options.Find().SetSort(bson.D{{Key: "year", Value: 1}}),
	)
	metrics.RecordMongoOperation("find", CollectionEnergy, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("querying energy for %s: %w", country, err)
	}
	defer cur.Close(ctx)

	var recs []*models.EnergyRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decoding energy for %s: %w", country, err)
	}
	return recs, nil
}

// ListCountries returns the distinct countries in the emissions collection.
func (s *Store) ListCountries(ctx context.Context) ([]string, error) {
	start := time.Now()
	raw, err := s.emissions.Distinct(ctx, "country", bson.M{})
	metrics.RecordMongoOperation("distinct", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("listing countries: %w", err)
	}

	countries := make([]string, 0, len(raw))
	for _, v := range raw {
		if c, ok := v.(string); ok {
			countries = append(countries, c)
		}
	}
	return countries, nil
}

// ListYears returns the distinct years in the emissions collection.
func (s *Store) ListYears(ctx context.Context) ([]int, error) {
	start := time.Now()
	raw, err := s.emissions.Distinct(ctx, "year", bson.M{})
	metrics.RecordMongoOperation("distinct", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("listing years: %w", err)
	}

	years := make([]int, 0, len(raw))
	for _, v := range raw {
		switch y := v.(type) {
		case int32:
			years = append(years, int(y))
		case int64:
			years = append(years, int(y))
		case int:
			years = append(years, y)
		}
	}
	return years, nil
}

// latestYear finds the most recent year with emission data. Falls back to
// the current year when the collection is empty.
func (s *Store) latestYear(ctx context.Context) (int, error) {
	start := time.Now()
	var doc struct {
		Year int `bson:"year"`
	}
	err := s.emissions.FindOne(
		ctx,
		bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "year", Value: -1}}),
	).Decode(&doc)
	metrics.RecordMongoOperation("find_one", CollectionEmissions, time.Since(start), err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Now().UTC().Year(), nil
	}
	if err != nil {
		return 0, fmt.Errorf("finding latest year: %w", err)
	}
	return doc.Year, nil
}

func (s *Store) sumEmissionsForYear(ctx context.Context, year int) (float64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"year": year}},
		{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$co2_emissions"}}},
	}

	start := time.Now()
	cur, err := s.emissions.Aggregate(ctx, pipeline)
	metrics.RecordMongoOperation("aggregate", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("summing emissions for %d: %w", year, err)
	}
	defer cur.Close(ctx)

	var results []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("decoding emission sum: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (s *Store) avgRenewableForYear(ctx context.Context, year int) (float64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"year": year}},
		{"$group": bson.M{"_id": nil, "avg": bson.M{"$avg": "$renewable_percentage"}}},
	}

	start := time.Now()
	cur, err := s.energy.Aggregate(ctx, pipeline)
	metrics.RecordMongoOperation("aggregate", CollectionEnergy, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("averaging renewables for %d: %w", year, err)
	}
	defer cur.Close(ctx)

	var results []struct {
		Avg float64 `bson:"avg"`
	}
	if err := cur.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("decoding renewable average: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Avg, nil
}

// performersByPerCapita ranks countries by per-capita emissions for a year.
// direction 1 sorts ascending (top performers), -1 descending (worst).
func (s *Store) performersByPerCapita(ctx context.Context, year, direction int) ([]models.CountryPerCapita, error) {
	start := time.Now()
	cur, err := s.emissions.Find(
		ctx,
		bson.M{"year": year, "co2_per_capita": bson.M{"$exists": true}},
		options.Find().
			SetSort(bson.D{{Key: "co2_per_capita", Value: direction}}).
			SetLimit(performerLimit).
			SetProjection(bson.M{"country": 1, "co2_per_capita": 1, "_id": 0}),
	)
	metrics.RecordMongoOperation("find", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("ranking per-capita performers: %w", err)
	}
	defer cur.Close(ctx)

	var recs []models.CountryPerCapita
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decoding per-capita performers: %w", err)
	}
	return recs, nil
}

// topEmitters returns the countries with the highest absolute emissions for
// a year.
func (s *Store) topEmitters(ctx context.Context, year, limit int) ([]string, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"year": year}},
		{"$sort": bson.M{"co2_emissions": -1}},
		{"$limit": limit},
		{"$project": bson.M{"country": 1, "_id": 0}},
	}

	start := time.Now()
	cur, err := s.emissions.Aggregate(ctx, pipeline)
	metrics.RecordMongoOperation("aggregate", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("finding top emitters: %w", err)
	}
	defer cur.Close(ctx)

	var docs []struct {
		Country string `bson:"country"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding top emitters: %w", err)
	}

	countries := make([]string, 0, len(docs))
	for _, d := range docs {
		countries = append(countries, d.Country)
	}
	return countries, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
