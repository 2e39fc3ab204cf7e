// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

// Package store provides the MongoDB persistence layer for sustainability
// metrics. Emission and energy records are keyed by (country, year) and
// written with idempotent upserts: re-running an ingestion pass with the
// same inputs leaves the collections unchanged except for updated_at.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/accidentalscientist/greenpulse/internal/config"
	"github.com/accidentalscientist/greenpulse/internal/logging"
	"github.com/accidentalscientist/greenpulse/internal/metrics"
	"github.com/accidentalscientist/greenpulse/internal/models"
)

// Collection names.
const (
	CollectionEmissions = "emissions"
	CollectionEnergy    = "energy"
	CollectionMetadata  = "metadata"
)

// Store wraps the MongoDB client and exposes typed operations over the
// emissions, energy and metadata collections.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	emissions *mongo.Collection
	energy    *mongo.Collection
	metadata  *mongo.Collection
}

// Connect establishes a MongoDB connection, verifies it with a ping and
// ensures the unique (country, year) indexes exist.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:    client,
		db:        db,
		emissions: db.Collection(CollectionEmissions),
		energy:    db.Collection(CollectionEnergy),
		metadata:  db.Collection(CollectionMetadata),
	}

	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensuring indexes: %w", err)
	}

	logging.Info().
		Str("database", cfg.Database).
		Msg("Connected to MongoDB")

	return s, nil
}

// Close disconnects the underlying MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies the connection is still alive. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the unique compound (country, year) indexes that back
// idempotent upserts, plus the type index on metadata.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	countryYear := mongo.IndexModel{
		Keys: bson.D{
			{Key: "country", Value: 1},
			{Key: "year", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("country_year_unique"),
	}

	if _, err := s.emissions.Indexes().CreateOne(ctx, countryYear); err != nil {
		return fmt.Errorf("emissions index: %w", err)
	}
	if _, err := s.energy.Indexes().CreateOne(ctx, countryYear); err != nil {
		return fmt.Errorf("energy index: %w", err)
	}

	typeIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "type", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("type_unique"),
	}
	if _, err := s.metadata.Indexes().CreateOne(ctx, typeIndex); err != nil {
		return fmt.Errorf("metadata index: %w", err)
	}

	return nil
}

// UpsertEmission writes a single emission record keyed by (country, year).
// created_at is set only on insert; updated_at is refreshed on every write.
func (s *Store) UpsertEmission(ctx context.Context, rec *models.EmissionRecord) error {
	start := time.Now()
	_, err := s.emissions.UpdateOne(
		ctx,
		recordKeyFilter(rec.Country, rec.Year),
		emissionUpdate(rec, time.Now().UTC()),
		options.Update().SetUpsert(true),
	)
	metrics.RecordMongoOperation("upsert", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upserting emission %s/%d: %w", rec.Country, rec.Year, err)
	}
	return nil
}

// UpsertEnergy writes a single energy record keyed by (country, year).
func (s *Store) UpsertEnergy(ctx context.Context, rec *models.EnergyRecord) error {
	start := time.Now()
	_, err := s.energy.UpdateOne(
		ctx,
		recordKeyFilter(rec.Country, rec.Year),
		energyUpdate(rec, time.Now().UTC()),
		options.Update().SetUpsert(true),
	)
	metrics.RecordMongoOperation("upsert", CollectionEnergy, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upserting energy %s/%d: %w", rec.Country, rec.Year, err)
	}
	return nil
}

// CountEmissions returns the total number of emission documents.
func (s *Store) CountEmissions(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.emissions.CountDocuments(ctx, bson.M{})
	metrics.RecordMongoOperation("count", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("counting emissions: %w", err)
	}
	return n, nil
}

// CountLiveEmissions counts emission documents within the year range that
// carry a non-synthetic provenance tag. The orchestrator's staleness gate
// uses this to decide whether real data already covers the range.
func (s *Store) CountLiveEmissions(ctx context.Context, startYear, endYear int) (int64, error) {
	filter := bson.M{
		"data_source": bson.M{"$ne": models.SourceSynthetic},
		"year":        bson.M{"$gte": startYear, "$lte": endYear},
	}
	start := time.Now()
	n, err := s.emissions.CountDocuments(ctx, filter)
	metrics.RecordMongoOperation("count", CollectionEmissions, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("counting live emissions: %w", err)
	}
	return n, nil
}

// CountEnergy returns the total number of energy documents.
func (s *Store) CountEnergy(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.energy.CountDocuments(ctx, bson.M{})
	metrics.RecordMongoOperation("count", CollectionEnergy, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("counting energy: %w", err)
	}
	return n, nil
}

// GetMetadata returns the ingestion metadata document, or nil when no
// ingestion has completed yet.
func (s *Store) GetMetadata(ctx context.Context) (*models.IngestionMetadata, error) {
	start := time.Now()
	var meta models.IngestionMetadata
	err := s.metadata.FindOne(ctx, bson.M{"type": models.MetadataTypeKey}).Decode(&meta)
	metrics.RecordMongoOperation("find_one", CollectionMetadata, time.Since(start), err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ingestion metadata: %w", err)
	}
	return &meta, nil
}

// UpsertMetadata replaces the singleton ingestion metadata document.
func (s *Store) UpsertMetadata(ctx context.Context, meta *models.IngestionMetadata) error {
	meta.Type = models.MetadataTypeKey
	start := time.Now()
	_, err := s.metadata.ReplaceOne(
		ctx,
		bson.M{"type": models.MetadataTypeKey},
		meta,
		options.Replace().SetUpsert(true),
	)
	metrics.RecordMongoOperation("replace", CollectionMetadata, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upserting ingestion metadata: %w", err)
	}
	return nil
}

// recordKeyFilter is the (country, year) identity filter shared by both
// metric collections.
func recordKeyFilter(country string, year int) bson.M {
	return bson.M{"country": country, "year": year}
}

// emissionUpdate builds the update document for an emission upsert. All
// metric fields live under $set so repeated writes converge; created_at is
// insert-only.
func emissionUpdate(rec *models.EmissionRecord, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"co2_emissions":  rec.CO2Emissions,
			"population":     rec.Population,
			"gdp_per_capita": rec.GDPPerCapita,
			"co2_per_capita": rec.CO2PerCapita,
			"data_source":    rec.DataSource,
			"updated_at":     now,
		},
		"$setOnInsert": bson.M{
			"country":    rec.Country,
			"year":       rec.Year,
			"created_at": now,
		},
	}
}

// energyUpdate builds the update document for an energy upsert.
func energyUpdate(rec *models.EnergyRecord, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"renewable_percentage":     rec.RenewablePercentage,
			"total_energy_consumption": rec.TotalEnergyConsumption,
			"renewable_energy":         rec.RenewableEnergy,
			"fossil_fuel_energy":       rec.FossilFuelEnergy,
			"data_source":              rec.DataSource,
			"updated_at":               now,
		},
		"$setOnInsert": bson.M{
			"country":    rec.Country,
			"year":       rec.Year,
			"created_at": now,
		},
	}
}
