// Package dbtest opens throwaway sqlite databases carrying the full schema
// and seeds listing inventory for package tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/db"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/migrate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Open returns a client over a private in-memory database. The pool is
// limited to one connection, so code running inside a transaction must only
// use the transaction handle.
func Open(t testing.TB, name string) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	client, err := db.New(context.Background(), config.DBConfig{Driver: config.DriverSQLite, DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.AutoMigrateModels(client.DB()); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// Room describes a room to seed.
type Room struct {
	Name        string
	PricePerBed string
	Beds        int
}

// SeedListing creates an active listing owned by owner with the given rooms.
// Beds are labelled per room in creation order.
func SeedListing(t testing.TB, client *db.Client, owner uuid.UUID, rooms ...Room) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		OwnerID: owner,
		Title:   "Listing " + owner.String()[:8],
		Active:  true,
	}
	for _, spec := range rooms {
		price, err := decimal.NewFromString(spec.PricePerBed)
		if err != nil {
			t.Fatalf("parse price %q: %v", spec.PricePerBed, err)
		}
		room := models.Room{Name: spec.Name, PricePerBed: price}
		for i := 0; i < spec.Beds; i++ {
			room.Beds = append(room.Beds, models.Bed{
				Label:     fmt.Sprintf("%s-%d", spec.Name, i+1),
				Available: true,
			})
		}
		listing.Rooms = append(listing.Rooms, room)
	}
	if err := client.DB().Create(listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return listing
}

// BedIDs flattens the bed ids of a seeded listing in room then bed order.
func BedIDs(listing *models.Listing) []uuid.UUID {
	var ids []uuid.UUID
	for _, room := range listing.Rooms {
		for _, bed := range room.Beds {
			ids = append(ids, bed.ID)
		}
	}
	return ids
}

// LoadBed reads the current state of one bed.
func LoadBed(t testing.TB, client *db.Client, id uuid.UUID) models.Bed {
	t.Helper()
	var bed models.Bed
	if err := client.DB().Where("id = ?", id).First(&bed).Error; err != nil {
		t.Fatalf("load bed %s: %v", id, err)
	}
	return bed
}

// LoadListing reads the current state of one listing without associations.
func LoadListing(t testing.TB, client *db.Client, id uuid.UUID) models.Listing {
	t.Helper()
	var listing models.Listing
	if err := client.DB().Where("id = ?", id).First(&listing).Error; err != nil {
		t.Fatalf("load listing %s: %v", id, err)
	}
	return listing
}
