package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jjatencia/exorawebipad/internal/config"
	"github.com/jjatencia/exorawebipad/internal/db"
	"github.com/jjatencia/exorawebipad/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.NewGormDB(&config.DBConfig{
		Driver:       config.DriverSQLite,
		SQLitePath:   ":memory:",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestGormKVRepository_SetGetOverwriteDelete(t *testing.T) {
	ctx := context.Background()
	kv := NewGormKVRepository(openTestDB(t))

	if _, err := kv.Get(ctx, model.KeySessionToken); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := SetJSON(ctx, kv, model.KeySessionToken, "first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetJSON(ctx, kv, model.KeySessionToken, "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	var got string
	if err := GetJSON(ctx, kv, model.KeySessionToken, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "second" {
		t.Fatalf("expected overwritten value, got %q", got)
	}

	if err := SetJSON(ctx, kv, model.KeySessionUser, model.User{ID: "u1"}); err != nil {
		t.Fatalf("set user: %v", err)
	}
	if err := kv.Delete(ctx, model.KeySessionToken, model.KeySessionUser, "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, k := range []string{model.KeySessionToken, model.KeySessionUser} {
		if _, err := kv.Get(ctx, k); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("key %s: expected ErrKeyNotFound after delete, got %v", k, err)
		}
	}
}

func TestGormEventRepository_ListByAppointmentAndRange(t *testing.T) {
	ctx := context.Background()
	repo := NewGormEventRepository(openTestDB(t))

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	seed := []model.Event{
		{EventType: model.EventTypeSaleCreated, AppointmentID: "a1", CreatedAt: base},
		{EventType: model.EventTypeWalletDebited, AppointmentID: "a1", CreatedAt: base.Add(time.Minute)},
		{EventType: model.EventTypeNoShowMarked, AppointmentID: "a2", CreatedAt: base.Add(2 * time.Minute)},
		{EventType: model.EventTypeLogin, CreatedAt: base.Add(-48 * time.Hour)},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("create event %d: %v", i, err)
		}
		if seed[i].ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Fatalf("expected generated id for event %d", i)
		}
	}

	events, err := repo.ListByAppointment(ctx, "a1")
	if err != nil {
		t.Fatalf("list by appointment: %v", err)
	}
	if len(events) != 2 || events[0].EventType != model.EventTypeSaleCreated {
		t.Fatalf("unexpected events %+v", events)
	}

	page, total, err := repo.ListByRange(ctx, base.Add(-time.Hour), base.Add(time.Hour), 2, 0)
	if err != nil {
		t.Fatalf("list by range: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 events in range, got %d", total)
	}
	if len(page) != 2 || page[0].EventType != model.EventTypeNoShowMarked {
		t.Fatalf("expected newest first page of 2, got %+v", page)
	}
}
