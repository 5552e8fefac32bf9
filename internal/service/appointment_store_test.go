package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jjatencia/exorawebipad/internal/client"
	"github.com/jjatencia/exorawebipad/internal/model"
)

func TestVisibleAppointments_HidesPaidPastGraceWindowAndSorts(t *testing.T) {
	now := testDay.Add(11 * time.Hour) // 11:00

	paidOld := appointmentAt("paid-old", 10, 0) // 10:15 grace end, hidden
	paidOld.Paid = true
	paidRecent := appointmentAt("paid-recent", 10, 50) // 11:05 grace end, visible
	paidRecent.Paid = true
	unpaidOld := appointmentAt("unpaid-old", 9, 0) // never hidden
	later := appointmentAt("later", 12, 0)

	got := VisibleAppointments([]model.Appointment{later, paidOld, paidRecent, unpaidOld}, now)

	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	if strings.Join(ids, ",") != "unpaid-old,paid-recent,later" {
		t.Fatalf("unexpected visible list: %v", ids)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Date.Before(got[i-1].Date) {
			t.Fatalf("list not sorted at %d", i)
		}
	}
}

func TestVisibleAppointments_GraceBoundaryAndStableOrder(t *testing.T) {
	a := appointmentAt("a", 10, 0)
	a.Paid = true
	// exactly at scheduled + 15m the appointment is still shown
	got := VisibleAppointments([]model.Appointment{a}, a.Date.Add(model.GraceWindow))
	if len(got) != 1 {
		t.Fatalf("expected paid appointment visible at the grace boundary")
	}
	got = VisibleAppointments([]model.Appointment{a}, a.Date.Add(model.GraceWindow+time.Second))
	if len(got) != 0 {
		t.Fatalf("expected paid appointment hidden after the grace window")
	}

	x := appointmentAt("x", 9, 0)
	y := appointmentAt("y", 9, 0)
	got = VisibleAppointments([]model.Appointment{y, x}, testDay)
	if got[0].ID != "y" || got[1].ID != "x" {
		t.Fatalf("equal times must keep input order, got %s,%s", got[0].ID, got[1].ID)
	}
}

func TestAppointmentStore_FetchSuccessReplacesListAndResetsCursor(t *testing.T) {
	f := newFixture(t, testDay.Add(8*time.Hour))
	f.load(t, appointmentAt("b", 11, 0), appointmentAt("a", 10, 0))

	if !f.store.SetCurrentIndex(1) {
		t.Fatalf("expected cursor move to succeed")
	}

	f.api.appointments[testDay.Format("2006-01-02")] = []model.Appointment{appointmentAt("c", 9, 0)}
	if err := f.store.FetchAppointments(context.Background(), testDay); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if f.store.CurrentIndex() != 0 {
		t.Fatalf("expected cursor reset to 0, got %d", f.store.CurrentIndex())
	}
	cur, ok := f.store.Current()
	if !ok || cur.ID != "c" {
		t.Fatalf("expected current c, got %+v", cur)
	}
	if f.store.Err() != nil {
		t.Fatalf("expected error cleared, got %v", f.store.Err())
	}

	snap, err := f.store.RecoverySnapshot(context.Background())
	if err != nil || snap == nil {
		t.Fatalf("expected snapshot, got %v, %v", snap, err)
	}
	if snap.Date != "2025-03-04" || len(snap.Appointments) != 1 || snap.Appointments[0].ID != "c" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestAppointmentStore_FetchFailureClearsEverything(t *testing.T) {
	f := newFixture(t, testDay.Add(8*time.Hour))
	f.load(t, appointmentAt("a", 10, 0), appointmentAt("b", 11, 0))
	f.store.SetCurrentIndex(1)

	f.api.fetchErr = client.ErrTransport
	err := f.store.FetchAppointments(context.Background(), testDay)
	if !errors.Is(err, client.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	if len(f.store.Appointments()) != 0 || len(f.store.Filtered()) != 0 {
		t.Fatalf("expected both lists cleared")
	}
	if f.store.CurrentIndex() != 0 {
		t.Fatalf("expected cursor 0")
	}
	if _, ok := f.store.Current(); ok {
		t.Fatalf("expected no current appointment")
	}
	if !errors.Is(f.store.Err(), client.ErrTransport) {
		t.Fatalf("expected stored error, got %v", f.store.Err())
	}
	if level, _ := f.notifier.last(); level != LevelError {
		t.Fatalf("expected error notification, got %q", level)
	}
}

func TestAppointmentStore_NotificationsForEmptyAndHidden(t *testing.T) {
	f := newFixture(t, testDay.Add(12*time.Hour))

	f.load(t)
	if _, msg := f.notifier.last(); msg != "No appointments for 2025-03-04" {
		t.Fatalf("unexpected message %q", msg)
	}

	p1 := appointmentAt("p1", 9, 0)
	p1.Paid = true
	p2 := appointmentAt("p2", 10, 0)
	p2.Paid = true
	f.load(t, p1, p2, appointmentAt("open", 13, 0))
	if _, msg := f.notifier.last(); msg != "2 appointments hidden because they are completed" {
		t.Fatalf("unexpected message %q", msg)
	}
	if len(f.store.Appointments()) != 3 || len(f.store.Filtered()) != 1 {
		t.Fatalf("expected canonical 3 / filtered 1")
	}
}

func TestAppointmentStore_DuplicateFetchForSameDayIsDropped(t *testing.T) {
	f := newFixture(t, testDay)
	f.api.appointments[testDay.Format("2006-01-02")] = []model.Appointment{appointmentAt("a", 10, 0)}
	gate := make(chan struct{})
	f.api.fetchGate = gate

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.store.FetchAppointments(context.Background(), testDay); err != nil {
			t.Errorf("first fetch: %v", err)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !f.store.Loading(testDay) {
		if time.Now().After(deadline) {
			t.Fatalf("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := f.store.FetchAppointments(context.Background(), testDay); err != nil {
		t.Fatalf("second fetch should be dropped silently, got %v", err)
	}

	close(gate)
	wg.Wait()

	if f.api.fetchCalls != 1 {
		t.Fatalf("expected 1 remote call, got %d", f.api.fetchCalls)
	}
	if f.store.Loading(testDay) {
		t.Fatalf("expected loading flag cleared")
	}
}

func TestAppointmentStore_FetchWithoutSessionFailsClosed(t *testing.T) {
	f := newFixture(t, testDay)
	f.store.session = staticSession{}

	err := f.store.FetchAppointments(context.Background(), testDay)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if f.api.fetchCalls != 0 {
		t.Fatalf("expected no remote call")
	}
}

func TestAppointmentStore_SetCurrentIndexIgnoresOutOfRange(t *testing.T) {
	f := newFixture(t, testDay)
	f.load(t, appointmentAt("a", 10, 0), appointmentAt("b", 11, 0))

	for _, i := range []int{-1, 2, 100} {
		if f.store.SetCurrentIndex(i) {
			t.Fatalf("index %d should be rejected", i)
		}
		if f.store.CurrentIndex() != 0 {
			t.Fatalf("cursor changed by index %d", i)
		}
	}
	if !f.store.SetCurrentIndex(1) || f.store.CurrentIndex() != 1 {
		t.Fatalf("expected cursor at 1")
	}
}

func TestAppointmentStore_SetCurrentDateNotifiesObserverWithoutFetching(t *testing.T) {
	f := newFixture(t, testDay)

	var seen time.Time
	f.store.OnDateChange(func(d time.Time) { seen = d })

	next := testDay.AddDate(0, 0, 1).Add(15 * time.Hour)
	f.store.SetCurrentDate(next)

	want := testDay.AddDate(0, 0, 1)
	if !f.store.CurrentDate().Equal(want) {
		t.Fatalf("expected date %v, got %v", want, f.store.CurrentDate())
	}
	if !seen.Equal(want) {
		t.Fatalf("observer got %v", seen)
	}
	if f.api.fetchCalls != 0 {
		t.Fatalf("SetCurrentDate must not fetch")
	}
}

func TestAppointmentStore_FindPageAndReset(t *testing.T) {
	f := newFixture(t, testDay)
	f.load(t, appointmentAt("a", 10, 0), appointmentAt("b", 11, 0), appointmentAt("c", 12, 0))

	if a, ok := f.store.Find("b"); !ok || a.ID != "b" {
		t.Fatalf("expected to find b")
	}
	if _, ok := f.store.Find("zzz"); ok {
		t.Fatalf("unexpected match")
	}

	p := f.store.Page(2, 2)
	if len(p.Items) != 1 || p.Items[0].ID != "c" || p.HasNext || !p.HasPrev || p.Total != 3 {
		t.Fatalf("unexpected page: %+v", p)
	}

	f.store.Reset()
	if len(f.store.Filtered()) != 0 || len(f.store.Appointments()) != 0 {
		t.Fatalf("expected empty store after reset")
	}
}
