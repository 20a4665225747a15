package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/shopfront/internal/report"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	medium, err := NewFileMedium(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMedium returned error: %v", err)
	}
	s := New(medium, "", nil)

	s.Save("thing", sample{Name: "widget", Count: 3})

	var got sample
	if !s.Load("thing", &got) {
		t.Fatalf("Load returned false, want true")
	}
	if got.Name != "widget" || got.Count != 3 {
		t.Fatalf("Load = %#v, want widget/3", got)
	}

	if _, err := os.Stat(filepath.Join(medium.Dir(), "shopfront_thing.json")); err != nil {
		t.Fatalf("expected namespaced file on disk: %v", err)
	}
}

func TestStore_LoadMissingReturnsFalse(t *testing.T) {
	s := New(NewMemoryMedium(), "ns", nil)
	var got sample
	if s.Load("absent", &got) {
		t.Fatalf("Load returned true for missing key")
	}
}

func TestStore_CorruptPayloadIsReportedNotReturned(t *testing.T) {
	medium := NewMemoryMedium()
	rec := &report.Recorder{}
	s := New(medium, "ns", rec)

	_ = medium.Set("ns_cart_items", []byte("{not json"))

	got := []sample{{Name: "keep"}}
	if s.Load(KeyCartItems, &got) {
		t.Fatalf("Load returned true for corrupt payload")
	}
	if len(got) != 1 || got[0].Name != "keep" {
		t.Fatalf("dest modified on corrupt load: %#v", got)
	}
	if n := len(rec.OfKind(report.KindStorage)); n != 1 {
		t.Fatalf("storage reports = %d, want 1", n)
	}
}

func TestStore_UnserializableValueIsAbsorbed(t *testing.T) {
	rec := &report.Recorder{}
	s := New(NewMemoryMedium(), "ns", rec)

	s.Save("bad", make(chan int))

	if n := len(rec.OfKind(report.KindStorage)); n != 1 {
		t.Fatalf("storage reports = %d, want 1", n)
	}
}

type failingMedium struct{}

func (failingMedium) Get(string) ([]byte, bool, error) { return nil, false, errors.New("disk gone") }
func (failingMedium) Set(string, []byte) error         { return errors.New("quota exceeded") }
func (failingMedium) Delete(string) error              { return errors.New("disk gone") }

func TestStore_MediumFailuresNeverEscape(t *testing.T) {
	rec := &report.Recorder{}
	s := New(failingMedium{}, "ns", rec)

	s.Save("k", 1)
	var v int
	if s.Load("k", &v) {
		t.Fatalf("Load returned true from failing medium")
	}
	s.Remove("k")

	if n := len(rec.OfKind(report.KindStorage)); n != 3 {
		t.Fatalf("storage reports = %d, want 3", n)
	}
}

func TestStore_NilMediumIsNoop(t *testing.T) {
	s := New(nil, "", nil)
	if s.Available() {
		t.Fatalf("Available = true, want false")
	}
	s.Save("k", 1)
	s.Remove("k")
	var v int
	if s.Load("k", &v) {
		t.Fatalf("Load returned true without medium")
	}
}

func TestStore_Remove(t *testing.T) {
	s := New(NewMemoryMedium(), "ns", nil)
	s.Save("k", 7)
	s.Remove("k")
	var v int
	if s.Load("k", &v) {
		t.Fatalf("Load returned true after Remove")
	}
}

func TestFileMedium_RejectsPathKeys(t *testing.T) {
	medium, err := NewFileMedium(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMedium returned error: %v", err)
	}
	for _, key := range []string{"", "../escape", `a\b`, ".hidden"} {
		if err := medium.Set(key, []byte("1")); err == nil {
			t.Fatalf("Set(%q) returned nil error", key)
		}
	}
}

func TestFileMedium_ExpandsTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	medium, err := NewFileMedium("~/data")
	if err != nil {
		t.Fatalf("NewFileMedium returned error: %v", err)
	}
	if medium.Dir() != filepath.Join(home, "data") {
		t.Fatalf("Dir = %q, want %q", medium.Dir(), filepath.Join(home, "data"))
	}
}

func TestFileMedium_DeleteMissingIsNotAnError(t *testing.T) {
	medium, err := NewFileMedium(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMedium returned error: %v", err)
	}
	if err := medium.Delete("nothing"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
}

func TestMemoryMedium_CopiesOnReadAndWrite(t *testing.T) {
	m := NewMemoryMedium()
	buf := []byte("abc")
	_ = m.Set("k", buf)
	buf[0] = 'z'

	got, ok, _ := m.Get("k")
	if !ok || string(got) != "abc" {
		t.Fatalf("Get = %q, want abc", got)
	}
	got[0] = 'y'
	again, _, _ := m.Get("k")
	if string(again) != "abc" {
		t.Fatalf("Get after caller mutation = %q, want abc", again)
	}
}

func TestNewRedisMedium_BadURL(t *testing.T) {
	if _, err := NewRedisMedium("not a url"); err == nil {
		t.Fatalf("NewRedisMedium returned nil error for bad url")
	}
}

func TestStore_WrongTypedPayloadLeavesDestUntouched(t *testing.T) {
	medium := NewMemoryMedium()
	rec := &report.Recorder{}
	s := New(medium, "ns", rec)

	_ = medium.Set("ns_cart_items", []byte(`[{"name":"a","count":2},{"name":"b","count":"x"}]`))

	got := []sample{{Name: "keep", Count: 1}}
	if s.Load(KeyCartItems, &got) {
		t.Fatalf("Load returned true for wrongly typed payload")
	}
	if len(got) != 1 || got[0].Name != "keep" || got[0].Count != 1 {
		t.Fatalf("dest modified on wrongly typed load: %#v", got)
	}

	var fresh []sample
	if s.Load(KeyCartItems, &fresh) || fresh != nil {
		t.Fatalf("Load into empty dest = %#v, want nil", fresh)
	}
	if n := len(rec.OfKind(report.KindStorage)); n != 2 {
		t.Fatalf("storage reports = %d, want 2", n)
	}
}

func TestStore_LoadRejectsNonPointer(t *testing.T) {
	rec := &report.Recorder{}
	s := New(NewMemoryMedium(), "ns", rec)
	s.Save("k", 1)

	var v int
	if s.Load("k", v) {
		t.Fatalf("Load returned true for non-pointer dest")
	}
	if n := len(rec.OfKind(report.KindStorage)); n != 1 {
		t.Fatalf("storage reports = %d, want 1", n)
	}
}
