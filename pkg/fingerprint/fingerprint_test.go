package fingerprint

import (
	"testing"

	"quiltsync/pkg/models"
)

func sampleRecord() *models.Record {
	return &models.Record{
		ItemID:        "afc2019048_0001",
		Title:         "AIDS Quilt Block 1",
		Description:   "Panel honoring several names.",
		Subjects:      []string{"quilts", "memorials"},
		Contributors:  []string{"NAMES Project Foundation"},
		MemorialNames: []string{"John Doe", "Jane Roe"},
		DateCreated:   "1987",
		Location:      "San Francisco, California",
		ImageURLs:     []string{"https://tile.loc.gov/a.jpg", "https://tile.loc.gov/b.jpg"},
	}
}

func TestHashDeterministic(t *testing.T) {
	a := Hash(sampleRecord())
	b := Hash(sampleRecord())
	if a != b {
		t.Errorf("hash not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex hash, got %d chars", len(a))
	}
}

func TestHashIgnoresFieldOrder(t *testing.T) {
	rec := sampleRecord()
	base := Hash(rec)

	rec.Subjects = []string{"memorials", "quilts"}
	rec.MemorialNames = []string{"Jane Roe", "John Doe"}
	rec.ImageURLs = []string{"https://tile.loc.gov/b.jpg", "https://tile.loc.gov/a.jpg"}

	if got := Hash(rec); got != base {
		t.Error("reordering multi-valued fields must not change the hash")
	}
}

func TestHashDetectsSingleFieldChange(t *testing.T) {
	base := Hash(sampleRecord())

	changes := []func(*models.Record){
		func(r *models.Record) { r.Title = "AIDS Quilt Block 1 (revised)" },
		func(r *models.Record) { r.Description = "Updated description." },
		func(r *models.Record) { r.Subjects = append(r.Subjects, "textiles") },
		func(r *models.Record) { r.Contributors = nil },
		func(r *models.Record) { r.MemorialNames = r.MemorialNames[:1] },
		func(r *models.Record) { r.DateCreated = "1988" },
		func(r *models.Record) { r.Location = "Atlanta, Georgia" },
		func(r *models.Record) { r.ImageURLs = append(r.ImageURLs, "https://tile.loc.gov/c.jpg") },
	}

	for i, change := range changes {
		rec := sampleRecord()
		change(rec)
		if Hash(rec) == base {
			t.Errorf("change %d did not alter the hash", i)
		}
	}
}

func TestHashIgnoresNonContentFields(t *testing.T) {
	rec := sampleRecord()
	base := Hash(rec)

	rec.LocalImagePaths = []string{"/tmp/a.jpg"}
	rec.ImagesDownloaded = true
	rec.ContentHash = "stale"
	rec.BlockNumber = "1"

	if got := Hash(rec); got != base {
		t.Error("bookkeeping fields must not affect the hash")
	}
}

func TestHashNilAndEmptySlicesEqual(t *testing.T) {
	a := sampleRecord()
	a.Subjects = nil
	b := sampleRecord()
	b.Subjects = []string{}

	if Hash(a) != Hash(b) {
		t.Error("nil and empty slices must hash identically")
	}
}

func TestClassify(t *testing.T) {
	rec := sampleRecord()
	h := Hash(rec)

	status, got := Classify("", rec)
	if status != StatusNew || got != h {
		t.Errorf("expected new/%s, got %s/%s", h, status, got)
	}

	status, got = Classify(h, rec)
	if status != StatusUnchanged || got != h {
		t.Errorf("expected unchanged, got %s", status)
	}

	rec.Title = "different"
	status, got = Classify(h, rec)
	if status != StatusChanged {
		t.Errorf("expected changed, got %s", status)
	}
	if got == h {
		t.Error("changed record must return a new hash")
	}
}
