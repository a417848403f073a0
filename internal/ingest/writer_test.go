package ingest

import (
	"context"
	"errors"
	"testing"

	"moviehub/internal/catalog"
	"moviehub/pkg/models"
)

func strp(s string) *string { return &s }

func TestParseYear(t *testing.T) {
	cases := []struct {
		in      *string
		want    int
		absent  bool
		wantErr bool
	}{
		{in: nil, absent: true},
		{in: strp("N/A"), absent: true},
		{in: strp(" tba "), absent: true},
		{in: strp("2021"), want: 2021},
		{in: strp("Released: 1999"), want: 1999},
		{in: strp("2010-2012"), want: 2010},
		{in: strp("someday"), wantErr: true},
		{in: strp("20210"), wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseYear(tc.in)
		label := models.Deref(tc.in)
		if tc.wantErr {
			var ce *CoercionError
			if !errors.As(err, &ce) || ce.Field != "release_year" {
				t.Errorf("%q: expected CoercionError, got %v", label, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", label, err)
			continue
		}
		if tc.absent {
			if got != nil {
				t.Errorf("%q: expected absent, got %d", label, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Errorf("%q: want %d, got %v", label, tc.want, got)
		}
	}
}

func TestParseRating(t *testing.T) {
	cases := []struct {
		in      *string
		want    float64
		absent  bool
		wantErr bool
	}{
		{in: nil, absent: true},
		{in: strp("-"), absent: true},
		{in: strp("7.4"), want: 7.4},
		{in: strp("IMDb 6,8/10"), want: 6.8},
		{in: strp("9"), want: 9},
		{in: strp("not rated"), wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseRating(tc.in)
		label := models.Deref(tc.in)
		if tc.wantErr {
			var ce *CoercionError
			if !errors.As(err, &ce) || ce.Field != "rating_imdb" {
				t.Errorf("%q: expected CoercionError, got %v", label, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", label, err)
			continue
		}
		if tc.absent {
			if got != nil {
				t.Errorf("%q: expected absent, got %v", label, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Errorf("%q: want %v, got %v", label, tc.want, got)
		}
	}
}

func TestPrepareMapsFields(t *testing.T) {
	w := &CatalogWriter{}
	m, err := w.Prepare(models.ScrapedItem{
		Title:           "Heat",
		PrimaryMediaURL: strp("https://p.test/heat"),
		Synopsis:        strp("Robbers."),
		ReleaseYear:     strp("1995"),
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if m.Title != "Heat" || m.VideoSrc != "https://p.test/heat" || m.Description != "Robbers." {
		t.Fatalf("unexpected movie %+v", m)
	}
	if m.TrailerSrc != "" || m.Duration != "" || m.RatingImdb != nil {
		t.Fatalf("absent fields should stay empty: %+v", m)
	}
}

// failingStore returns err from CreateMovie and nothing else.
type failingStore struct {
	Store
	err error
}

func (s failingStore) CreateMovie(context.Context, models.Movie, []int64) (int64, error) {
	return 0, s.err
}

func TestCommitClassifiesStoreErrors(t *testing.T) {
	partial := &catalog.PartialWriteError{MovieID: 42, Err: errors.New("rollback: disk I/O error")}
	w := &CatalogWriter{Store: failingStore{err: partial}}
	_, err := w.Commit(context.Background(), models.Movie{Title: "Half"}, nil)
	var pc *PartialCommitError
	if !errors.As(err, &pc) {
		t.Fatalf("expected PartialCommitError, got %v", err)
	}
	if pc.Title != "Half" || pc.MovieID != 42 {
		t.Fatalf("unexpected partial commit %+v", pc)
	}

	w = &CatalogWriter{Store: failingStore{err: errors.New("constraint failed")}}
	_, err = w.Commit(context.Background(), models.Movie{Title: "None"}, nil)
	if errorKind(err) != "persistence" {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestWriteSkipsStoreOnCoercionError(t *testing.T) {
	w := &CatalogWriter{Store: failingStore{err: errors.New("store must not be called")}}
	_, err := w.Write(context.Background(), models.ScrapedItem{Title: "X", RatingLabel: strp("great")}, nil, "")
	if errorKind(err) != "coercion" {
		t.Fatalf("expected coercion error, got %v", err)
	}
}
