package papermeta

import (
	"reflect"
	"testing"
)

func TestExtractPrefersEmbeddedMetadata(t *testing.T) {
	rawText := "Some Completely Different Heading Line\nAuthors: Not These People\n"
	embedded := map[string]string{
		"Title":  "Deep Learning for Catalyst Discovery",
		"Author": "Alice Smith; Bob Jones",
	}

	meta := Extract(rawText, embedded)

	if meta.Title != "Deep Learning for Catalyst Discovery" {
		t.Fatalf("expected embedded title verbatim, got %q", meta.Title)
	}
	want := []string{"Alice Smith", "Bob Jones"}
	if !reflect.DeepEqual(meta.Authors, want) {
		t.Fatalf("expected authors %v, got %v", want, meta.Authors)
	}
}

func TestExtractTitleFromFirstLines(t *testing.T) {
	rawText := "Short\nA sufficiently long candidate title line\nX\nY\nZ"

	meta := Extract(rawText, nil)

	if meta.Title != "A sufficiently long candidate title line" {
		t.Fatalf("expected heuristic title, got %q", meta.Title)
	}
}

func TestExtractTitleSkipsBeyondFirstFiveLines(t *testing.T) {
	rawText := "a\nb\nc\nd\ne\nThis line is long enough but arrives too late"

	meta := Extract(rawText, nil)

	if meta.Title != "" {
		t.Fatalf("expected no title from line six, got %q", meta.Title)
	}
}

func TestExtractAuthorsSplitting(t *testing.T) {
	embedded := map[string]string{"Author": "Alice Smith, Bob Jones and Carol Lee"}

	meta := Extract("", embedded)

	want := []string{"Alice Smith", "Bob Jones", "Carol Lee"}
	if !reflect.DeepEqual(meta.Authors, want) {
		t.Fatalf("expected %v, got %v", want, meta.Authors)
	}
}

func TestExtractAuthorsFromTextFallback(t *testing.T) {
	rawText := "A Study of Things\nAuthors: Dana White; Evan Black\nAbstract...\n"

	meta := Extract(rawText, map[string]string{})

	want := []string{"Dana White", "Evan Black"}
	if !reflect.DeepEqual(meta.Authors, want) {
		t.Fatalf("expected %v, got %v", want, meta.Authors)
	}
}

func TestExtractAuthorsByLine(t *testing.T) {
	rawText := "An Extended Survey of Widgets\nby Frank Green and Grace Hall\n"

	meta := Extract(rawText, nil)

	want := []string{"Frank Green", "Grace Hall"}
	if !reflect.DeepEqual(meta.Authors, want) {
		t.Fatalf("expected %v, got %v", want, meta.Authors)
	}
}

func TestExtractAuthorsEmptyWhenNothingFound(t *testing.T) {
	meta := Extract("no names anywhere in this text", nil)

	if meta.Authors == nil || len(meta.Authors) != 0 {
		t.Fatalf("expected empty (non-nil) authors, got %#v", meta.Authors)
	}
}

func TestExtractDOILabeledAndIdempotent(t *testing.T) {
	rawText := "see doi: 10.1234/abcd for details"

	first := Extract(rawText, nil)
	second := Extract(rawText, nil)

	if first.DOI != "10.1234/abcd" {
		t.Fatalf("expected labeled DOI, got %q", first.DOI)
	}
	if second.DOI != first.DOI {
		t.Fatalf("extraction not idempotent: %q vs %q", first.DOI, second.DOI)
	}
}

func TestExtractDOIBareFallback(t *testing.T) {
	rawText := "available at 10.5555/1234567.89 online"

	meta := Extract(rawText, nil)

	if meta.DOI != "10.5555/1234567.89" {
		t.Fatalf("expected bare DOI, got %q", meta.DOI)
	}
}

func TestExtractVenuePriorityOrder(t *testing.T) {
	// Conference appears earlier in the text, but the journal pattern has
	// higher priority.
	rawText := "Conference: NeurIPS 2023\nJournal: Nature Materials\n"

	meta := Extract(rawText, nil)

	if meta.Venue != "Nature Materials" {
		t.Fatalf("expected journal venue to win, got %q", meta.Venue)
	}
}

func TestExtractVenueProceedings(t *testing.T) {
	rawText := "In Proceedings of the 40th International Conference on Machine Learning\n"

	meta := Extract(rawText, nil)

	if meta.Venue != "the 40th International Conference on Machine Learning" {
		t.Fatalf("unexpected venue %q", meta.Venue)
	}
}

func TestExtractYearWithCopyrightMark(t *testing.T) {
	for _, rawText := range []string{"© 2021 The Authors", "(c) 2021 Elsevier", "published in 2021"} {
		meta := Extract(rawText, nil)
		if meta.Year != "2021" {
			t.Fatalf("text %q: expected year 2021, got %q", rawText, meta.Year)
		}
	}
}

func TestExtractYearRejectsOutOfRange(t *testing.T) {
	meta := Extract("page 1850 of 3000", nil)

	if meta.Year != "" {
		t.Fatalf("expected no year, got %q", meta.Year)
	}
}

func TestExtractVolumeAndPages(t *testing.T) {
	rawText := "Published in Vol. 42, pp. 101-117"

	meta := Extract(rawText, nil)

	if meta.Volume != "42" {
		t.Fatalf("expected volume 42, got %q", meta.Volume)
	}
	if meta.Pages != "101-117" {
		t.Fatalf("expected pages 101-117, got %q", meta.Pages)
	}
}

func TestExtractPagesEnDash(t *testing.T) {
	meta := Extract("pages 7–19", nil)

	if meta.Pages != "7-19" {
		t.Fatalf("expected normalized pages 7-19, got %q", meta.Pages)
	}
}

func TestExtractNeverFailsOnDegenerateInput(t *testing.T) {
	inputs := []string{"", "\n\n\n", "\x00\xff\xfe\n\x01"}
	for _, in := range inputs {
		meta := Extract(in, nil)
		if meta.Title != "" || meta.DOI != "" || meta.Venue != "" {
			t.Fatalf("input %q: expected empty fields, got %+v", in, meta)
		}
	}
}
