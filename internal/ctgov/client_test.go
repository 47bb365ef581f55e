// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ctgov

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

const sampleStudyJSON = `{
  "protocolSection": {
    "identificationModule": {
      "nctId": "NCT00001372",
      "briefTitle": "Aspirin in Cardiovascular Prevention",
      "officialTitle": "A Study of Aspirin"
    },
    "statusModule": {
      "overallStatus": "COMPLETED",
      "startDateStruct": {"date": "1995-06"},
      "completionDateStruct": {"date": "2001-12"}
    },
    "conditionsModule": {"conditions": ["Cardiovascular Disease"]},
    "interventionsModule": {
      "interventions": [{"type": "DRUG", "name": "Aspirin"}]
    },
    "sponsorsModule": {
      "leadSponsor": {"name": "NHLBI"},
      "collaborators": [{"name": "NIH"}]
    }
  }
}`

func newClient(ts *httptest.Server) *Client {
	return &Client{BaseURL: ts.URL, HTTP: ts.Client(), UserAgent: "test/0.1"}
}

func TestStudy(t *testing.T) {
	var gotPath, gotFields string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = r.URL.Query().Get("fields")
		fmt.Fprint(w, sampleStudyJSON)
	}))
	defer ts.Close()

	c := newClient(ts)
	doc, err := c.Study(context.Background(), "NCT00001372", []string{"protocolSection", "protocolSection", ""})
	if err != nil {
		t.Fatalf("Study: %v", err)
	}
	if gotPath != "/studies/NCT00001372" {
		t.Errorf("path = %q", gotPath)
	}
	if gotFields != "protocolSection" {
		t.Errorf("fields = %q, want deduplicated %q", gotFields, "protocolSection")
	}
	if NCTID(doc) != "NCT00001372" {
		t.Errorf("NCTID = %q", NCTID(doc))
	}
}

func TestStudy_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "study not found", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := newClient(ts).Study(context.Background(), "NCT99999999", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", se.Status)
	}
}

func TestSearchStudies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query.intr") != "aspirin" {
			t.Errorf("query.intr = %q", r.URL.Query().Get("query.intr"))
		}
		if r.URL.Query().Get("pageSize") != "25" {
			t.Errorf("pageSize = %q", r.URL.Query().Get("pageSize"))
		}
		fmt.Fprintf(w, `{"studies":[%s],"nextPageToken":""}`, sampleStudyJSON)
	}))
	defer ts.Close()

	page, err := newClient(ts).SearchStudies(context.Background(), SearchQuery{
		Intervention: "aspirin",
		PageSize:     25,
	})
	if err != nil {
		t.Fatalf("SearchStudies: %v", err)
	}
	if len(page.Studies) != 1 {
		t.Fatalf("got %d studies, want 1", len(page.Studies))
	}
}

func TestIterStudies_Pagination(t *testing.T) {
	var requests []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pageToken")
		requests = append(requests, token)
		switch token {
		case "":
			fmt.Fprintf(w, `{"studies":[%s],"nextPageToken":"page2"}`, sampleStudyJSON)
		case "page2":
			fmt.Fprintf(w, `{"studies":[%s],"nextPageToken":""}`, sampleStudyJSON)
		default:
			t.Errorf("unexpected pageToken %q", token)
		}
	}))
	defer ts.Close()

	var seen int
	err := newClient(ts).IterStudies(context.Background(), SearchQuery{Term: "aspirin"}, 0,
		func(map[string]any) bool {
			seen++
			return true
		})
	if err != nil {
		t.Fatalf("IterStudies: %v", err)
	}
	if seen != 2 {
		t.Errorf("saw %d studies, want 2", seen)
	}
	if len(requests) != 2 {
		t.Errorf("made %d requests, want 2", len(requests))
	}
}

func TestIterStudies_MaxPages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"studies":[%s],"nextPageToken":"more"}`, sampleStudyJSON)
	}))
	defer ts.Close()

	var seen int
	err := newClient(ts).IterStudies(context.Background(), SearchQuery{Term: "x"}, 2,
		func(map[string]any) bool {
			seen++
			return true
		})
	if err != nil {
		t.Fatalf("IterStudies: %v", err)
	}
	if seen != 2 {
		t.Errorf("saw %d studies, want 2 (one per page, two pages)", seen)
	}
}

func TestIterStudies_EarlyStop(t *testing.T) {
	var requests int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		fmt.Fprintf(w, `{"studies":[%s,%s],"nextPageToken":"more"}`, sampleStudyJSON, sampleStudyJSON)
	}))
	defer ts.Close()

	var seen int
	err := newClient(ts).IterStudies(context.Background(), SearchQuery{Term: "x"}, 0,
		func(map[string]any) bool {
			seen++
			return false
		})
	if err != nil {
		t.Fatalf("IterStudies: %v", err)
	}
	if seen != 1 {
		t.Errorf("saw %d studies, want 1", seen)
	}
	if requests != 1 {
		t.Errorf("made %d requests, want 1", requests)
	}
}

func TestCompact(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleStudyJSON)
	}))
	defer ts.Close()

	doc, err := newClient(ts).Study(context.Background(), "NCT00001372", nil)
	if err != nil {
		t.Fatalf("Study: %v", err)
	}

	cs := Compact(doc)
	want := CompactStudy{
		NCTID:          "NCT00001372",
		BriefTitle:     "Aspirin in Cardiovascular Prevention",
		OfficialTitle:  "A Study of Aspirin",
		OverallStatus:  "COMPLETED",
		StartDate:      "1995-06",
		CompletionDate: "2001-12",
		Conditions:     []string{"Cardiovascular Disease"},
		Interventions:  []string{"Aspirin"},
		LeadSponsor:    "NHLBI",
		Collaborators:  []string{"NIH"},
	}
	if !reflect.DeepEqual(cs, want) {
		t.Errorf("Compact = %+v, want %+v", cs, want)
	}
}

func TestCompact_MalformedDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{"nil", nil},
		{"empty", map[string]any{}},
		{"wrong types", map[string]any{"protocolSection": "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := Compact(tt.doc)
			if cs.NCTID != "" || cs.OverallStatus != "" {
				t.Errorf("Compact(%v) = %+v, want zero", tt.doc, cs)
			}
		})
	}
}
