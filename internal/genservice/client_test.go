package genservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studio/api/internal/pipeline"
)

func TestGenerateAngles(t *testing.T) {
	var gotAuth string
	var gotBody pipeline.AngleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/angles" {
			t.Errorf("path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(pipeline.AngleResult{
			AngleCandidates: []pipeline.Angle{
				{ID: "ang_1", Title: "Contrarian take"},
				{ID: "ang_2", Title: "Case study"},
			},
			SessionRecordID: "sess_abc",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token", 5*time.Second)
	result, err := c.GenerateAngles(context.Background(), pipeline.AngleRequest{
		RawInput:    "notes about pricing",
		ContentType: pipeline.ContentTypePost,
		AuthorID:    "user_1",
	})
	if err != nil {
		t.Fatalf("GenerateAngles: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("authorization header %q", gotAuth)
	}
	if gotBody.RawInput != "notes about pricing" {
		t.Errorf("request raw input %q", gotBody.RawInput)
	}
	if len(result.AngleCandidates) != 2 || result.SessionRecordID != "sess_abc" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGenerateAnglesEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipeline.AngleResult{})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second)
	if _, err := c.GenerateAngles(context.Background(), pipeline.AngleRequest{RawInput: "x"}); err == nil {
		t.Fatalf("expected error for empty candidate list")
	}
}

func TestUpstreamErrorSurfacesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second)
	_, err := c.GenerateOutline(context.Background(), pipeline.OutlineRequest{})
	if err == nil {
		t.Fatalf("expected upstream error")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error missing status or body: %v", err)
	}
}

func TestGenerateOutlineDecodesTopLevelFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"T","hooks":[{"id":"hk_1","text":"h"}],"sections":[{"heading":"Intro","keyPoints":["p1"]}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second)
	result, err := c.GenerateOutline(context.Background(), pipeline.OutlineRequest{})
	if err != nil {
		t.Fatalf("GenerateOutline: %v", err)
	}
	if result.Outline.Title != "T" || len(result.Outline.Hooks) != 1 {
		t.Errorf("outline fields lost: %+v", result.Outline)
	}
	if len(result.Outline.Sections) != 1 || result.Outline.Sections[0].Heading != "Intro" {
		t.Errorf("sections not decoded: %+v", result.Outline)
	}
}

func TestGenerateOutlineNormalizesLegacySections(t *testing.T) {
	// The service may answer with the legacy section key; the client must
	// still decode it into sections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"outline_sections":[{"heading":"Intro","keyPoints":["p1","p2"]}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second)
	result, err := c.GenerateOutline(context.Background(), pipeline.OutlineRequest{})
	if err != nil {
		t.Fatalf("GenerateOutline: %v", err)
	}
	if len(result.Outline.Sections) != 1 || result.Outline.Sections[0].Heading != "Intro" {
		t.Fatalf("legacy sections not normalized: %+v", result.Outline)
	}
	if got := result.Outline.Sections[0].KeyPoints; len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Errorf("key points lost in legacy decode: %v", got)
	}
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, "", time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.GenerateDraft(ctx, pipeline.DraftRequest{}); err == nil {
		t.Fatalf("expected context deadline error")
	}
}
