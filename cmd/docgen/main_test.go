package main

import (
	"strings"
	"testing"
)

const annotated = `package api

// @Title: Send a Yo
// @Route: GET /api/yo/yo?target=NAME
// @Description: Sends a Yo! to the named party
// @Response: 201 "Yo just sent a Yo! to NAME"
func (s *Service) HandleYo() {}

// @Title: Incomplete
// @Description: has no route
// @Response: none
func (s *Service) helper() {}

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status
// @Response: {"status": "ok"}
func (s *Service) HandleHealth() {}
`

func TestParse(t *testing.T) {
	endpoints := parse(strings.NewReader(annotated))
	if len(endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d: %+v", len(endpoints), endpoints)
	}
	if endpoints[0].Title != "Send a Yo" || endpoints[0].Method() != "GET" {
		t.Errorf("unexpected first endpoint %+v", endpoints[0])
	}
	if routePath(endpoints[1]) != "/api/health" {
		t.Errorf("unexpected path %q", routePath(endpoints[1]))
	}
}

func TestRender(t *testing.T) {
	doc := render(parse(strings.NewReader(annotated)))
	for _, want := range []string{"= API Reference", "== Send a Yo", "`GET /api/health`", `{"status": "ok"}`} {
		if !strings.Contains(doc, want) {
			t.Errorf("rendered doc missing %q", want)
		}
	}
}
