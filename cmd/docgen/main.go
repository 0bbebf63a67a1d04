// Command docgen builds the AsciiDoc API reference from the @Route
// annotations on the internal/api handlers.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

// Method returns the HTTP verb of the route.
func (e Endpoint) Method() string {
	return strings.Split(e.Route, " ")[0]
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	apiDir := "internal/api"
	out := "internal/docs/content/api.adoc"

	files, err := os.ReadDir(apiDir)
	if err != nil {
		log.Fatalf("read %s: %v", apiDir, err)
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := os.Open(filepath.Join(apiDir, name))
		if err != nil {
			log.Printf("skipping %s: %v", name, err)
			continue
		}
		endpoints = append(endpoints, parse(f)...)
		f.Close()
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return routePath(endpoints[i]) < routePath(endpoints[j])
	})

	if err := os.WriteFile(out, []byte(render(endpoints)), 0644); err != nil {
		log.Fatalf("write %s: %v", out, err)
	}
	fmt.Printf("Generated %s\n", out)
}

// parse collects the annotated endpoints of one source file. A block ends at
// its @Response line.
func parse(r io.Reader) []Endpoint {
	var endpoints []Endpoint
	var current Endpoint

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints
}

func routePath(e Endpoint) string {
	return strings.TrimPrefix(e.Route, e.Method()+" ")
}

func render(endpoints []Endpoint) string {
	var b strings.Builder
	b.WriteString("= API Reference\n")
	b.WriteString(":toc:\n\n")
	b.WriteString("Generated from the handler annotations in `internal/api` by `go run ./cmd/docgen`.\n")

	for _, ep := range endpoints {
		fmt.Fprintf(&b, "\n== %s\n\n", ep.Title)
		fmt.Fprintf(&b, "`%s`\n\n", ep.Route)
		fmt.Fprintf(&b, "%s.\n\n", strings.TrimSuffix(ep.Description, "."))
		b.WriteString("Response::\n")
		fmt.Fprintf(&b, "+\n[source]\n----\n%s\n----\n", ep.Response)
	}
	return b.String()
}
