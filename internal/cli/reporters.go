package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rizqme/goderunner/internal/reporter"
	"github.com/rizqme/goderunner/internal/reporter/live"
)

const defaultLiveAddr = ":7890"

// buildMultiplexer parses --reporter's comma-separated `name[=target]`
// tokens into concrete reporter.Reporter delegates and wraps them in a
// Multiplexer, per spec.md §6. An empty spec list defaults to `list`,
// the teacher's own console reporter's closest analogue in this pack.
// Every delegate's OnEnd runs exactly once, via the Multiplexer, at the
// end of the run that owns mux — a delegate that holds a resource (the
// live dashboard's HTTP server) closes it there, so no separate closer
// is needed here.
func buildMultiplexer(specs []string, outputDir string, quiet bool) (*reporter.Multiplexer, error) {
	if len(specs) == 0 {
		specs = []string{"list"}
	}

	delegates := []reporter.Reporter{&reporter.StdioEcho{Quiet: quiet}}
	for _, spec := range specs {
		name, target, _ := strings.Cut(spec, "=")
		name = strings.TrimSpace(name)
		switch name {
		case "dot":
			delegates = append(delegates, reporter.NewDot())
		case "line":
			delegates = append(delegates, reporter.NewLine())
		case "list":
			delegates = append(delegates, reporter.NewList())
		case "json":
			delegates = append(delegates, reporter.NewJSONReporter(resolvePath(target, outputDir, "results.json")))
		case "junit":
			delegates = append(delegates, reporter.NewJUnit(resolvePath(target, outputDir, "junit.xml"), true))
		case "live":
			addr := target
			if addr == "" {
				addr = defaultLiveAddr
			}
			delegates = append(delegates, live.New(addr))
		case "service":
			if target == "" {
				return nil, fmt.Errorf("--reporter=service requires a target endpoint: service=<url>")
			}
			delegates = append(delegates, reporter.NewService(target, serviceTokenFetcher))
		default:
			return nil, fmt.Errorf("unknown reporter %q", name)
		}
	}

	return reporter.NewMultiplexer(delegates...), nil
}

// resolvePath turns an optional --reporter=name=path suffix into a
// concrete path: "-" means stdout (the JSON/JUnit reporters' own
// convention), "" means defaultName under outputDir, otherwise a bare
// filename is rooted under outputDir.
func resolvePath(target, outputDir, defaultName string) string {
	if target == "" {
		return filepath.Join(outputDir, defaultName)
	}
	if target == "-" {
		return "-"
	}
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(outputDir, target)
}

// serviceTokenFetcher resolves the service reporter's bearer token from
// the environment, since this project has no auth flow of its own — the
// teacher-pack's Service reporter only specifies *when* the token must be
// fetched (synchronously, before the first upload), not where it comes
// from.
func serviceTokenFetcher() (string, error) {
	if token := os.Getenv("GODERUNNER_SERVICE_TOKEN"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("service reporter: GODERUNNER_SERVICE_TOKEN is not set")
}
