package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Dependency is one external collaborator the service relies on.
type Dependency struct {
	// Name identifies the dependency in messages.
	Name string

	// Required marks the dependency as critical: its failure makes the
	// probe Unhealthy instead of Degraded.
	Required bool

	// Check returns nil when the dependency is available. A required
	// dependency without a check counts as unavailable; an optional one
	// is reported as unchecked.
	Check func(ctx context.Context) error

	// Target is the URL or address probed, reported as "<name>_target"
	// in the details when set.
	Target string
}

// DependencyChecker checks a set of dependencies concurrently.
type DependencyChecker struct {
	deps []Dependency
}

// NewDependencyChecker creates a dependency probe.
func NewDependencyChecker(deps ...Dependency) *DependencyChecker {
	return &DependencyChecker{deps: deps}
}

// Name returns the name of this checker.
func (d *DependencyChecker) Name() string {
	return "dependencies"
}

// Check performs the dependency health check.
func (d *DependencyChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()

	errs := make([]error, len(d.deps))
	var wg sync.WaitGroup
	for i, dep := range d.deps {
		if dep.Check == nil {
			if dep.Required {
				errs[i] = ErrNoCheck
			}
			continue
		}
		wg.Add(1)
		go func(i int, check func(context.Context) error) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("%w: %v", ErrCheckPanic, r)
				}
			}()
			errs[i] = check(ctx)
		}(i, dep.Check)
	}
	wg.Wait()

	var missing, optional []string
	details := make(map[string]any, len(d.deps))
	for i, dep := range d.deps {
		if dep.Target != "" {
			details[dep.Name+"_target"] = dep.Target
		}
		if errs[i] == nil {
			if dep.Check == nil {
				details[dep.Name] = "unchecked"
			} else {
				details[dep.Name] = "available"
			}
			continue
		}
		details[dep.Name] = errs[i].Error()
		if dep.Required {
			missing = append(missing, dep.Name)
		} else {
			optional = append(optional, dep.Name)
		}
	}
	sort.Strings(missing)
	sort.Strings(optional)

	var result ComponentHealth
	switch {
	case len(missing) > 0:
		result = Unhealthy(d.Name(),
			"missing critical dependencies: "+strings.Join(missing, ", "), ErrCheckFailed)
	case len(optional) > 0:
		result = Degraded(d.Name(),
			"optional dependencies unavailable: "+strings.Join(optional, ", "))
	default:
		result = Healthy(d.Name(), "all critical dependencies available")
	}
	return result.WithDetails(details).WithDuration(time.Since(start))
}

// HTTPDependency returns a check that issues a GET to url. Any response
// below 500 counts as reachable. A nil client uses http.DefaultClient.
func HTTPDependency(client *http.Client, url string) func(context.Context) error {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", ErrCheckFailed, resp.StatusCode)
		}
		return nil
	}
}

// TCPDependency returns a check that dials address.
func TCPDependency(address string) func(context.Context) error {
	return func(ctx context.Context) error {
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
