// ABOUTME: Headless-browser executor for competitor checks, built on go-rod.
// ABOUTME: Runs manual scripts when available and falls back to direct navigation with keyword checks.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/2389-research/nichescout/pipeline"
)

// ExecutorConfig holds browser executor settings.
type ExecutorConfig struct {
	Headless      bool
	NavTimeout    time.Duration // per-navigation timeout (default 15s)
	ScreenshotDir string        // empty disables screenshot capture
	Bin           string        // browser binary path, empty lets rod resolve one
}

// Executor drives a shared headless browser for competitor checks. The
// browser launches lazily on first use; each check acquires a fresh incognito
// page, uses it, and releases it before any long wait, so no exclusive
// browser resource is held across an arbitrary remote delay.
type Executor struct {
	cfg ExecutorConfig

	mu      sync.Mutex
	browser *rod.Browser
	cleanup func()
}

// NewExecutor creates an executor. No browser is launched until the first check.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 15 * time.Second
	}
	return &Executor{cfg: cfg}
}

// Execute probes one competitor: run the manual script when one parses, else
// the direct-navigation strategy over the target's known URLs.
func (e *Executor) Execute(ctx context.Context, target pipeline.CompetitorTarget, keyword, manual string) (pipeline.CompetitorCheck, error) {
	chk := pipeline.CompetitorCheck{
		Name:         target.Name,
		URLsChecked:  []string{},
		DetectedGaps: []string{},
	}

	browser, err := e.ensureBrowser(ctx)
	if err != nil {
		return chk, fmt.Errorf("browser unavailable: %w", err)
	}

	var steps []Step
	if manual != "" {
		steps, err = ParseScript(manual)
		if err != nil {
			// A bad manual degrades to direct navigation, same as no manual.
			log.Printf("browser manual unusable competitor=%s err=%v", target.Name, err)
			steps = nil
		}
	}
	if steps == nil {
		steps = directNavigationSteps(target)
	}
	if len(steps) == 0 {
		return chk, errors.New("no URLs to check")
	}

	text, visited, execErr := e.runSteps(ctx, browser, steps, target.Name, &chk)
	chk.URLsChecked = visited
	chk.DetectedGaps = pipeline.DetectKeywordGaps(text, keyword)
	chk.Success = execErr == nil && len(visited) > 0
	if execErr != nil {
		chk.Notes = execErr.Error()
		return chk, execErr
	}
	chk.Notes = fmt.Sprintf("checked %d pages via headless browser", len(visited))
	return chk, nil
}

// directNavigationSteps is the hardcoded fallback strategy: visit each known
// page and read its rendered text.
func directNavigationSteps(target pipeline.CompetitorTarget) []Step {
	var steps []Step
	for _, u := range target.URLs {
		steps = append(steps, Step{Action: "navigate", URL: u}, Step{Action: "read", Selector: "body"})
	}
	return steps
}

// runSteps executes script steps on a fresh incognito page, returning the
// accumulated page text and the URLs visited. The page is always closed
// before returning.
func (e *Executor) runSteps(ctx context.Context, browser *rod.Browser, steps []Step, name string, chk *pipeline.CompetitorCheck) (string, []string, error) {
	incognito, err := browser.Incognito()
	if err != nil {
		return "", nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Printf("browser page close failed competitor=%s err=%v", name, err)
		}
	}()

	var text strings.Builder
	visited := []string{}
	for _, step := range steps {
		if ctx.Err() != nil {
			return text.String(), visited, ctx.Err()
		}
		switch step.Action {
		case "navigate":
			p := page.Context(ctx).Timeout(e.cfg.NavTimeout)
			if err := p.Navigate(step.URL); err != nil {
				return text.String(), visited, fmt.Errorf("navigate %s: %w", step.URL, err)
			}
			if err := p.WaitLoad(); err != nil {
				return text.String(), visited, fmt.Errorf("load %s: %w", step.URL, err)
			}
			visited = append(visited, step.URL)
			if chk.Screenshot == "" {
				chk.Screenshot = e.capture(page, name)
			}
		case "click":
			el, err := page.Context(ctx).Timeout(e.cfg.NavTimeout).Element(step.Selector)
			if err != nil {
				return text.String(), visited, fmt.Errorf("find %q: %w", step.Selector, err)
			}
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return text.String(), visited, fmt.Errorf("click %q: %w", step.Selector, err)
			}
		case "wait":
			if _, err := page.Context(ctx).Timeout(e.cfg.NavTimeout).Element(step.Selector); err != nil {
				return text.String(), visited, fmt.Errorf("wait %q: %w", step.Selector, err)
			}
		case "read":
			sel := step.Selector
			if sel == "" {
				sel = "body"
			}
			el, err := page.Context(ctx).Timeout(e.cfg.NavTimeout).Element(sel)
			if err != nil {
				return text.String(), visited, fmt.Errorf("find %q: %w", sel, err)
			}
			t, err := el.Text()
			if err != nil {
				return text.String(), visited, fmt.Errorf("read %q: %w", sel, err)
			}
			text.WriteString(t)
			text.WriteString("\n")
		}
	}
	return text.String(), visited, nil
}

// capture writes a viewport screenshot to the screenshot directory,
// returning the file path or "" on any failure.
func (e *Executor) capture(page *rod.Page, name string) string {
	if e.cfg.ScreenshotDir == "" {
		return ""
	}
	data, err := page.Screenshot(false, nil)
	if err != nil {
		log.Printf("browser screenshot failed competitor=%s err=%v", name, err)
		return ""
	}
	path := filepath.Join(e.cfg.ScreenshotDir, fmt.Sprintf("%s_%d.png", sanitizeName(name), time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("browser screenshot write failed competitor=%s err=%v", name, err)
		return ""
	}
	return path
}

// ensureBrowser launches and connects the shared browser on first use.
func (e *Executor) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		if _, err := e.browser.Version(); err == nil {
			return e.browser, nil
		}
		log.Printf("stale browser connection detected, relaunching")
		_ = e.browser.Close()
		e.browser = nil
		if e.cleanup != nil {
			e.cleanup()
			e.cleanup = nil
		}
	}

	l := launcher.New().Headless(e.cfg.Headless)
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	e.browser = browser
	e.cleanup = l.Cleanup
	return browser, nil
}

// Close shuts down the shared browser if one was launched.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
	return err
}

func sanitizeName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_", "..", "_")
	return strings.ToLower(r.Replace(name))
}
