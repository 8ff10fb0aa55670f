// Package form drives the target web form: one Chrome session, one page,
// and a declarative column→locator mapping applied once per spreadsheet row.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"carlog/internal/config"
)

// ErrNavigation means the form page could not be reached or re-established.
var ErrNavigation = errors.New("page unreachable")

// Session owns the Chrome instance and the single form page. The whole run
// shares one session; it is not safe for concurrent use and is owned by the
// upload worker for the run's duration.
type Session struct {
	cfg config.BrowserConfig
	log *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	page       *rod.Page
	controlURL string
}

// NewSession creates an unstarted session.
func NewSession(cfg config.BrowserConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{cfg: cfg, log: log}
}

// Start connects to an existing Chrome via debugger URL or launches a new
// one, then opens the page the run will drive. Start failure is fatal to
// the run.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return nil
		}
		s.log.Warn("stale browser connection, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
		s.page = nil
		s.controlURL = ""
	}

	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(s.cfg.Headless)
		if s.cfg.Bin != "" {
			launch = launch.Bin(s.cfg.Bin)
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.viewportWidth(),
		Height:            s.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		s.log.Warn("failed to set viewport", zap.Error(err))
	}

	s.browser = browser
	s.page = page
	s.controlURL = controlURL
	s.log.Info("browser session started", zap.Bool("headless", s.cfg.Headless))
	return nil
}

func (s *Session) viewportWidth() int {
	if s.cfg.ViewportWidth == 0 {
		return 1920
	}
	return s.cfg.ViewportWidth
}

func (s *Session) viewportHeight() int {
	if s.cfg.ViewportHeight == 0 {
		return 1080
	}
	return s.cfg.ViewportHeight
}

// Surface returns the page surface the driver operates on. Start must have
// succeeded first.
func (s *Session) Surface() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &rodSurface{page: s.page, navTimeout: s.cfg.GetNavigationTimeout()}
}

// ControlURL returns the DevTools WebSocket URL of the connected browser.
func (s *Session) ControlURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controlURL
}

// Shutdown closes the page and the browser.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	s.controlURL = ""
	return err
}
