package form

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Surface is the slice of page behavior the driver needs. The production
// implementation wraps a rod page; tests substitute a fake.
type Surface interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// Locate finds one control within the bounded wait.
	Locate(ctx context.Context, locator string, timeout time.Duration) (Control, error)
}

// Control is one interactive element on the form.
type Control interface {
	// SetText replaces the control's current text with value.
	SetText(value string) error
	// SelectOption picks the dropdown option at index and returns the text
	// it ended up selecting.
	SelectOption(index int) (string, error)
	// Options lists the dropdown's option texts in document order.
	Options() ([]string, error)
	// SetChecked drives a checkbox to the requested state.
	SetChecked(on bool) error
	// Value reads the control's current value: input value, selected option
	// text, or "true"/"false" for a checkbox.
	Value() (string, error)
	// Click activates the control.
	Click() error
}

// rodSurface implements Surface on a live rod page.
type rodSurface struct {
	page       *rod.Page
	navTimeout time.Duration
}

func isXPath(locator string) bool {
	return strings.HasPrefix(locator, "//") || strings.HasPrefix(locator, "(")
}

func (s *rodSurface) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	return nil
}

func (s *rodSurface) Locate(ctx context.Context, locator string, timeout time.Duration) (Control, error) {
	page := s.page.Context(ctx).Timeout(timeout)

	var (
		el  *rod.Element
		err error
	)
	if isXPath(locator) {
		el, err = page.ElementX(locator)
	} else {
		el, err = page.Element(locator)
	}
	if err != nil {
		return nil, fmt.Errorf("control not found (%s): %w", locator, err)
	}
	return &rodControl{el: el.CancelTimeout()}, nil
}

// rodControl adapts one rod element to the Control interface.
type rodControl struct {
	el *rod.Element
}

func (c *rodControl) SetText(value string) error {
	_ = c.el.ScrollIntoView()
	if err := c.el.SelectAllText(); err != nil {
		return err
	}
	return c.el.Input(value)
}

func (c *rodControl) Options() ([]string, error) {
	els, err := c.el.Elements("option")
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(els))
	for _, opt := range els {
		text, err := opt.Text()
		if err != nil {
			return nil, err
		}
		texts = append(texts, strings.TrimSpace(text))
	}
	return texts, nil
}

func (c *rodControl) SelectOption(index int) (string, error) {
	_, err := c.el.Eval(`(i) => {
		this.selectedIndex = i;
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`, index)
	if err != nil {
		return "", err
	}
	return c.selectedText()
}

func (c *rodControl) selectedText() (string, error) {
	res, err := c.el.Eval(`() => this.selectedOptions[0] ? this.selectedOptions[0].textContent.trim() : ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (c *rodControl) SetChecked(on bool) error {
	checked, err := c.el.Property("checked")
	if err != nil {
		return err
	}
	if checked.Bool() == on {
		return nil
	}
	return c.Click()
}

func (c *rodControl) Value() (string, error) {
	tag, err := c.el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", err
	}
	switch tag.Value.Str() {
	case "select":
		return c.selectedText()
	default:
		typ, err := c.el.Property("type")
		if err == nil && typ.Str() == "checkbox" {
			checked, err := c.el.Property("checked")
			if err != nil {
				return "", err
			}
			if checked.Bool() {
				return "true", nil
			}
			return "false", nil
		}
		val, err := c.el.Property("value")
		if err != nil {
			return "", err
		}
		return val.Str(), nil
	}
}

func (c *rodControl) Click() error {
	_ = c.el.ScrollIntoView()
	if err := c.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		// Some overlays swallow real clicks; fall back to a DOM click.
		_, evalErr := c.el.Eval(`() => this.click()`)
		if evalErr != nil {
			return err
		}
	}
	return nil
}
