package game

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/joss/gamepilot/internal/logging"
)

// scoreJS probes the page (iframe first, then top window) for the
// score the game exposes.
const scoreJS = `() => {
	const probe = (win) => {
		try {
			if (typeof win.getGameState === 'function') {
				const s = win.getGameState();
				if (s && typeof s.score !== 'undefined') return Number(s.score);
			}
			if (win.gameInstance && win.gameInstance.gameState && typeof win.gameInstance.gameState.score !== 'undefined') {
				return Number(win.gameInstance.gameState.score);
			}
			if (win.gameState && typeof win.gameState.score !== 'undefined') {
				return Number(win.gameState.score);
			}
		} catch (e) {}
		return null;
	};
	for (const frame of document.querySelectorAll('iframe')) {
		if (frame.contentWindow) {
			const s = probe(frame.contentWindow);
			if (s !== null) return s;
		}
	}
	const canvas = document.querySelector('canvas');
	if (canvas && canvas.ownerDocument && canvas.ownerDocument.defaultView) {
		const s = probe(canvas.ownerDocument.defaultView);
		if (s !== null) return s;
	}
	return probe(window);
}`

// endedJS checks the flags and phases games use to signal a terminal
// state.
const endedJS = `() => {
	const phases = ['GAME_OVER', 'GAME_OVER_LOSE', 'GAME_OVER_WIN', 'ENDED'];
	const probe = (win) => {
		try {
			if (win.game && win.game.ended === true) return true;
			if (typeof win.getGameState === 'function') {
				const s = win.getGameState();
				if (s && phases.includes(s.gamePhase)) return true;
			}
			if (win.gameState && phases.includes(win.gameState.gamePhase)) return true;
		} catch (e) {}
		return false;
	};
	for (const frame of document.querySelectorAll('iframe')) {
		if (frame.contentWindow && probe(frame.contentWindow)) return true;
	}
	return probe(window);
}`

// restartJS dispatches synthetic key events as a fallback delivery path
// for games that swallow trusted input while on their game-over screen.
const restartJS = `(code, key) => {
	const opts = {key: key, keyCode: code, which: code, bubbles: true};
	const targets = [document, document.body];
	for (const frame of document.querySelectorAll('iframe')) {
		try {
			if (frame.contentDocument) {
				targets.push(frame.contentDocument, frame.contentDocument.body);
			}
		} catch (e) {}
	}
	for (const t of targets) {
		if (!t) continue;
		t.dispatchEvent(new KeyboardEvent('keydown', opts));
		t.dispatchEvent(new KeyboardEvent('keyup', opts));
	}
}`

// holdSettleTime is how long held keys stay down before release when
// the caller gives no duration.
const holdSettleTime = 200 * time.Millisecond

// RodSurface drives a game in a real browser over the DevTools protocol.
type RodSurface struct {
	browser *rod.Browser
	page    *rod.Page
	info    Info
	log     *logging.Logger
}

// Options configure browser startup.
type Options struct {
	Headless   bool
	BrowserBin string
}

// Connect launches a browser, loads the game URL, finds and focuses the
// canvas, starts the game, and reads its description.
func Connect(ctx context.Context, url string, opts Options) (*RodSurface, error) {
	bin := opts.BrowserBin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}

	controlURL, err := launcher.New().Bin(bin).Headless(opts.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	s := &RodSurface{
		browser: browser,
		page:    page,
		log:     logging.New("game"),
	}

	// Busy canvases never settle; the page is usually still usable
	if err := page.WaitStable(time.Second); err != nil {
		s.log.Warn("page_not_stable", nil, err)
	}

	if err := s.setup(ctx, url); err != nil {
		browser.Close()
		return nil, err
	}

	return s, nil
}

func (s *RodSurface) setup(ctx context.Context, url string) error {
	canvas, err := s.findCanvas()
	if err != nil {
		return fmt.Errorf("find game canvas: %w", err)
	}

	// Make the canvas focusable and give it input focus
	if _, err := canvas.Eval(`() => { this.setAttribute('tabindex', '0'); this.focus(); }`); err != nil {
		s.log.Warn("canvas_focus_failed", nil, err)
	}
	if err := canvas.Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.log.Warn("canvas_click_failed", nil, err)
	}

	info, err := s.readInfo(url)
	if err != nil {
		return err
	}
	s.info = info
	s.log = s.log.WithGame(info.Name)

	// Most games sit on a start screen until Enter is pressed
	if err := s.page.Keyboard.Type(input.Enter); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	time.Sleep(500 * time.Millisecond)

	s.log.Info("game_ready", map[string]interface{}{"url": url})
	return nil
}

// findCanvas locates the game canvas: the p5.js default id first, then
// inside iframes, then any canvas at all.
func (s *RodSurface) findCanvas() (*rod.Element, error) {
	if el, err := s.page.Timeout(2 * time.Second).Element("#defaultCanvas0"); err == nil {
		return el, nil
	}

	if frames, err := s.page.Timeout(2 * time.Second).Elements("iframe"); err == nil {
		for _, frame := range frames {
			inner, err := frame.Frame()
			if err != nil {
				continue
			}
			if el, err := inner.Timeout(2 * time.Second).Element("canvas"); err == nil {
				return el, nil
			}
		}
	}

	return s.page.Timeout(5 * time.Second).Element("canvas")
}

// readInfo pulls the game description and controls from the page. Both
// are required: without them the model cannot be prompted.
func (s *RodSurface) readInfo(url string) (Info, error) {
	info := Info{URL: url}

	description, err := s.elementText("#gameDescription")
	if err != nil {
		return info, fmt.Errorf("game page has no #gameDescription: %w", err)
	}
	info.Description = description

	controls, err := s.elementText("#gameControls")
	if err != nil {
		return info, fmt.Errorf("game page has no #gameControls: %w", err)
	}
	// The harness owns restart keys; make sure the model knows them
	if !strings.Contains(controls, "R:") && !strings.Contains(controls, "R key") {
		controls += "\nR: restart after game over\nENTER: confirm restart"
	}
	info.Controls = controls

	info.Name = s.readName(url)
	return info, nil
}

func (s *RodSurface) readName(url string) string {
	if el, err := s.page.Timeout(time.Second).Element(`meta[name="game_name"]`); err == nil {
		if v, err := el.Attribute("content"); err == nil && v != nil && *v != "" {
			return *v
		}
	}
	if name, err := s.elementText("#game_name"); err == nil && name != "" {
		return name
	}
	return gameNameFromURL(url)
}

func (s *RodSurface) elementText(selector string) (string, error) {
	el, err := s.page.Timeout(2 * time.Second).Element(selector)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

var (
	gamesPathRe   = regexp.MustCompile(`/games/([^/]+)/`)
	variantPathRe = regexp.MustCompile(`/([A-Za-z0-9]+)_v\d+`)
)

// gameNameFromURL extracts a readable game name from hosting URL
// conventions.
func gameNameFromURL(url string) string {
	if m := gamesPathRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := variantPathRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	trimmed := strings.TrimSuffix(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		name := trimmed[i+1:]
		name = strings.TrimSuffix(name, ".html")
		if name != "" {
			return name
		}
	}
	return "game"
}

func (s *RodSurface) Info() Info { return s.info }

func (s *RodSurface) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

func (s *RodSurface) PressKey(ctx context.Context, code int) error {
	key, err := rodKey(code)
	if err != nil {
		return err
	}
	if err := s.page.Context(ctx).Keyboard.Type(key); err != nil {
		return fmt.Errorf("press key %d: %w", code, err)
	}
	return nil
}

func (s *RodSurface) HoldKeys(ctx context.Context, codes []int, hold time.Duration) error {
	if hold <= 0 {
		hold = holdSettleTime
	}

	keys := make([]input.Key, 0, len(codes))
	for _, code := range codes {
		key, err := rodKey(code)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	kb := s.page.Context(ctx).Keyboard
	for _, key := range keys {
		if err := kb.Press(key); err != nil {
			return fmt.Errorf("key down: %w", err)
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(hold):
	}

	// Always release what was pressed, even on cancellation
	var releaseErr error
	for _, key := range keys {
		if err := kb.Release(key); err != nil && releaseErr == nil {
			releaseErr = fmt.Errorf("key up: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return releaseErr
}

func (s *RodSurface) Score(ctx context.Context) (float64, error) {
	res, err := s.page.Context(ctx).Eval(scoreJS)
	if err != nil {
		return 0, fmt.Errorf("read score: %w", err)
	}
	if res.Value.Nil() {
		return 0, nil
	}
	return res.Value.Num(), nil
}

func (s *RodSurface) Ended(ctx context.Context) (bool, error) {
	res, err := s.page.Context(ctx).Eval(endedJS)
	if err != nil {
		return false, fmt.Errorf("read ended state: %w", err)
	}
	return res.Value.Bool(), nil
}

// Restart sends R then Enter through both trusted input and synthetic
// events, then verifies the game actually left its terminal state.
func (s *RodSurface) Restart(ctx context.Context) error {
	const attempts = 3

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.PressKey(ctx, 82); err != nil {
			return err
		}
		time.Sleep(300 * time.Millisecond)
		if err := s.PressKey(ctx, 13); err != nil {
			return err
		}

		// Redundant synthetic delivery for games that ignore trusted
		// events on the game-over screen
		if _, err := s.page.Context(ctx).Eval(restartJS, 82, "r"); err != nil {
			s.log.Warn("synthetic_restart_failed", nil, err)
		}
		if _, err := s.page.Context(ctx).Eval(restartJS, 13, "Enter"); err != nil {
			s.log.Warn("synthetic_restart_failed", nil, err)
		}

		time.Sleep(time.Second)

		ended, err := s.Ended(ctx)
		if err != nil {
			return err
		}
		if !ended {
			s.log.Info("game_restarted", map[string]interface{}{"attempt": attempt})
			return nil
		}
		s.log.Warn("restart_not_confirmed", map[string]interface{}{"attempt": attempt}, nil)
	}

	return fmt.Errorf("game still ended after %d restart attempts", attempts)
}

func (s *RodSurface) Close() error {
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}

var _ Surface = (*RodSurface)(nil)
