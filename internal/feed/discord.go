package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

const (
	discordLoginURL   = "https://discord.com/login"
	discordAppPrefix  = "https://discord.com/channels/"
	messageContentSel = `[id^="message-content-"]`
)

// Collects {id, text} for every rendered message that has content
const snapshotScript = `Array.from(document.querySelectorAll('li[id^="chat-messages-"], li[class^="messageListItem_"]'))
  .map(li => {
    const content = li.querySelector('[id^="message-content-"]');
    if (!li.id || !content) { return null; }
    return {id: li.id, text: content.innerText.trim()};
  })
  .filter(m => m !== null)`

// Counts the rendered messages
const messageCountScript = `document.querySelectorAll('[id^="message-content-"]').length`

// Checks whether the login form is on screen
const loginFormScript = `!!document.querySelector('input[name="email"]')`

// DiscordConfig configures the browser-driven Discord feed
type DiscordConfig struct {
	ChannelURL     string
	Email          string
	Password       string
	ProfileDir     string
	Headless       bool
	LoginTimeout   time.Duration
	ChannelTimeout time.Duration
	SettleDelay    time.Duration // pause before the message count is polled until stable
	Notify         func(format string, args ...interface{})
}

// DiscordFeed reads a channel through a Chrome session. The browser profile
// is kept in ProfileDir so a completed login survives restarts.
type DiscordFeed struct {
	cfg DiscordConfig

	mu          sync.Mutex
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	ready       bool
}

// NewDiscordFeed creates a feed; the browser starts on the first snapshot
func NewDiscordFeed(cfg DiscordConfig) (*DiscordFeed, error) {
	if !strings.HasPrefix(cfg.ChannelURL, discordAppPrefix) {
		return nil, fmt.Errorf("discord channel url must start with %s, got %q", discordAppPrefix, cfg.ChannelURL)
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 5 * time.Minute
	}
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = time.Minute
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 7 * time.Second
	}
	if cfg.Notify == nil {
		cfg.Notify = func(string, ...interface{}) {}
	}
	return &DiscordFeed{cfg: cfg}, nil
}

func (d *DiscordFeed) Name() string {
	return "discord:" + d.cfg.ChannelURL
}

// Snapshot returns the messages currently rendered in the channel
func (d *DiscordFeed) Snapshot(ctx context.Context) ([]types.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureReady(ctx); err != nil {
		return nil, err
	}

	var messages []types.RawMessage
	if err := d.run(ctx, 0, chromedp.Evaluate(snapshotScript, &messages)); err != nil {
		if d.browserCtx.Err() != nil {
			d.reset()
		}
		return nil, fmt.Errorf("failed to read channel messages: %w", err)
	}
	return messages, nil
}

// ensureReady starts the browser, logs in when needed and opens the
// channel. Must be called with d.mu held.
func (d *DiscordFeed) ensureReady(ctx context.Context) error {
	if d.ready {
		return nil
	}

	if d.browserCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", d.cfg.Headless),
			chromedp.WindowSize(1280, 900),
		)
		if d.cfg.ProfileDir != "" {
			opts = append(opts, chromedp.UserDataDir(d.cfg.ProfileDir))
		}
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, cancelTab := chromedp.NewContext(allocCtx)
		d.browserCtx, d.cancelAlloc, d.cancelTab = browserCtx, cancelAlloc, cancelTab

		// The first Run allocates the browser; a timeout here would kill it later
		if err := chromedp.Run(browserCtx); err != nil {
			d.reset()
			return fmt.Errorf("failed to start chrome: %w", err)
		}
	}

	if err := d.login(ctx); err != nil {
		d.reset()
		return err
	}

	d.cfg.Notify("📡 Opening channel %s", d.cfg.ChannelURL)
	err := d.run(ctx, d.cfg.ChannelTimeout,
		chromedp.Navigate(d.cfg.ChannelURL),
		chromedp.WaitVisible(messageContentSel, chromedp.ByQuery),
	)
	if err != nil {
		d.reset()
		return fmt.Errorf("failed to load discord channel: %w", err)
	}

	// The first snapshot becomes the baseline, so history must be fully rendered
	count := func(ctx context.Context) (int, error) {
		var n int
		err := d.run(ctx, 10*time.Second, chromedp.Evaluate(messageCountScript, &n))
		return n, err
	}
	if err := waitUntilSettled(ctx, count, d.cfg.SettleDelay, time.Second, 3, d.cfg.ChannelTimeout); err != nil {
		d.reset()
		return fmt.Errorf("discord channel history did not settle: %w", err)
	}

	d.ready = true
	d.cfg.Notify("✅ Channel loaded, monitoring messages")
	return nil
}

func (d *DiscordFeed) login(ctx context.Context) error {
	var needsLogin bool
	err := d.run(ctx, d.cfg.ChannelTimeout,
		chromedp.Navigate(discordLoginURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(loginFormScript, &needsLogin),
	)
	if err != nil {
		return fmt.Errorf("failed to open discord login: %w", err)
	}
	if !needsLogin {
		return nil
	}

	if d.cfg.Email != "" && d.cfg.Password != "" {
		err = d.run(ctx, d.cfg.ChannelTimeout,
			chromedp.SendKeys(`input[name="email"]`, d.cfg.Email, chromedp.ByQuery),
			chromedp.SendKeys(`input[name="password"]`, d.cfg.Password, chromedp.ByQuery),
			chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("failed to submit discord login: %w", err)
		}
	}

	d.cfg.Notify("🔐 Complete any CAPTCHA or 2FA in the browser window (waiting up to %s)", d.cfg.LoginTimeout)
	return d.waitForApp(ctx)
}

// waitForApp polls the page location until discord leaves the login page
func (d *DiscordFeed) waitForApp(ctx context.Context) error {
	deadline := time.Now().Add(d.cfg.LoginTimeout)
	for {
		var location string
		if err := d.run(ctx, 10*time.Second, chromedp.Location(&location)); err != nil {
			return fmt.Errorf("failed to read browser location: %w", err)
		}
		if IsLoggedInURL(location) {
			d.cfg.Notify("✅ Logged into Discord")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("discord login not completed within %s", d.cfg.LoginTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// waitUntilSettled sleeps for delay, then polls count every interval until
// it returns the same value stable times in a row. timeout bounds the
// polling phase.
func waitUntilSettled(ctx context.Context, count func(context.Context) (int, error), delay, interval time.Duration, stable int, timeout time.Duration) error {
	if err := sleepCtx(ctx, delay); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	last, same := -1, 0
	for {
		n, err := count(ctx)
		if err != nil {
			return err
		}
		if n == last {
			same++
		} else {
			last, same = n, 1
		}
		if same >= stable {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("message count still changing after %s (last %d)", timeout, n)
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// run executes actions in the browser tab, bounded by timeout (when
// positive) and by the caller's context.
func (d *DiscordFeed) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.browserCtx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// reset tears the browser down so the next snapshot starts over
func (d *DiscordFeed) reset() {
	if d.cancelTab != nil {
		d.cancelTab()
	}
	if d.cancelAlloc != nil {
		d.cancelAlloc()
	}
	d.browserCtx, d.cancelAlloc, d.cancelTab = nil, nil, nil
	d.ready = false
}

// Close shuts the browser down
func (d *DiscordFeed) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	return nil
}

// IsLoggedInURL reports whether a location belongs to the logged-in app
func IsLoggedInURL(location string) bool {
	return strings.HasPrefix(location, discordAppPrefix)
}
