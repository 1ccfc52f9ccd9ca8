// Package browser provides the shared chromedp configuration for long
// unattended headless runs.
package browser

import "github.com/chromedp/chromedp"

// Options returns chromedp allocator options for the given identity.
// All browser instances should use this to ensure consistent configuration.
func Options(headless bool, userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),

		// Prevent navigator.webdriver = true detection
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),

		// Containers and months-long runs: no sandbox, no /dev/shm
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)

	if headless {
		opts = append(opts, chromedp.DisableGPU)
	}

	return opts
}
