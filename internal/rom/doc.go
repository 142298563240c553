// Package rom defines ROM files, content fingerprints, and the table mapping
// library directory names to ScreenScraper systems.
package rom
