// Command rommedia scrapes game metadata and media for a ROM library from
// ScreenScraper and keeps the results in a local cache.
package main
