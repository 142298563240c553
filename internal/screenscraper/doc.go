// Package screenscraper is a client for the ScreenScraper api2 endpoints
// (jeuInfos.php, jeuRecherche.php, ssuserInfos.php).
//
// Every reply is parsed with gjson into typed values at this boundary: numbers
// arrive as strings, unparseable payloads become ErrMalformedResponse, and HTTP
// statuses map onto the services error markers. Each successful reply also
// carries the account quota counters from the ssuser block.
package screenscraper
