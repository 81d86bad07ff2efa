package nwis

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"streamflow-platform/internal/models"
)

// parseSiteRDB parses the site service's tab-delimited RDB payload into
// catalog records. RDB payloads start with '#' comment lines, then a
// header row, then a column-format row, then data rows.
func parseSiteRDB(body []byte, regionCode string) ([]models.Site, error) {
	sites := make([]models.Site, 0)
	if len(body) == 0 {
		return sites, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var columns map[string]int
	skipFormatRow := false

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")

		if columns == nil {
			columns = make(map[string]int, len(fields))
			for i, name := range fields {
				columns[strings.TrimSpace(name)] = i
			}

			for _, required := range []string{"site_no", "station_nm", "dec_lat_va", "dec_long_va"} {
				if _, ok := columns[required]; !ok {
					return nil, fmt.Errorf("rdb header missing column %q", required)
				}
			}

			skipFormatRow = true
			continue
		}

		// The row after the header describes column widths (e.g. "15s").
		if skipFormatRow {
			skipFormatRow = false
			continue
		}

		site, ok := siteFromRow(fields, columns, regionCode)
		if !ok {
			continue
		}
		sites = append(sites, site)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan rdb payload: %w", err)
	}

	return sites, nil
}

// siteFromRow extracts one catalog record; rows with a missing site id or
// unparseable coordinates are dropped
func siteFromRow(fields []string, columns map[string]int, regionCode string) (models.Site, bool) {
	column := func(name string) string {
		idx := columns[name]
		if idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	siteID := column("site_no")
	if siteID == "" {
		return models.Site{}, false
	}

	lat, err := strconv.ParseFloat(column("dec_lat_va"), 64)
	if err != nil {
		return models.Site{}, false
	}
	lon, err := strconv.ParseFloat(column("dec_long_va"), 64)
	if err != nil {
		return models.Site{}, false
	}

	return models.Site{
		SiteID:     siteID,
		Name:       column("station_nm"),
		RegionCode: strings.ToUpper(regionCode),
		Longitude:  lon,
		Latitude:   lat,
	}, true
}
