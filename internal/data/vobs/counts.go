package vobs

import "sort"

type countKey struct {
	country string
	region  string
	year    int
	taxon   string
}

// CountRecords aggregates sample counts by country, region (admin1), year and
// taxon. Rows are sorted by those keys.
func CountRecords(records []SampleRecord) []CountRow {
	counts := make(map[countKey]int)
	for _, r := range records {
		counts[countKey{r.Country, r.Admin1Name, r.Year, r.Taxon}]++
	}

	rows := make([]CountRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, CountRow{
			Country: k.country,
			Region:  k.region,
			Year:    k.year,
			Taxon:   k.taxon,
			Count:   n,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Taxon < b.Taxon
	})
	return rows
}

// FilterBySampleSet keeps records that belong to one of the given sample
// sets, preserving order. An empty list keeps everything.
func FilterBySampleSet(records []SampleRecord, sampleSets []string) []SampleRecord {
	if len(sampleSets) == 0 {
		return records
	}
	want := make(map[string]struct{}, len(sampleSets))
	for _, s := range sampleSets {
		want[s] = struct{}{}
	}
	out := make([]SampleRecord, 0, len(records))
	for _, r := range records {
		if _, ok := want[r.SampleSet]; ok {
			out = append(out, r)
		}
	}
	return out
}
