package importer

// DeduplicateRows collapses rows sharing an item code to the first occurrence,
// preserving input order and values. Pure and idempotent: duplicates stay in
// the source file, they are only suppressed from the working set.
func DeduplicateRows(rows []RawImportRow) []RawImportRow {
	seen := make(map[string]bool, len(rows))
	out := make([]RawImportRow, 0, len(rows))
	for _, row := range rows {
		if seen[row.ItemCode] {
			continue
		}
		seen[row.ItemCode] = true
		out = append(out, row)
	}
	return out
}
